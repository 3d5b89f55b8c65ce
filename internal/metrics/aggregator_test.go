package metrics

import (
	"testing"
	"time"

	"github.com/feedpulse/feedpulse/internal/models"
)

func TestPercentageChange(t *testing.T) {
	tests := []struct {
		prev, cur int
		want      float64
	}{
		{0, 0, 0},
		{0, 5, 100},
		{10, 15, 50},
		{10, 5, -50},
		{4, 4, 0},
	}
	for _, tt := range tests {
		if got := PercentageChange(tt.prev, tt.cur); got != tt.want {
			t.Errorf("PercentageChange(%d, %d) = %.1f, want %.1f", tt.prev, tt.cur, got, tt.want)
		}
	}
}

func windowPair() (Window, Window) {
	end := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	start := end.Add(-24 * time.Hour)
	return Window{Start: start, End: end}, Window{Start: start.Add(-24 * time.Hour), End: start}
}

func item(category string, score, comments int, sentimentScore float64, label string) models.ContentItem {
	return models.ContentItem{
		Category:       category,
		Score:          score,
		CommentCount:   comments,
		SentimentScore: sentimentScore,
		SentimentLabel: label,
	}
}

func TestComputeWindowReportTotalsAndTrends(t *testing.T) {
	current, previous := windowPair()

	curItems := []models.ContentItem{
		item("Bugs", 10, 4, 1.0, models.SentimentNegative),
		item("Bugs", 2, 6, 2.0, models.SentimentNegative),
		item("UX", 20, 0, 4.0, models.SentimentPositive),
		item(models.CategoryNoise, 100, 50, 0, ""),
	}
	prevItems := []models.ContentItem{
		item("Bugs", 1, 2, 3.0, models.SentimentNeutral),
	}

	report := ComputeWindowReport(current, previous, curItems, prevItems, 5)

	// Noise counts toward raw totals but never toward trends
	if report.TotalPosts != 4 {
		t.Errorf("total posts = %d, want 4", report.TotalPosts)
	}
	if report.TotalComments != 60 {
		t.Errorf("total comments = %d, want 60", report.TotalComments)
	}
	if len(report.Trends) != 2 {
		t.Fatalf("trends = %d, want 2 (Noise excluded)", len(report.Trends))
	}

	// engagement = (upvotes*0.5 + comments) / posts = (132*0.5 + 60) / 4
	wantEngagement := (132.0*0.5 + 60.0) / 4.0
	if report.EngagementScore != wantEngagement {
		t.Errorf("engagement = %.2f, want %.2f", report.EngagementScore, wantEngagement)
	}

	if report.Sentiment[models.SentimentNegative] != 2 || report.Sentiment[models.SentimentPositive] != 1 {
		t.Errorf("sentiment histogram = %v", report.Sentiment)
	}

	bugs := report.Trends[0]
	if bugs.Category != "Bugs" {
		t.Fatalf("trends[0] = %s, want Bugs (sorted)", bugs.Category)
	}
	if bugs.Count != 2 || bugs.PrevCount != 1 {
		t.Errorf("bugs counts = (%d, %d)", bugs.Count, bugs.PrevCount)
	}
	if bugs.PctChange != 100 {
		t.Errorf("bugs pct change = %.1f, want 100", bugs.PctChange)
	}
	if bugs.TotalComments != 10 || bugs.PrevComments != 2 {
		t.Errorf("bugs comments = (%d, %d)", bugs.TotalComments, bugs.PrevComments)
	}
	if bugs.AvgSentiment != 1.5 {
		t.Errorf("bugs avg sentiment = %.2f, want 1.5", bugs.AvgSentiment)
	}
	// 2 of 3 classified items
	if bugs.PctOfTotal < 66 || bugs.PctOfTotal > 67 {
		t.Errorf("bugs pct of total = %.2f", bugs.PctOfTotal)
	}
}

func TestComputeWindowReportDisappearedCategory(t *testing.T) {
	current, previous := windowPair()

	report := ComputeWindowReport(current, previous,
		[]models.ContentItem{item("UX", 1, 0, 3, models.SentimentNeutral)},
		[]models.ContentItem{item("Bugs", 1, 3, 2, models.SentimentNegative)},
		5,
	)

	if len(report.Trends) != 2 {
		t.Fatalf("trends = %d, want 2", len(report.Trends))
	}
	bugs := report.Trends[0]
	if bugs.Category != "Bugs" || bugs.Count != 0 || bugs.PrevCount != 1 {
		t.Errorf("disappeared category trend = %+v", bugs)
	}
	if bugs.PctChange != -100 {
		t.Errorf("pct change = %.1f, want -100", bugs.PctChange)
	}
}

func TestTopByEngagementOrderAndCap(t *testing.T) {
	items := []models.ContentItem{
		item("Bugs", 1, 1, 0, ""),  // engagement 2
		item("Bugs", 10, 5, 0, ""), // engagement 15
		item("Bugs", 3, 4, 0, ""),  // engagement 7
	}
	items[0].Title = "low"
	items[1].Title = "high"
	items[2].Title = "mid"

	top := topByEngagement(items, 2)
	if len(top) != 2 {
		t.Fatalf("got %d items, want 2", len(top))
	}
	if top[0].Title != "high" || top[1].Title != "mid" {
		t.Errorf("order = [%s, %s]", top[0].Title, top[1].Title)
	}
	if top[0].Engagement != 15 {
		t.Errorf("engagement = %d", top[0].Engagement)
	}
}

func TestComputeWindowReportEmpty(t *testing.T) {
	current, previous := windowPair()
	report := ComputeWindowReport(current, previous, nil, nil, 5)

	if report.TotalPosts != 0 || report.EngagementScore != 0 || len(report.Trends) != 0 {
		t.Errorf("empty report = %+v", report)
	}
}
