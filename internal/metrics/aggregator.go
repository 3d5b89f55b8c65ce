package metrics

import (
	"sort"

	"github.com/feedpulse/feedpulse/internal/models"
)

// ItemSummary is a top-engagement item inside a category trend.
type ItemSummary struct {
	ID           uint   `json:"id"`
	Title        string `json:"title"`
	Permalink    string `json:"permalink"`
	Score        int    `json:"score"`
	CommentCount int    `json:"comment_count"`
	Engagement   int    `json:"engagement"`
}

// CategoryTrend is one category's current-vs-previous window comparison.
type CategoryTrend struct {
	Category      string        `json:"category"`
	Count         int           `json:"count"`
	PrevCount     int           `json:"prev_count"`
	PctChange     float64       `json:"pct_change"`
	PctOfTotal    float64       `json:"pct_of_total"`
	TotalComments int           `json:"total_comments"`
	PrevComments  int           `json:"prev_comments"`
	AvgSentiment  float64       `json:"avg_sentiment"`
	TopItems      []ItemSummary `json:"top_items"`
}

// WindowReport is the full aggregation output for one tenant and window.
// It is pure/derived state: computing it never mutates content items.
type WindowReport struct {
	Current  Window `json:"current"`
	Previous Window `json:"previous"`

	// Raw totals include Noise; the per-category trends exclude it.
	TotalPosts      int            `json:"total_posts"`
	TotalComments   int            `json:"total_comments"`
	EngagementScore float64        `json:"engagement_score"`
	Sentiment       map[string]int `json:"sentiment"`
	Trends          []CategoryTrend `json:"trends"`
}

// PercentageChange computes the window-over-window delta as a percentage.
// A category appearing from nothing counts as 100% growth; absent in both
// windows counts as 0.
func PercentageChange(prev, cur int) float64 {
	if prev == 0 {
		if cur > 0 {
			return 100
		}
		return 0
	}
	return float64(cur-prev) / float64(prev) * 100
}

// ComputeWindowReport aggregates the current and previous window item sets
// into category trends, engagement and a sentiment histogram.
func ComputeWindowReport(current, previous Window, curItems, prevItems []models.ContentItem, topN int) WindowReport {
	report := WindowReport{
		Current:  current,
		Previous: previous,
		Sentiment: map[string]int{
			models.SentimentPositive: 0,
			models.SentimentNeutral:  0,
			models.SentimentNegative: 0,
		},
	}

	totalUpvotes := 0
	classified := 0 // items counted toward trends (Noise excluded)
	byCategory := make(map[string][]models.ContentItem)

	for _, item := range curItems {
		report.TotalPosts++
		report.TotalComments += item.CommentCount
		totalUpvotes += item.Score

		if item.SentimentLabel != "" {
			report.Sentiment[item.SentimentLabel]++
		}

		category := item.Category
		if category == "" || category == models.CategoryNoise {
			continue
		}
		byCategory[category] = append(byCategory[category], item)
		classified++
	}

	prevByCategory := make(map[string][]models.ContentItem)
	for _, item := range prevItems {
		if item.Category == "" || item.Category == models.CategoryNoise {
			continue
		}
		prevByCategory[item.Category] = append(prevByCategory[item.Category], item)
	}

	if report.TotalPosts > 0 {
		report.EngagementScore = (float64(totalUpvotes)*0.5 + float64(report.TotalComments)) / float64(report.TotalPosts)
	}

	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	// Categories that disappeared this window still show up with count 0
	for name := range prevByCategory {
		if _, ok := byCategory[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		items := byCategory[name]
		prev := prevByCategory[name]

		trend := CategoryTrend{
			Category:     name,
			Count:        len(items),
			PrevCount:    len(prev),
			PctChange:    PercentageChange(len(prev), len(items)),
			TopItems:     topByEngagement(items, topN),
		}
		for _, item := range items {
			trend.TotalComments += item.CommentCount
			trend.AvgSentiment += item.SentimentScore
		}
		if len(items) > 0 {
			trend.AvgSentiment /= float64(len(items))
		}
		for _, item := range prev {
			trend.PrevComments += item.CommentCount
		}
		if classified > 0 {
			trend.PctOfTotal = float64(len(items)) / float64(classified) * 100
		}

		report.Trends = append(report.Trends, trend)
	}

	return report
}

func topByEngagement(items []models.ContentItem, n int) []ItemSummary {
	sorted := make([]models.ContentItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Engagement() > sorted[j].Engagement()
	})

	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}

	top := make([]ItemSummary, 0, len(sorted))
	for _, item := range sorted {
		top = append(top, ItemSummary{
			ID:           item.ID,
			Title:        item.Title,
			Permalink:    item.Permalink,
			Score:        item.Score,
			CommentCount: item.CommentCount,
			Engagement:   item.Engagement(),
		})
	}
	return top
}
