// Package alerts evaluates tenant thresholds against windowed metrics and
// fires at most one consolidated notification per cooldown window.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/feedpulse/feedpulse/internal/metrics"
	"github.com/feedpulse/feedpulse/internal/models"
	"github.com/feedpulse/feedpulse/internal/notify"
	"github.com/feedpulse/feedpulse/internal/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// State is the terminal state of one evaluation tick.
type State int

const (
	StateIdle State = iota
	StateEvaluating
	StateNoTrigger
	StateTriggered
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateEvaluating:
		return "EVALUATING"
	case StateNoTrigger:
		return "NO_TRIGGER"
	case StateTriggered:
		return "TRIGGERED"
	default:
		return "UNKNOWN"
	}
}

// breach describes one category tripping one trigger.
type breach struct {
	trend   metrics.CategoryTrend
	reasons []string
}

// Engine runs the per-tenant threshold state machine:
// IDLE -> EVALUATING -> (NO_TRIGGER | TRIGGERED) -> IDLE.
type Engine struct {
	db     *gorm.DB
	sink   notify.Sink
	logger *slog.Logger
	topN   int
}

// NewEngine creates an alerting engine.
func NewEngine(db *gorm.DB, sink notify.Sink, logger *slog.Logger, topN int) *Engine {
	return &Engine{db: db, sink: sink, logger: logger, topN: topN}
}

// Tick runs one evaluation for the tenant at the given time and returns the
// state the tick ended in. Disabled notifications, an empty recipient list or
// an unexpired cooldown all stay IDLE; the cooldown is a debounce, not a
// queue of missed alerts.
func (e *Engine) Tick(ctx context.Context, tenantID uint, now time.Time) (State, error) {
	now = now.UTC()

	var prefs models.Preferences
	if err := e.db.WithContext(ctx).Preload("Tenant").Where("tenant_id = ?", tenantID).First(&prefs).Error; err != nil {
		return StateIdle, fmt.Errorf("failed to load preferences for tenant %d: %w", tenantID, err)
	}
	tenant := prefs.Tenant

	if !prefs.NotificationsEnabled || len(prefs.Recipients) == 0 {
		return StateIdle, nil
	}
	if prefs.LastNotified != nil && now.Sub(*prefs.LastNotified) < prefs.Window() {
		return StateIdle, nil
	}

	// EVALUATING
	current, previous, err := metrics.ResolveWindow("", prefs.WindowHours, now)
	if err != nil {
		return StateIdle, err
	}
	curItems, err := store.ItemsInWindow(e.db.WithContext(ctx), tenantID, current.Start, current.End)
	if err != nil {
		return StateEvaluating, err
	}
	prevItems, err := store.ItemsInWindow(e.db.WithContext(ctx), tenantID, previous.Start, previous.End)
	if err != nil {
		return StateEvaluating, err
	}

	report := metrics.ComputeWindowReport(current, previous, curItems, prevItems, e.topN)

	var breaches []breach
	for _, trend := range report.Trends {
		if reasons := evaluateTrend(trend, &prefs); len(reasons) > 0 {
			breaches = append(breaches, breach{trend: trend, reasons: reasons})
		}
	}

	if len(breaches) == 0 {
		return StateNoTrigger, nil
	}

	// TRIGGERED: one consolidated alert for every breach in this tick.
	if err := e.fire(ctx, &tenant, &prefs, breaches, now); err != nil {
		return StateTriggered, err
	}
	return StateTriggered, nil
}

// evaluateTrend applies the three independent triggers to one category.
// Any single breach is enough; all reasons are collected for the summary.
func evaluateTrend(trend metrics.CategoryTrend, prefs *models.Preferences) []string {
	var reasons []string

	// (a) volume: absolute count, or multiplier growth vs previous window
	if trend.Count >= prefs.IssueThreshold {
		reasons = append(reasons, fmt.Sprintf("%d items (threshold %d)", trend.Count, prefs.IssueThreshold))
	} else if trend.PrevCount > 0 && float64(trend.Count) >= float64(trend.PrevCount)*prefs.VolumeMultiplier {
		reasons = append(reasons, fmt.Sprintf("volume grew %dx over previous window", trend.Count/trend.PrevCount))
	}

	// (b) sentiment: average at or below the floor
	if trend.Count > 0 && trend.AvgSentiment <= prefs.SentimentThreshold {
		reasons = append(reasons, fmt.Sprintf("average sentiment %.1f (threshold %.1f)", trend.AvgSentiment, prefs.SentimentThreshold))
	}

	// (c) comment growth: percentage growth against the previous window when
	// baseline data exists, absolute comment count otherwise.
	if trend.PrevComments > 0 {
		growth := metrics.PercentageChange(trend.PrevComments, trend.TotalComments)
		if growth >= float64(prefs.CommentGrowthThreshold) {
			reasons = append(reasons, fmt.Sprintf("comments grew %.0f%% (threshold %d%%)", growth, prefs.CommentGrowthThreshold))
		}
	} else if trend.TotalComments >= prefs.CommentGrowthThreshold {
		reasons = append(reasons, fmt.Sprintf("%d comments (threshold %d)", trend.TotalComments, prefs.CommentGrowthThreshold))
	}

	return reasons
}

// fire delivers the consolidated alert and records it. The notification
// record and the cooldown timestamp advance in one transaction so a tenant
// can never be double-notified by a crash between the two writes.
func (e *Engine) fire(ctx context.Context, tenant *models.Tenant, prefs *models.Preferences, breaches []breach, now time.Time) error {
	categories := make([]string, 0, len(breaches))
	var itemIDs []uint
	for _, b := range breaches {
		categories = append(categories, b.trend.Category)
		for _, item := range b.trend.TopItems {
			itemIDs = append(itemIDs, item.ID)
		}
	}

	subject := fmt.Sprintf("FeedPulse alert: %d categor%s crossed thresholds", len(breaches), pluralY(len(breaches)))
	body := renderSummary(breaches)

	// Fire-and-forget: a failed delivery is logged and does not roll back the
	// cooldown, otherwise a broken relay would turn into an alert storm.
	if err := e.sink.Deliver(ctx, prefs.Recipients, subject, body); err != nil {
		e.logger.Error("Alert delivery failed",
			"tenant", tenant.Key(),
			"recipients", len(prefs.Recipients),
			"error", err.Error(),
		)
	}

	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := models.NotificationRecord{
			AlertID:        uuid.New().String(),
			TenantID:       tenant.ID,
			Kind:           models.NotificationKindThreshold,
			Categories:     categories,
			ContentItemIDs: itemIDs,
			Recipients:     prefs.Recipients,
			Subject:        subject,
			SentAt:         now,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to write notification record: %w", err)
		}
		if err := tx.Model(&models.Preferences{}).Where("id = ?", prefs.ID).
			Update("last_notified", now).Error; err != nil {
			return fmt.Errorf("failed to advance last_notified: %w", err)
		}
		return nil
	})
}

func renderSummary(breaches []breach) string {
	body := "<h2>Feedback threshold alert</h2>"
	for _, b := range breaches {
		trending := ""
		if b.trend.PctChange > 0 {
			trending = fmt.Sprintf(" &uarr; %.0f%%", b.trend.PctChange)
		}
		body += fmt.Sprintf("<h3>%s: %d items%s</h3>", b.trend.Category, b.trend.Count, trending)
		body += "<p>Triggered by: "
		for i, reason := range b.reasons {
			if i > 0 {
				body += "; "
			}
			body += reason
		}
		body += "</p><ul>"
		for _, item := range b.trend.TopItems {
			body += fmt.Sprintf("<li>%s (score %d, %d comments)</li>", item.Title, item.Score, item.CommentCount)
		}
		body += "</ul>"
	}
	return body
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
