package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/feedpulse/feedpulse/internal/models"
	"github.com/feedpulse/feedpulse/internal/notify"
	"github.com/feedpulse/feedpulse/internal/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// maxConsecutiveFailures aborts the run with a hard error once this many
// batches fail back to back.
const maxConsecutiveFailures = 3

// ErrTooManyBatchFailures is the hard error surfaced to the scheduler when
// consecutive batch failures exhaust the budget.
var ErrTooManyBatchFailures = errors.New("too many consecutive batch failures")

// Runner drives one tenant's classification pass: select pending items in
// priority order, classify them in batches, and apply each batch atomically.
type Runner struct {
	db         *gorm.DB
	classifier Classifier
	sink       notify.Sink
	logger     *slog.Logger
	batchSize  int
	batchDelay time.Duration
	acceptance float64
}

// NewRunner creates a runner. acceptance is the bucket-suggestion confidence
// threshold; suggestions at or below it are discarded.
func NewRunner(db *gorm.DB, classifier Classifier, sink notify.Sink, logger *slog.Logger, batchSize int, batchDelay time.Duration, acceptance float64) *Runner {
	return &Runner{
		db:         db,
		classifier: classifier,
		sink:       sink,
		logger:     logger,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		acceptance: acceptance,
	}
}

// Run classifies all pending items for the tenant. With zero configured
// categories it short-circuits: every pending item is marked Noise and
// cleared. No configuration means no classification is possible, which is a
// policy branch, not an error.
func (r *Runner) Run(ctx context.Context, tenantID uint) error {
	var tenant models.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, tenantID).Error; err != nil {
		return fmt.Errorf("failed to load tenant %d: %w", tenantID, err)
	}

	var categories []models.FeedbackCategory
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&categories).Error; err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}

	if len(categories) == 0 {
		return r.markAllNoise(ctx, &tenant)
	}

	var products []models.ProductCategory
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&products).Error; err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}
	var buckets []models.Bucket
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&buckets).Error; err != nil {
		return fmt.Errorf("failed to load buckets: %w", err)
	}

	bucketByName := make(map[string]*models.Bucket, len(buckets))
	for i := range buckets {
		bucketByName[buckets[i].Name] = &buckets[i]
	}

	categoryDefs := categoryDefinitions(categories)
	productDefs := productDefinitions(products)
	bucketDefs := bucketDefinitions(buckets)

	pending, err := store.CountPending(r.db.WithContext(ctx), tenantID)
	if err != nil {
		return err
	}
	maxBatches := int((pending + int64(r.batchSize) - 1) / int64(r.batchSize))

	consecutiveFailures := 0

	for i := 0; i < maxBatches; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.batchDelay):
			}
		}

		batch, err := store.PendingBatch(r.db.WithContext(ctx), tenantID, r.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}

		bucketed, err := r.processBatch(ctx, &tenant, batch, categoryDefs, productDefs, bucketDefs, bucketByName)
		if err != nil {
			consecutiveFailures++
			r.logger.Error("Classification batch failed",
				"tenant", tenant.Key(),
				"batch_size", len(batch),
				"consecutive_failures", consecutiveFailures,
				"error", err.Error(),
			)
			if bumpErr := r.bumpPriorities(ctx, batch); bumpErr != nil {
				r.logger.Error("Failed to bump batch priorities", "tenant", tenant.Key(), "error", bumpErr.Error())
			}
			if consecutiveFailures >= maxConsecutiveFailures {
				return fmt.Errorf("%w for tenant %s: %v", ErrTooManyBatchFailures, tenant.Key(), err)
			}
			continue
		}
		consecutiveFailures = 0

		// Notify per batch so memberships committed before a later abort
		// still produce their summary.
		if len(bucketed) > 0 {
			r.notifyBucketed(ctx, &tenant, bucketed)
		}
	}
	return nil
}

// processBatch classifies one batch and applies every result in a single
// transaction: either the whole batch's effects become visible or none do.
// It returns the bucket memberships the transaction committed, keyed by
// bucket name; on error nothing was committed and the map is nil.
func (r *Runner) processBatch(ctx context.Context, tenant *models.Tenant, batch []models.ContentItem,
	categoryDefs, productDefs, bucketDefs []Definition, bucketByName map[string]*models.Bucket) (map[string][]string, error) {

	inputs := make([]Item, 0, len(batch))
	byID := make(map[uint]*models.ContentItem, len(batch))
	for i := range batch {
		item := &batch[i]
		byID[item.ID] = item
		inputs = append(inputs, Item{
			ID:      item.ID,
			Channel: item.Channel,
			Title:   item.Title,
			Body:    item.Body,
		})
	}

	results, err := r.classifier.Classify(ctx, inputs, categoryDefs, productDefs, bucketDefs)
	if err != nil {
		return nil, fmt.Errorf("classifier call failed: %w", err)
	}

	bucketed := make(map[string][]string)
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, result := range results {
			item, ok := byID[result.ItemID]
			if !ok {
				r.logger.Warn("Classifier returned result for item outside the batch",
					"tenant", tenant.Key(), "item_id", result.ItemID)
				continue
			}

			accepted := false
			for _, suggestion := range result.Buckets {
				if suggestion.Confidence <= r.acceptance {
					continue
				}
				bucket, ok := bucketByName[suggestion.Bucket]
				if !ok {
					r.logger.Warn("Classifier suggested unknown bucket",
						"tenant", tenant.Key(), "bucket", suggestion.Bucket)
					continue
				}
				membership := models.BucketItem{
					BucketID:      bucket.ID,
					ContentItemID: item.ID,
					Confidence:    suggestion.Confidence,
					AddedByAI:     true,
				}
				if err := tx.Where("bucket_id = ? AND content_item_id = ?", bucket.ID, item.ID).
					FirstOrCreate(&membership).Error; err != nil {
					return fmt.Errorf("failed to commit bucket membership: %w", err)
				}
				accepted = true
				bucketed[bucket.Name] = append(bucketed[bucket.Name], item.Title)
			}

			updates := map[string]interface{}{
				"category":         result.Category,
				"product":          result.Product,
				"sentiment_score":  result.SentimentScore,
				"sentiment_label":  SentimentLabel(result.SentimentScore),
				"issue_mentions":   result.IssueMentions,
				"request_mentions": result.RequestMentions,
				"needs_processing": false,
			}
			if accepted {
				updates["added_to_bucket_by_ai"] = true
			}
			if err := tx.Model(&models.ContentItem{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to apply classification for item %d: %w", item.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bucketed, nil
}

// bumpPriorities deprioritizes every item of a failed batch so retries come
// after fresh failures elsewhere, without starving newer items forever.
func (r *Runner) bumpPriorities(ctx context.Context, batch []models.ContentItem) error {
	ids := make([]uint, 0, len(batch))
	for _, item := range batch {
		ids = append(ids, item.ID)
	}
	return r.db.WithContext(ctx).Model(&models.ContentItem{}).
		Where("id IN ?", ids).
		UpdateColumn("processing_priority", gorm.Expr("processing_priority + 1")).Error
}

// markAllNoise is the zero-configuration policy: all pending items become
// Noise/Noise and leave the processing queue in one bulk update.
func (r *Runner) markAllNoise(ctx context.Context, tenant *models.Tenant) error {
	result := r.db.WithContext(ctx).Model(&models.ContentItem{}).
		Where("tenant_id = ? AND needs_processing = ?", tenant.ID, true).
		Updates(map[string]interface{}{
			"category":         models.CategoryNoise,
			"product":          models.CategoryNoise,
			"needs_processing": false,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark pending items as noise: %w", result.Error)
	}

	r.logger.Info("No categories configured, marked pending items as noise",
		"tenant", tenant.Key(),
		"items", result.RowsAffected,
	)
	return nil
}

// notifyBucketed sends the AI-bucketing summary through the notification
// sink and records the send. Missing recipients is a config state, not an
// error.
func (r *Runner) notifyBucketed(ctx context.Context, tenant *models.Tenant, bucketed map[string][]string) {
	var prefs models.Preferences
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenant.ID).First(&prefs).Error; err != nil {
		r.logger.Warn("No preferences for bucket notification", "tenant", tenant.Key(), "error", err.Error())
		return
	}
	if !prefs.NotificationsEnabled || len(prefs.Recipients) == 0 {
		r.logger.Info("Bucket notification skipped, no recipients configured", "tenant", tenant.Key())
		return
	}

	names := make([]string, 0, len(bucketed))
	for name := range bucketed {
		names = append(names, name)
	}
	sort.Strings(names)

	subject := fmt.Sprintf("FeedPulse: %d bucket(s) received new items", len(names))
	body := renderBucketSummary(names, bucketed)

	if err := r.sink.Deliver(ctx, prefs.Recipients, subject, body); err != nil {
		r.logger.Error("Bucket notification delivery failed",
			"tenant", tenant.Key(),
			"error", err.Error(),
		)
		return
	}

	record := models.NotificationRecord{
		AlertID:    uuid.New().String(),
		TenantID:   tenant.ID,
		Kind:       models.NotificationKindBucket,
		Categories: names,
		Recipients: prefs.Recipients,
		Subject:    subject,
		SentAt:     time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		r.logger.Error("Failed to record bucket notification", "tenant", tenant.Key(), "error", err.Error())
	}
}

func renderBucketSummary(names []string, bucketed map[string][]string) string {
	body := "<h2>New AI-suggested bucket items</h2>"
	for _, name := range names {
		body += fmt.Sprintf("<h3>%s</h3><ul>", name)
		for _, title := range bucketed[name] {
			body += fmt.Sprintf("<li>%s</li>", title)
		}
		body += "</ul>"
	}
	return body
}

func categoryDefinitions(categories []models.FeedbackCategory) []Definition {
	defs := make([]Definition, 0, len(categories))
	for _, c := range categories {
		defs = append(defs, Definition{Name: c.Name, Description: c.Description})
	}
	return defs
}

func productDefinitions(products []models.ProductCategory) []Definition {
	defs := make([]Definition, 0, len(products))
	for _, p := range products {
		defs = append(defs, Definition{Name: p.Name, Description: p.Description})
	}
	return defs
}

func bucketDefinitions(buckets []models.Bucket) []Definition {
	defs := make([]Definition, 0, len(buckets))
	for _, b := range buckets {
		defs = append(defs, Definition{Name: b.Name, Description: b.Description})
	}
	return defs
}
