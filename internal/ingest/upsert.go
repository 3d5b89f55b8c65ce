package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/feedpulse/feedpulse/internal/models"
	"github.com/feedpulse/feedpulse/internal/reddit"
	"gorm.io/gorm"
)

// ErrOrphanReply is returned when a reply references a parent that was never
// persisted for the same content item. Orphans fail loudly instead of being
// silently written with a broken tree.
var ErrOrphanReply = errors.New("reply parent not persisted")

// Upserter persists fetched posts and their reply trees. Posts and replies
// are upserted by external ID: created rows get the full field set, existing
// rows only refresh score/comment-count/last-updated so re-fetching never
// un-classifies an item.
type Upserter struct {
	db         *gorm.DB
	src        Source
	logger     *slog.Logger
	replyDelay time.Duration
}

// NewUpserter creates an upserter. replyDelay paces the per-post reply-tree
// fetches against the source's rate limits.
func NewUpserter(db *gorm.DB, src Source, logger *slog.Logger, replyDelay time.Duration) *Upserter {
	return &Upserter{
		db:         db,
		src:        src,
		logger:     logger,
		replyDelay: replyDelay,
	}
}

// Ingest persists every fetched post and its reply tree. A failure on one
// post is logged and does not stop the remaining posts; the joined error is
// returned at the end so the scheduler's failure handler can downgrade the
// tenant once retries are exhausted.
func (u *Upserter) Ingest(ctx context.Context, tenant *models.Tenant, byChannel map[string][]reddit.Post) error {
	var errs []error
	first := true

	for channel, posts := range byChannel {
		for _, post := range posts {
			if !first {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(u.replyDelay):
				}
			}
			first = false

			if err := u.ingestPost(ctx, tenant, channel, post); err != nil {
				u.logger.Error("Post ingestion failed, continuing with batch",
					"tenant", tenant.Key(),
					"channel", channel,
					"external_id", post.ExternalID,
					"error", err.Error(),
				)
				errs = append(errs, fmt.Errorf("post %s: %w", post.ExternalID, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("ingestion completed with %d failed posts: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func (u *Upserter) ingestPost(ctx context.Context, tenant *models.Tenant, channel string, post reddit.Post) error {
	item, err := u.UpsertPost(ctx, tenant.ID, channel, post)
	if err != nil {
		return err
	}

	comments, err := u.src.FetchReplyTree(ctx, post.ExternalID)
	if err != nil {
		return fmt.Errorf("failed to fetch reply tree: %w", err)
	}

	return u.UpsertReplies(ctx, item, comments)
}

// UpsertPost creates or refreshes a content item by external ID. On create,
// all fields are set and the item is queued for classification
// (needs_processing=true, priority 0). On update only score, comment count
// and last_updated are refreshed; origin and classification fields stay
// untouched.
func (u *Upserter) UpsertPost(ctx context.Context, tenantID uint, channel string, post reddit.Post) (*models.ContentItem, error) {
	now := time.Now().UTC()

	var item models.ContentItem
	err := u.db.WithContext(ctx).Where("external_id = ?", post.ExternalID).First(&item).Error
	if err == nil {
		updates := map[string]interface{}{
			"score":         post.Score,
			"comment_count": post.CommentCount,
			"last_updated":  now,
		}
		if err := u.db.WithContext(ctx).Model(&item).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to refresh content item: %w", err)
		}
		return &item, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up content item: %w", err)
	}

	item = models.ContentItem{
		TenantID:           tenantID,
		Channel:            channel,
		ExternalID:         post.ExternalID,
		Title:              post.Title,
		Body:               post.Body,
		Author:             post.Author,
		Permalink:          post.Permalink,
		PostedAt:           post.PostedAt,
		Score:              post.Score,
		CommentCount:       post.CommentCount,
		LastUpdated:        now,
		NeedsProcessing:    true,
		ProcessingPriority: 0,
	}
	if err := u.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, fmt.Errorf("failed to create content item: %w", err)
	}
	return &item, nil
}

// UpsertReplies persists a flattened reply tree for one content item.
// Comments must arrive parent-before-child (the source client guarantees
// this); a child whose parent is neither in this batch nor already persisted
// returns ErrOrphanReply.
func (u *Upserter) UpsertReplies(ctx context.Context, item *models.ContentItem, comments []reddit.Comment) error {
	// Arena of external ID -> persisted row ID, seeded from what is already
	// stored for this item so partial earlier runs still resolve parents.
	persisted := make(map[string]uint)

	var existing []models.Reply
	if err := u.db.WithContext(ctx).Where("content_item_id = ?", item.ID).Find(&existing).Error; err != nil {
		return fmt.Errorf("failed to load existing replies: %w", err)
	}
	for _, r := range existing {
		persisted[r.ExternalID] = r.ID
	}

	now := time.Now().UTC()
	for _, comment := range comments {
		var parentID *uint
		if comment.ParentID != "" {
			pid, ok := persisted[comment.ParentID]
			if !ok {
				return fmt.Errorf("%w: reply %s references parent %s on item %s",
					ErrOrphanReply, comment.ExternalID, comment.ParentID, item.ExternalID)
			}
			parentID = &pid
		}

		if id, ok := persisted[comment.ExternalID]; ok {
			updates := map[string]interface{}{
				"score":        comment.Score,
				"last_updated": now,
			}
			if err := u.db.WithContext(ctx).Model(&models.Reply{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to refresh reply %s: %w", comment.ExternalID, err)
			}
			continue
		}

		reply := models.Reply{
			ContentItemID: item.ID,
			ExternalID:    comment.ExternalID,
			ParentReplyID: parentID,
			Author:        comment.Author,
			Body:          comment.Body,
			PostedAt:      comment.PostedAt,
			Score:         comment.Score,
			LastUpdated:   now,
		}
		if err := u.db.WithContext(ctx).Create(&reply).Error; err != nil {
			return fmt.Errorf("failed to create reply %s: %w", comment.ExternalID, err)
		}
		persisted[comment.ExternalID] = reply.ID
	}

	return nil
}
