// Package ingest pulls new posts for a tenant's watched channels and
// idempotently persists them together with their reply trees.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/feedpulse/feedpulse/internal/models"
	"github.com/feedpulse/feedpulse/internal/reddit"
)

// Source is the content source contract the fetcher depends on.
type Source interface {
	FetchNew(ctx context.Context, channel string, limit int) ([]reddit.Post, error)
	Search(ctx context.Context, channel, query string, limit int) ([]reddit.Post, error)
	FetchReplyTree(ctx context.Context, itemID string) ([]reddit.Comment, error)
}

// Fetcher pulls new items for a list of watched channels. Channels with a
// keyword filter use search (newest first); channels without pull the recent
// listing. Each channel is isolated: a failing channel logs and contributes
// an empty result instead of aborting the tenant's run.
type Fetcher struct {
	src          Source
	logger       *slog.Logger
	pageSize     int
	channelDelay time.Duration
}

// NewFetcher creates a fetcher with the given page size and inter-channel
// delay. The delay is a rate-limit compliance mechanism, not incidental sleep.
func NewFetcher(src Source, logger *slog.Logger, pageSize int, channelDelay time.Duration) *Fetcher {
	return &Fetcher{
		src:          src,
		logger:       logger,
		pageSize:     pageSize,
		channelDelay: channelDelay,
	}
}

// Run fetches every watched channel and returns the per-channel results.
func (f *Fetcher) Run(ctx context.Context, tenant *models.Tenant, channels []models.WatchedChannel) map[string][]reddit.Post {
	results := make(map[string][]reddit.Post, len(channels))

	for i, channel := range channels {
		if i > 0 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(f.channelDelay):
			}
		}

		posts, err := f.fetchChannel(ctx, channel)
		if err != nil {
			f.logger.Error("Channel fetch failed, continuing with empty result",
				"tenant", tenant.Key(),
				"channel", channel.Name,
				"error", err.Error(),
			)
			results[channel.Name] = nil
			continue
		}

		f.logger.Info("Fetched channel",
			"tenant", tenant.Key(),
			"channel", channel.Name,
			"posts", len(posts),
		)
		results[channel.Name] = posts
	}

	return results
}

func (f *Fetcher) fetchChannel(ctx context.Context, channel models.WatchedChannel) ([]reddit.Post, error) {
	if query := channel.Query(); query != "" {
		return f.src.Search(ctx, channel.Name, query, f.pageSize)
	}
	return f.src.FetchNew(ctx, channel.Name, f.pageSize)
}
