// Package classify batches unclassified content items through the external
// classifier and applies the results transactionally.
package classify

import (
	"context"

	"github.com/feedpulse/feedpulse/internal/models"
)

// Item is the per-post input handed to the classifier.
type Item struct {
	ID      uint   `json:"id"`
	Channel string `json:"channel"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

// Definition describes one tenant-configured category, product or bucket.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// BucketSuggestion is an AI-proposed bucket membership with its confidence.
// Only suggestions above the acceptance threshold are committed.
type BucketSuggestion struct {
	Bucket     string  `json:"bucket"`
	Confidence float64 `json:"confidence"`
}

// Result is the structured classification for one item. SentimentScore is on
// a 0-5 scale; IssueMentions/RequestMentions are the derived counters
// (complaints vs feature asks observed in the thread).
type Result struct {
	ItemID          uint               `json:"item_id"`
	Category        string             `json:"category"`
	Product         string             `json:"product"`
	SentimentScore  float64            `json:"sentiment_score"`
	IssueMentions   int                `json:"issue_mentions"`
	RequestMentions int                `json:"request_mentions"`
	Buckets         []BucketSuggestion `json:"buckets,omitempty"`
}

// Classifier is the external classification contract.
type Classifier interface {
	Classify(ctx context.Context, items []Item, categories, products, buckets []Definition) ([]Result, error)
}

// SentimentLabel maps the 0-5 sentiment score to its 3-way label:
// below 2.5 Negative, up to 3.5 Neutral, above Positive.
func SentimentLabel(score float64) string {
	switch {
	case score < 2.5:
		return models.SentimentNegative
	case score <= 3.5:
		return models.SentimentNeutral
	default:
		return models.SentimentPositive
	}
}
