package models

import (
	"time"

	"gorm.io/gorm"
)

// Sentiment label constants (3-way mapping of the 0-5 classifier score)
const (
	SentimentNegative = "Negative"
	SentimentNeutral  = "Neutral"
	SentimentPositive = "Positive"
)

// ContentItem is an ingested post. Origin fields (author, posted time,
// permalink) are immutable after creation; re-fetching only refreshes score,
// comment count and last_updated. Classification fields are owned by the
// classifier and never touched by ingestion.
type ContentItem struct {
	gorm.Model
	TenantID   uint   `gorm:"not null;index"`
	Tenant     Tenant `gorm:"constraint:OnDelete:CASCADE;"`
	Channel    string `gorm:"not null;index"`
	ExternalID string `gorm:"not null;uniqueIndex"`

	// Immutable origin fields
	Title     string    `gorm:"type:text;not null"`
	Body      string    `gorm:"type:text"`
	Author    string    `gorm:"not null;default:''"`
	Permalink string    `gorm:"not null;default:''"`
	PostedAt  time.Time `gorm:"not null"`

	// Refreshed on every ingestion pass
	Score        int       `gorm:"not null;default:0"`
	CommentCount int       `gorm:"not null;default:0"`
	LastUpdated  time.Time

	// Processing state
	NeedsProcessing    bool `gorm:"not null;default:true;index"`
	ProcessingPriority int  `gorm:"not null;default:0"`

	// Classification outputs
	Category          string  `gorm:"index"`
	Product           string
	SentimentScore    float64
	SentimentLabel    string
	IssueMentions     int
	RequestMentions   int
	AddedToBucketByAI bool `gorm:"not null;default:false"`

	Replies []Reply `gorm:"constraint:OnDelete:CASCADE;"`
}

// Engagement is the score used to rank items within a category window.
func (c *ContentItem) Engagement() int {
	return c.Score + c.CommentCount
}

// Reply is a comment in a content item's reply tree. ParentReplyID forms a
// self-referencing tree; a parent, when set, always belongs to the same
// content item and is persisted before its children.
type Reply struct {
	gorm.Model
	ContentItemID uint   `gorm:"not null;index"`
	ExternalID    string `gorm:"not null;uniqueIndex"`
	ParentReplyID *uint  `gorm:"index"`

	// Immutable origin fields
	Author   string    `gorm:"not null;default:''"`
	Body     string    `gorm:"type:text"`
	PostedAt time.Time `gorm:"not null"`

	// Refreshed on every ingestion pass
	Score       int `gorm:"not null;default:0"`
	LastUpdated time.Time
}
