package reddit

import (
	"encoding/json"
	"strings"
	"time"
)

// DeletedAuthor is substituted when the source omits or blanks the author.
const DeletedAuthor = "[deleted]"

// Post is a normalized content record from a channel listing.
type Post struct {
	ExternalID   string
	Channel      string
	Title        string
	Body         string
	Author       string
	Permalink    string
	PostedAt     time.Time
	Score        int
	CommentCount int
}

// Comment is a normalized node of a reply tree. ParentID is the external ID
// of the parent comment, or "" for top-level comments. Flattened trees are
// ordered so a parent always precedes its children.
type Comment struct {
	ExternalID string
	ParentID   string
	Author     string
	Body       string
	PostedAt   time.Time
	Score      int
}

// thing is the generic Reddit API envelope: a kind tag plus payload.
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listingData struct {
	Children []thing `json:"children"`
}

type postData struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Permalink   string  `json:"permalink"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
}

type commentData struct {
	ID         string          `json:"id"`
	Author     string          `json:"author"`
	Body       string          `json:"body"`
	CreatedUTC float64         `json:"created_utc"`
	Score      int             `json:"score"`
	Replies    json.RawMessage `json:"replies"`
}

// postsFromListing normalizes a post listing. A malformed child is skipped,
// never fatal for the rest of the page.
func postsFromListing(channel string, t thing) []Post {
	var listing listingData
	if err := json.Unmarshal(t.Data, &listing); err != nil {
		return nil
	}

	fetchedAt := time.Now().UTC()
	posts := make([]Post, 0, len(listing.Children))
	for _, child := range listing.Children {
		if child.Kind != "t3" {
			continue
		}
		var data postData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			continue
		}
		if data.ID == "" {
			continue
		}
		posts = append(posts, Post{
			ExternalID:   data.ID,
			Channel:      channel,
			Title:        data.Title,
			Body:         data.Selftext,
			Author:       normalizeAuthor(data.Author),
			Permalink:    data.Permalink,
			PostedAt:     normalizeTime(data.CreatedUTC, fetchedAt),
			Score:        data.Score,
			CommentCount: data.NumComments,
		})
	}
	return posts
}

// flattenComments walks a comment listing depth-first, appending each comment
// before descending into its replies so parents always precede children.
func flattenComments(t thing, parentID string, fetchedAt time.Time, out *[]Comment) {
	var listing listingData
	if err := json.Unmarshal(t.Data, &listing); err != nil {
		return
	}

	for _, child := range listing.Children {
		// "more" stubs and anything unexpected are skipped
		if child.Kind != "t1" {
			continue
		}
		var data commentData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			continue
		}
		if data.ID == "" {
			continue
		}

		*out = append(*out, Comment{
			ExternalID: data.ID,
			ParentID:   parentID,
			Author:     normalizeAuthor(data.Author),
			Body:       data.Body,
			PostedAt:   normalizeTime(data.CreatedUTC, fetchedAt),
			Score:      data.Score,
		})

		// Replies is either a nested listing or an empty string
		if len(data.Replies) > 0 && data.Replies[0] == '{' {
			var replies thing
			if err := json.Unmarshal(data.Replies, &replies); err == nil {
				flattenComments(replies, data.ID, fetchedAt, out)
			}
		}
	}
}

func normalizeAuthor(author string) string {
	if strings.TrimSpace(author) == "" {
		return DeletedAuthor
	}
	return author
}

func normalizeTime(createdUTC float64, fallback time.Time) time.Time {
	if createdUTC <= 0 {
		return fallback
	}
	return time.Unix(int64(createdUTC), 0).UTC()
}
