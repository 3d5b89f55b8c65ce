// Package reddit implements the content source client: recent-post listings,
// keyword search and reply-tree fetches against the Reddit JSON API.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the Reddit JSON API. Reddit requires a descriptive
// User-Agent and throttles aggressively, so callers are expected to pace
// their requests (the ingestion worker inserts fixed inter-call delays).
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a new Reddit client with the given base URL and user agent
func NewClient(baseURL, userAgent string) *Client {
	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchNew returns the most recent posts in a channel (subreddit).
func (c *Client) FetchNew(ctx context.Context, channel string, limit int) ([]Post, error) {
	endpoint := fmt.Sprintf("%s/r/%s/new.json?limit=%d", c.baseURL, url.PathEscape(channel), limit)

	var listing thing
	if err := c.get(ctx, endpoint, &listing); err != nil {
		return nil, fmt.Errorf("failed to fetch new posts for r/%s: %w", channel, err)
	}
	return postsFromListing(channel, listing), nil
}

// Search returns posts in a channel matching the query, newest first.
func (c *Client) Search(ctx context.Context, channel, query string, limit int) ([]Post, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("restrict_sr", "on")
	params.Set("sort", "new")
	params.Set("limit", fmt.Sprintf("%d", limit))
	endpoint := fmt.Sprintf("%s/r/%s/search.json?%s", c.baseURL, url.PathEscape(channel), params.Encode())

	var listing thing
	if err := c.get(ctx, endpoint, &listing); err != nil {
		return nil, fmt.Errorf("failed to search r/%s: %w", channel, err)
	}
	return postsFromListing(channel, listing), nil
}

// FetchReplyTree returns the flattened comment tree for a post. Comments are
// ordered parent-before-child; each carries the external ID of its parent
// comment, or "" for top-level comments.
func (c *Client) FetchReplyTree(ctx context.Context, itemID string) ([]Comment, error) {
	endpoint := fmt.Sprintf("%s/comments/%s.json?limit=500", c.baseURL, url.PathEscape(itemID))

	// The comments endpoint returns a two-element array: the post listing
	// followed by the comment listing.
	var payload []thing
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch reply tree for %s: %w", itemID, err)
	}
	if len(payload) < 2 {
		return nil, nil
	}

	fetchedAt := time.Now().UTC()
	var comments []Comment
	flattenComments(payload[1], "", fetchedAt, &comments)
	return comments, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("reddit returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
