package reddit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const listingFixture = `{
	"kind": "Listing",
	"data": {
		"children": [
			{"kind": "t3", "data": {"id": "p1", "title": "Battery drains overnight", "selftext": "body text",
				"author": "alice", "permalink": "/r/gadgets/p1", "created_utc": 1755600000, "score": 12, "num_comments": 3}},
			{"kind": "t3", "data": {"id": "p2", "title": "No author post", "author": "",
				"created_utc": 1755600100, "score": 1, "num_comments": 0}},
			{"kind": "t5", "data": {"id": "not-a-post"}},
			{"kind": "t3", "data": {"title": "missing id, skipped"}}
		]
	}
}`

const commentsFixture = `[
	{"kind": "Listing", "data": {"children": [{"kind": "t3", "data": {"id": "p1"}}]}},
	{"kind": "Listing", "data": {"children": [
		{"kind": "t1", "data": {"id": "c1", "author": "bob", "body": "top comment", "created_utc": 1755600200, "score": 4,
			"replies": {"kind": "Listing", "data": {"children": [
				{"kind": "t1", "data": {"id": "c2", "author": "", "body": "nested reply", "created_utc": 1755600300, "score": 2, "replies": ""}}
			]}}}},
		{"kind": "more", "data": {"id": "stub"}},
		{"kind": "t1", "data": {"id": "c3", "author": "carol", "body": "second top", "created_utc": 1755600400, "score": 1, "replies": ""}}
	]}}
]`

func newFixtureServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "feedpulse-test/1.0" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		switch r.URL.Path {
		case "/r/gadgets/new.json", "/r/gadgets/search.json":
			w.Write([]byte(listingFixture))
		case "/comments/p1.json":
			w.Write([]byte(commentsFixture))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, "feedpulse-test/1.0")
}

func TestFetchNewNormalizesListing(t *testing.T) {
	_, client := newFixtureServer(t)

	posts, err := client.FetchNew(context.Background(), "gadgets", 25)
	if err != nil {
		t.Fatalf("FetchNew: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2 (non-posts and id-less children skipped)", len(posts))
	}

	p := posts[0]
	if p.ExternalID != "p1" || p.Channel != "gadgets" {
		t.Errorf("post = %+v", p)
	}
	if p.Title != "Battery drains overnight" || p.Score != 12 || p.CommentCount != 3 {
		t.Errorf("post fields = %+v", p)
	}
	if p.PostedAt != time.Unix(1755600000, 0).UTC() {
		t.Errorf("posted at = %v", p.PostedAt)
	}

	if posts[1].Author != DeletedAuthor {
		t.Errorf("blank author = %q, want %q", posts[1].Author, DeletedAuthor)
	}
}

func TestSearchSendsQueryParams(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		if r.URL.Query().Get("restrict_sr") != "on" || r.URL.Query().Get("sort") != "new" {
			t.Errorf("search params = %v", r.URL.Query())
		}
		w.Write([]byte(listingFixture))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "feedpulse-test/1.0")
	if _, err := client.Search(context.Background(), "gadgets", "battery OR screen", 25); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "battery OR screen" {
		t.Errorf("q = %q", gotQuery)
	}
}

func TestFetchReplyTreeFlattensParentFirst(t *testing.T) {
	_, client := newFixtureServer(t)

	comments, err := client.FetchReplyTree(context.Background(), "p1")
	if err != nil {
		t.Fatalf("FetchReplyTree: %v", err)
	}
	if len(comments) != 3 {
		t.Fatalf("got %d comments, want 3 (more-stub skipped)", len(comments))
	}

	if comments[0].ExternalID != "c1" || comments[0].ParentID != "" {
		t.Errorf("comments[0] = %+v", comments[0])
	}
	if comments[1].ExternalID != "c2" || comments[1].ParentID != "c1" {
		t.Errorf("nested reply must follow its parent: %+v", comments[1])
	}
	if comments[1].Author != DeletedAuthor {
		t.Errorf("blank comment author = %q", comments[1].Author)
	}
	if comments[2].ExternalID != "c3" || comments[2].ParentID != "" {
		t.Errorf("comments[2] = %+v", comments[2])
	}

	// Parent-before-child holds across the whole flattened slice
	seen := map[string]bool{}
	for _, c := range comments {
		if c.ParentID != "" && !seen[c.ParentID] {
			t.Errorf("comment %s appeared before parent %s", c.ExternalID, c.ParentID)
		}
		seen[c.ExternalID] = true
	}
}

func TestClientSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "feedpulse-test/1.0")
	if _, err := client.FetchNew(context.Background(), "gadgets", 25); err == nil {
		t.Fatal("expected error on 429")
	}
}
