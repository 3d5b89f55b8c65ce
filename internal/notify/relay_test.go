package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRelayDeliver(t *testing.T) {
	var gotSecret string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("X-Notify-Secret")
		if r.URL.Path != "/send" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	relay := NewRelay(srv.URL, "topsecret", false)
	err := relay.Deliver(context.Background(), []string{"a@example.com", "b@example.com"}, "subject line", "<p>hi</p>")
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if gotSecret != "topsecret" {
		t.Errorf("secret header = %q", gotSecret)
	}
	if gotBody["subject"] != "subject line" || gotBody["body_html"] != "<p>hi</p>" {
		t.Errorf("body = %v", gotBody)
	}
	if recipients, ok := gotBody["recipients"].([]interface{}); !ok || len(recipients) != 2 {
		t.Errorf("recipients = %v", gotBody["recipients"])
	}
}

func TestRelayRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "relay exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	relay := NewRelay(srv.URL, "", false)
	if err := relay.Deliver(context.Background(), []string{"a@example.com"}, "s", "b"); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestRelayStubModeSkipsHTTP(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	relay := NewRelay(srv.URL, "", true)
	if err := relay.Deliver(context.Background(), []string{"a@example.com"}, "s", "b"); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if calls != 0 {
		t.Errorf("stub mode made %d HTTP calls", calls)
	}
}
