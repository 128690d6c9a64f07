package neynar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchCast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		if got := r.URL.Query().Get("identifier"); got != "0xabc123" {
			t.Errorf("identifier = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"cast": map[string]any{
				"hash":      "0xabc123",
				"text":      "a memorable cast",
				"timestamp": "2026-08-30T10:00:00Z",
				"author": map[string]any{
					"fid":          77,
					"username":     "alice",
					"display_name": "Alice",
					"pfp_url":      "https://img.example.com/alice.png",
				},
				"reactions": map[string]any{"likes_count": 5, "recasts_count": 2},
				"replies":   map[string]any{"count": 3},
				"channel":   map[string]any{"name": "dev"},
				"embeds":    []map[string]any{{"url": "https://example.com/link"}},
			},
		})
	}))
	defer srv.Close()

	c := New("test-key", "").WithBaseURL(srv.URL)
	cast, err := c.FetchCast(context.Background(), "0xabc123")
	if err != nil {
		t.Fatalf("FetchCast: %v", err)
	}
	if cast.Hash != "0xabc123" || cast.Text != "a memorable cast" {
		t.Errorf("cast = %+v", cast)
	}
	if cast.Author.Username != "alice" || cast.Author.FID != 77 {
		t.Errorf("author = %+v", cast.Author)
	}
	if cast.Reactions.LikesCount != 5 || cast.Replies.Count != 3 {
		t.Errorf("engagement = %+v / %+v", cast.Reactions, cast.Replies)
	}
}

func TestFetchCast_NoAPIKey(t *testing.T) {
	c := New("", "")
	if _, err := c.FetchCast(context.Background(), "0xabc"); err == nil {
		t.Fatal("expected error without an api key")
	}
}

func TestFetchCast_MissingCastData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cast": {}}`))
	}))
	defer srv.Close()

	c := New("test-key", "").WithBaseURL(srv.URL)
	if _, err := c.FetchCast(context.Background(), "0xabc"); err == nil {
		t.Fatal("expected error for empty cast payload")
	}
}

func TestPublishCast(t *testing.T) {
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"cast": map[string]string{"hash": "0xnew"}})
	}))
	defer srv.Close()

	c := New("test-key", "signer-1").WithBaseURL(srv.URL)
	hash, err := c.PublishCast(context.Background(), "hello farcaster", "0xparent")
	if err != nil {
		t.Fatalf("PublishCast: %v", err)
	}
	if hash != "0xnew" {
		t.Errorf("hash = %q", hash)
	}
	if gotPayload["signer_uuid"] != "signer-1" || gotPayload["text"] != "hello farcaster" {
		t.Errorf("payload = %v", gotPayload)
	}
	if gotPayload["parent"] != "0xparent" {
		t.Errorf("parent = %v", gotPayload["parent"])
	}
}

func TestPublishCast_TopLevelOmitsParent(t *testing.T) {
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(map[string]any{"cast": map[string]string{"hash": "0xtop"}})
	}))
	defer srv.Close()

	c := New("test-key", "signer-1").WithBaseURL(srv.URL)
	if _, err := c.PublishCast(context.Background(), "standalone", ""); err != nil {
		t.Fatalf("PublishCast: %v", err)
	}
	if _, ok := gotPayload["parent"]; ok {
		t.Error("top-level cast must not carry a parent")
	}
}

func TestPublishCast_NotConfigured(t *testing.T) {
	c := New("test-key", "")
	if _, err := c.PublishCast(context.Background(), "x", ""); err == nil {
		t.Fatal("expected error without a signer uuid")
	}
}

func TestCastSource_FetchCastRef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"cast": map[string]any{
				"hash": "0xref",
				"text": "original content",
				"author": map[string]any{
					"fid":      12,
					"username": "bob",
				},
				"embeds": []map[string]any{{"url": "https://example.com/a"}, {"url": ""}},
			},
		})
	}))
	defer srv.Close()

	src := CastSource{Client: New("test-key", "").WithBaseURL(srv.URL)}
	ref, err := src.FetchCastRef(context.Background(), "0xref")
	if err != nil {
		t.Fatalf("FetchCastRef: %v", err)
	}
	if ref.Hash != "0xref" || ref.Username != "bob" || ref.FID != 12 {
		t.Errorf("ref = %+v", ref)
	}
	if len(ref.EmbedURLs) != 1 || ref.EmbedURLs[0] != "https://example.com/a" {
		t.Errorf("embeds = %v, empty urls should be dropped", ref.EmbedURLs)
	}
}

func TestCastSource_FetchCast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"cast": map[string]any{
				"hash": "0xref",
				"text": "channel cast",
				"author": map[string]any{
					"fid":      12,
					"username": "bob",
				},
				"channel": map[string]any{"name": "books"},
			},
		})
	}))
	defer srv.Close()

	src := CastSource{Client: New("test-key", "").WithBaseURL(srv.URL)}
	cast, err := src.FetchCast(context.Background(), "0xref")
	if err != nil {
		t.Fatalf("FetchCast: %v", err)
	}
	if cast.Channel != "books" {
		t.Errorf("channel = %q", cast.Channel)
	}
	// Display name falls back to the username when unset.
	if cast.AuthorName != "bob" {
		t.Errorf("author name = %q", cast.AuthorName)
	}
}
