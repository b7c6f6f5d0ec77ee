package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gaurav-prasanna/confchunk/core"
)

var _ core.Fetcher = (*Client)(nil)

func listingPayload(ids ...string) map[string]any {
	results := make([]map[string]any, len(ids))
	for i, id := range ids {
		results[i] = map[string]any{"id": id}
	}
	return map[string]any{"results": results, "size": len(ids)}
}

func TestListPageIDsPaginates(t *testing.T) {
	var starts []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/content" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		starts = append(starts, start)

		var payload map[string]any
		switch start {
		case 0:
			payload = listingPayload("1", "2")
		case 2:
			payload = listingPayload("3")
		default:
			payload = listingPayload()
		}
		json.NewEncoder(w).Encode(payload)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, PageLimit: 2})
	ids, err := c.ListPageIDs(context.Background())
	if err != nil {
		t.Fatalf("ListPageIDs: %v", err)
	}
	if len(ids) != 3 || ids[0] != "1" || ids[2] != "3" {
		t.Errorf("ids = %v", ids)
	}
	// Second window had fewer results than the limit, so no third request.
	if len(starts) != 2 || starts[0] != 0 || starts[1] != 2 {
		t.Errorf("starts = %v", starts)
	}
}

func TestFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/content/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("auth header = %q", got)
		}
		if got := r.URL.Query().Get("expand"); got != "body.view,version,space" {
			t.Errorf("expand = %q", got)
		}
		fmt.Fprint(w, `{
			"id": "42",
			"title": "Runbook",
			"space": {"key": "OPS", "name": "Operations"},
			"version": {"number": 7, "when": "2024-03-01T12:00:00Z"},
			"body": {"view": {"value": "<p>hello</p>"}},
			"_links": {"webui": "/pages/42"}
		}`)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, AuthToken: "Bearer secret"})
	page, err := c.FetchPage(context.Background(), "42")
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if page.ID != "42" || page.Title != "Runbook" || page.SpaceKey != "OPS" {
		t.Errorf("page = %+v", page)
	}
	if page.Version != 7 || page.LastModified != "2024-03-01T12:00:00Z" {
		t.Errorf("version fields = %d %q", page.Version, page.LastModified)
	}
	if page.BodyHTML != "<p>hello</p>" {
		t.Errorf("body = %q", page.BodyHTML)
	}
	if page.URL != srv.URL+"/pages/42" {
		t.Errorf("url = %q", page.URL)
	}
}

func TestFetchPageNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	page, err := c.FetchPage(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected nil error for 404, got %v", err)
	}
	if page != nil {
		t.Errorf("expected nil page, got %+v", page)
	}
}

func TestFetchPageRetriesServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"id": "1", "title": "Recovered", "version": {"number": 1}}`)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, MaxRetries: 2, Timeout: 5 * time.Second})
	page, err := c.FetchPage(context.Background(), "1")
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if page == nil || page.Title != "Recovered" {
		t.Errorf("page = %+v", page)
	}
}

func TestFetchPageClientErrorNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, MaxRetries: 3})
	if _, err := c.FetchPage(context.Background(), "1"); err == nil {
		t.Fatal("expected error for 403")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
