package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/TobiSchelling/TickerPulse/internal/config"
	"github.com/TobiSchelling/TickerPulse/internal/logger"
)

type pageHandler func(w http.ResponseWriter, r *http.Request, call int)

func newsAPIServer(t *testing.T, h pageHandler) (*httptest.Server, *[]*http.Request) {
	t.Helper()
	var mu sync.Mutex
	var reqs []*http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqs = append(reqs, r)
		call := len(reqs)
		mu.Unlock()
		h(w, r, call)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func newTestNewsAPI(t *testing.T, baseURL string, pageSize, maxPages int) *NewsAPISource {
	t.Helper()
	t.Setenv("TICKERPULSE_TEST_NEWSAPI", "test-key")
	s := NewNewsAPISource(config.NewsAPIConfig{
		Enabled:      true,
		APIKeyEnv:    "TICKERPULSE_TEST_NEWSAPI",
		BaseURL:      baseURL,
		Language:     "en",
		LookbackDays: 10,
		StepDays:     5,
		MaxPages:     maxPages,
		PageSize:     pageSize,
	}, logger.Discard())
	s.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	return s
}

func writeArticles(w http.ResponseWriter, n int, prefix string) {
	var articles []map[string]any
	for i := 0; i < n; i++ {
		articles = append(articles, map[string]any{
			"source":      map[string]string{"name": "Reuters"},
			"author":      "Jane Doe",
			"title":       fmt.Sprintf("%s headline %d", prefix, i),
			"description": "desc",
			"url":         fmt.Sprintf("https://news.example/%s/%d", prefix, i),
			"publishedAt": "2024-03-05T14:30:00Z",
			"content":     "snippet [+120 chars]",
		})
	}
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "totalResults": n, "articles": articles})
}

func TestNewsAPIFetchesEachWindow(t *testing.T) {
	srv, reqs := newsAPIServer(t, func(w http.ResponseWriter, r *http.Request, call int) {
		writeArticles(w, 1, fmt.Sprintf("w%d", call))
	})
	s := newTestNewsAPI(t, srv.URL, 100, 1)

	got, err := s.FetchTicker(context.Background(), config.Ticker{Symbol: "NVDA", Aliases: []string{"NVIDIA Corporation"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*reqs) != 2 {
		t.Fatalf("expected 2 window requests, got %d", len(*reqs))
	}

	first := (*reqs)[0]
	q := first.URL.Query()
	if q.Get("from") != "2024-02-29" || q.Get("to") != "2024-03-05" {
		t.Errorf("unexpected first window %s..%s", q.Get("from"), q.Get("to"))
	}
	if q.Get("q") != `NVDA OR NVIDIA OR "NVIDIA Corporation"` {
		t.Errorf("unexpected query %q", q.Get("q"))
	}
	if q.Get("sortBy") != "publishedAt" || q.Get("language") != "en" || q.Get("page") != "1" {
		t.Errorf("unexpected params %v", q)
	}
	if first.Header.Get("X-Api-Key") != "test-key" {
		t.Error("expected API key header")
	}
	if (*reqs)[1].URL.Query().Get("to") != "2024-03-10" {
		t.Errorf("expected last window to end today, got %s", (*reqs)[1].URL.Query().Get("to"))
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(got))
	}
	a := got[0]
	if a.Ticker != "NVDA" || a.Source == nil || *a.Source != "Reuters" || a.Author == nil {
		t.Errorf("unexpected article %+v", a)
	}
	if a.PublishedAt != time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC) {
		t.Errorf("unexpected published_at %v", a.PublishedAt)
	}
	if a.ContentSnippet == nil || !strings.HasPrefix(*a.ContentSnippet, "snippet") {
		t.Error("expected content snippet")
	}
}

func TestNewsAPIPagination(t *testing.T) {
	srv, reqs := newsAPIServer(t, func(w http.ResponseWriter, r *http.Request, call int) {
		switch r.URL.Query().Get("page") {
		case "1":
			writeArticles(w, 2, fmt.Sprintf("p1-%d", call))
		default:
			writeArticles(w, 1, fmt.Sprintf("p2-%d", call))
		}
	})
	s := newTestNewsAPI(t, srv.URL, 2, 3)

	got, err := s.FetchTicker(context.Background(), config.Ticker{Symbol: "AAPL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Two windows, each a full first page and a short second page.
	if len(*reqs) != 4 {
		t.Errorf("expected 4 requests, got %d", len(*reqs))
	}
	if len(got) != 6 {
		t.Errorf("expected 6 articles, got %d", len(got))
	}
}

func TestNewsAPIMaxPages(t *testing.T) {
	srv, reqs := newsAPIServer(t, func(w http.ResponseWriter, r *http.Request, call int) {
		writeArticles(w, 2, fmt.Sprintf("c%d", call))
	})
	s := newTestNewsAPI(t, srv.URL, 2, 2)

	if _, err := s.FetchTicker(context.Background(), config.Ticker{Symbol: "AAPL"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*reqs) != 4 {
		t.Errorf("expected max_pages to cap requests at 4, got %d", len(*reqs))
	}
}

func TestNewsAPIRateLimited(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http 429", http.StatusTooManyRequests, `{"status":"error","code":"rateLimited","message":"You have made too many requests"}`},
		{"code only", http.StatusOK, `{"status":"error","code":"rateLimited","message":"slow down"}`},
		{"429 without body", http.StatusTooManyRequests, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newsAPIServer(t, func(w http.ResponseWriter, r *http.Request, call int) {
				if call == 1 {
					writeArticles(w, 1, "ok")
					return
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			s := newTestNewsAPI(t, srv.URL, 100, 1)

			got, err := s.FetchTicker(context.Background(), config.Ticker{Symbol: "MSFT"})
			if !errors.Is(err, ErrRateLimited) {
				t.Fatalf("expected ErrRateLimited, got %v", err)
			}
			if len(got) != 1 {
				t.Errorf("expected first window kept, got %d articles", len(got))
			}
		})
	}
}

func TestNewsAPIErrorPayload(t *testing.T) {
	srv, _ := newsAPIServer(t, func(w http.ResponseWriter, r *http.Request, call int) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid"}`))
	})
	s := newTestNewsAPI(t, srv.URL, 100, 1)

	_, err := s.FetchTicker(context.Background(), config.Ticker{Symbol: "MSFT"})
	if err == nil || errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected a non rate-limit error, got %v", err)
	}
	if !strings.Contains(err.Error(), "apiKeyInvalid") || !strings.Contains(err.Error(), "401") {
		t.Errorf("expected code and status in error, got %v", err)
	}
}

func TestNewsAPISkipsRemovedArticles(t *testing.T) {
	srv, _ := newsAPIServer(t, func(w http.ResponseWriter, r *http.Request, call int) {
		w.Write([]byte(`{"status":"ok","articles":[
			{"title":"[Removed]","url":"https://removed.com","publishedAt":"1970-01-01T00:00:00Z"},
			{"title":"Kept","url":"https://news.example/kept","publishedAt":"2024-03-01T00:00:00Z","source":{"name":""}}
		]}`))
	})
	s := newTestNewsAPI(t, srv.URL, 100, 1)
	s.cfg.LookbackDays = 5

	got, err := s.FetchTicker(context.Background(), config.Ticker{Symbol: "GOOGL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Kept" {
		t.Fatalf("expected only the kept article, got %+v", got)
	}
	if got[0].Source != nil || got[0].Description != nil {
		t.Error("expected empty fields to be nil")
	}
}
