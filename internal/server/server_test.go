package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/TickerPulse/internal/corpus"
	"github.com/TobiSchelling/TickerPulse/internal/database"
	"github.com/TobiSchelling/TickerPulse/internal/logger"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), logger.Discard())
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func scored(ticker, url, title, published string, score float64, label corpus.Label) corpus.Article {
	ts, err := corpus.ParseTimestamp(published)
	if err != nil {
		panic(err)
	}
	a := corpus.Article{
		Ticker: ticker, URL: url, Title: title, PublishedAt: ts, Source: ptr("Reuters"),
		Sentiment: &corpus.Sentiment{Score: score, Label: label},
	}
	id, err := corpus.Identify(a)
	if err != nil {
		panic(err)
	}
	a.NewsID, a.ArticleKey = id.NewsID, id.ArticleKey
	return a
}

func seed(t *testing.T, db *database.DB) {
	t.Helper()
	_, err := db.SaveCorpus([]corpus.Article{
		scored("MSFT", "https://x/1", "Microsoft older", "2024-01-01T09:00:00", 0.5, corpus.Positive),
		scored("MSFT", "https://x/2", "Microsoft newer", "2024-01-20T09:00:00", 0.3, corpus.Positive),
		scored("YPF", "https://x/3", "YPF <slides>", "2024-01-19T09:00:00", -0.6, corpus.Negative),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func newServer(t *testing.T, db *database.DB) *Server {
	t.Helper()
	srv, err := New(db, logger.Discard())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func TestIndexEmpty(t *testing.T) {
	srv := newServer(t, openTestDB(t))

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No articles yet") {
		t.Error("expected empty state in response body")
	}
}

func TestIndexSummary(t *testing.T) {
	db := openTestDB(t)
	seed(t, db)
	srv := newServer(t, db)

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`href="/ticker/MSFT"`,
		`href="/ticker/YPF"`,
		`<td class="positive">0.4</td>`,
		`<td class="negative">-0.6</td>`,
		"3 articles across 2 tickers",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response", want)
		}
	}
	if strings.Index(body, "/ticker/MSFT") > strings.Index(body, "/ticker/YPF") {
		t.Error("expected tickers in alphabetical order")
	}
}

func TestTickerRoute(t *testing.T) {
	db := openTestDB(t)
	seed(t, db)
	srv := newServer(t, db)

	rec := get(t, srv, "/ticker/msft")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h1>MSFT</h1>") {
		t.Error("expected normalized ticker heading")
	}
	newer, older := strings.Index(body, "Microsoft newer"), strings.Index(body, "Microsoft older")
	if newer < 0 || older < 0 || newer > older {
		t.Error("expected articles newest first")
	}
	if !strings.Contains(body, `<td class="positive">0.3</td>`) {
		t.Error("expected score styling on article rows")
	}

	rec = get(t, srv, "/ticker/YPF")
	if !strings.Contains(rec.Body.String(), "YPF &lt;slides&gt;") {
		t.Error("expected title to be escaped")
	}
}

func TestTickerNotFound(t *testing.T) {
	srv := newServer(t, openTestDB(t))

	rec := get(t, srv, "/ticker/ZZZ")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No articles stored for ZZZ") {
		t.Error("expected not-found message")
	}

	rec = get(t, srv, "/ticker/")
	if rec.Code != http.StatusFound {
		t.Errorf("expected redirect for empty symbol, got %d", rec.Code)
	}
}

func TestReportRoute(t *testing.T) {
	db := openTestDB(t)
	seed(t, db)
	srv := newServer(t, db)

	rec := get(t, srv, "/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<table>") || !strings.Contains(body, "<h2>MSFT</h2>") {
		t.Error("expected rendered markdown report")
	}
}

func TestStaticAndUnknownRoutes(t *testing.T) {
	srv := newServer(t, openTestDB(t))

	if rec := get(t, srv, "/static/style.css"); rec.Code != http.StatusOK {
		t.Errorf("expected 200 for stylesheet, got %d", rec.Code)
	}
	if rec := get(t, srv, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
