// Package fetch backfills content snippets for new articles by extracting
// the readable text of the article page.
package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/TickerPulse/internal/corpus"
	"github.com/TobiSchelling/TickerPulse/internal/logger"
)

const (
	maxBodyBytes   = 4 << 20
	minTextLength  = 100
	defaultSnippet = 260
)

// Result holds the results of a snippet backfill run.
type Result struct {
	Fetched    int
	HadSnippet int
	Known      int
	Failed     int
}

// SnippetFetcher fetches article pages and keeps the first SnippetLength
// characters of their readable text.
type SnippetFetcher struct {
	client        *http.Client
	snippetLength int
	log           *logger.Logger
}

// NewSnippetFetcher creates a snippet fetcher.
func NewSnippetFetcher(timeout time.Duration, snippetLength int, log *logger.Logger) *SnippetFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if snippetLength <= 0 {
		snippetLength = defaultSnippet
	}
	return &SnippetFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		snippetLength: snippetLength,
		log:           log,
	}
}

// Backfill returns a copy of batch where rows without a snippet got one from
// their page. Rows whose news_id is in known are left alone since they will
// be dropped by the merge anyway. After a domain answers with an HTTP error,
// its remaining rows are skipped. Cancellation is checked before each page.
func (f *SnippetFetcher) Backfill(ctx context.Context, batch []corpus.Article, known map[string]bool) ([]corpus.Article, *Result, error) {
	out := slices.Clone(batch)
	r := &Result{}
	failedDomains := make(map[string]struct{})

	for i := range out {
		a := &out[i]
		if a.ContentSnippet != nil && strings.TrimSpace(*a.ContentSnippet) != "" {
			r.HadSnippet++
			continue
		}
		if id, err := corpus.Identify(*a); err != nil || known[id.NewsID] {
			r.Known++
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, r, err
		}

		domain := ""
		if u, err := url.Parse(a.URL); err == nil {
			domain = strings.ToLower(u.Host)
		}
		if domain == "" {
			r.Failed++
			continue
		}
		if _, failed := failedDomains[domain]; failed {
			r.Failed++
			continue
		}

		text, err := f.fetchText(ctx, a.URL)
		if err != nil {
			r.Failed++
			failedDomains[domain] = struct{}{}
			f.log.Debug("HTTP error, skipping remaining pages from domain", "url", a.URL, "domain", domain, "error", err)
			continue
		}
		if text == "" {
			r.Failed++
			f.log.Debug("no extractable content", "url", a.URL)
			continue
		}

		snippet := Truncate(text, f.snippetLength)
		a.ContentSnippet = &snippet
		r.Fetched++
	}

	f.log.Info("snippet backfill complete", "fetched", r.Fetched, "failed", r.Failed)
	return out, r, nil
}

// fetchText returns the readable text of a page. Only HTTP status errors are
// returned as errors; connection and extraction failures yield "".
func (f *SnippetFetcher) fetchText(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", nil
	}
	req.Header.Set("User-Agent", "TickerPulse/1.0 (news sentiment tracker)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", nil
	}

	parsedURL, _ := url.Parse(articleURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if len(text) < minTextLength {
		return "", nil
	}
	return text, nil
}

// Truncate cuts s to at most n characters, backing up to a word boundary
// and appending "..." when anything was removed.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:n])
	if runes[n] != ' ' {
		if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
			cut = cut[:i]
		}
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
