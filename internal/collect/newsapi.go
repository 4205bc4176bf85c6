package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/TobiSchelling/TickerPulse/internal/config"
	"github.com/TobiSchelling/TickerPulse/internal/corpus"
	"github.com/TobiSchelling/TickerPulse/internal/logger"
)

const newsAPIDateLayout = "2006-01-02"

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

type newsAPIResponse struct {
	Status       string           `json:"status"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
	TotalResults int              `json:"totalResults"`
	Articles     []newsAPIArticle `json:"articles"`
}

// NewsAPISource searches NewsAPI's everything endpoint for each ticker over
// the last LookbackDays, in StepDays windows of up to MaxPages pages.
type NewsAPISource struct {
	cfg     config.NewsAPIConfig
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
	log     *logger.Logger
}

// NewNewsAPISource creates a NewsAPI source. The API key is read from the
// environment variable named in cfg.
func NewNewsAPISource(cfg config.NewsAPIConfig, log *logger.Logger) *NewsAPISource {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NewsAPISource{
		cfg:     cfg,
		apiKey:  os.Getenv(cfg.APIKeyEnv),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		log:     log,
	}
}

// IsConfigured returns whether the API key is available.
func (s *NewsAPISource) IsConfigured() bool {
	return s.apiKey != ""
}

func (s *NewsAPISource) Name() string { return "newsapi" }

// FetchTicker walks the lookback range window by window. On a rate limit the
// articles gathered so far are returned with the error.
func (s *NewsAPISource) FetchTicker(ctx context.Context, t config.Ticker) ([]corpus.Article, error) {
	query := BuildQuery(t)
	end := s.now().UTC()
	start := end.AddDate(0, 0, -s.cfg.LookbackDays)
	step := time.Duration(s.cfg.StepDays) * 24 * time.Hour

	s.log.Debug("newsapi query", "ticker", t.Symbol, "query", query,
		"from", start.Format(newsAPIDateLayout), "to", end.Format(newsAPIDateLayout))

	var out []corpus.Article
	for cur := start; cur.Before(end); {
		next := cur.Add(step)
		if next.After(end) {
			next = end
		}

		for page := 1; page <= s.cfg.MaxPages; page++ {
			batch, err := s.fetchPage(ctx, query, cur, next, page)
			if err != nil {
				return out, err
			}
			for _, a := range batch {
				if art, ok := toArticle(t.Symbol, a); ok {
					out = append(out, art)
				}
			}
			if len(batch) < s.cfg.PageSize {
				break
			}
		}
		cur = next
	}
	return out, nil
}

func (s *NewsAPISource) fetchPage(ctx context.Context, query string, from, to time.Time, page int) ([]newsAPIArticle, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"q":        {query},
		"from":     {from.Format(newsAPIDateLayout)},
		"to":       {to.Format(newsAPIDateLayout)},
		"language": {s.cfg.Language},
		"sortBy":   {"publishedAt"},
		"pageSize": {strconv.Itoa(s.cfg.PageSize)},
		"page":     {strconv.Itoa(page)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building newsapi request: %w", err)
	}
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	defer resp.Body.Close()

	var result newsAPIResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode == http.StatusTooManyRequests || result.Code == "rateLimited" {
		return nil, fmt.Errorf("%w: newsapi %d: %s", ErrRateLimited, resp.StatusCode, result.Message)
	}
	if resp.StatusCode != http.StatusOK {
		if decodeErr != nil {
			return nil, fmt.Errorf("newsapi HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("newsapi error %d (code=%s): %s", resp.StatusCode, result.Code, result.Message)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decoding newsapi response: %w", decodeErr)
	}
	if result.Status != "ok" {
		return nil, fmt.Errorf("newsapi status %q (code=%s): %s", result.Status, result.Code, result.Message)
	}

	return result.Articles, nil
}

// toArticle converts a NewsAPI payload entry. Entries NewsAPI has scrubbed
// ("[Removed]") are dropped.
func toArticle(ticker string, a newsAPIArticle) (corpus.Article, bool) {
	title := strings.TrimSpace(a.Title)
	if title == "[Removed]" || a.URL == "https://removed.com" {
		return corpus.Article{}, false
	}

	published, err := corpus.ParseTimestamp(a.PublishedAt)
	if err != nil {
		published = time.Time{}
	}

	return corpus.Article{
		Ticker:         ticker,
		Source:         optional(strings.TrimSpace(a.Source.Name)),
		Author:         optional(strings.TrimSpace(a.Author)),
		Title:          title,
		Description:    optional(strings.TrimSpace(a.Description)),
		URL:            strings.TrimSpace(a.URL),
		PublishedAt:    published,
		ContentSnippet: optional(strings.TrimSpace(a.Content)),
	}, true
}
