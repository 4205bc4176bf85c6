package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Validation errors for rows that cannot be given an identity.
var (
	ErrMissingTicker      = errors.New("article has no ticker")
	ErrMissingURLAndTitle = errors.New("article has neither url nor title")
)

// Identity is the pair of stable identifiers derived from an article.
type Identity struct {
	NewsID     string
	ArticleKey string
}

// Identify derives the identities of a.
//
// news_id     = sha256(TICKER|url|published_at)
// article_key = sha256(TICKER|title|published_at)
//
// The ticker is trimmed and upper-cased, the url trimmed, the title
// whitespace-collapsed and lower-cased, and published_at rendered with
// TimestampLayout. Digests are lowercase hex.
func Identify(a Article) (Identity, error) {
	ticker := NormalizeTicker(a.Ticker)
	if ticker == "" {
		return Identity{}, ErrMissingTicker
	}
	url := strings.TrimSpace(a.URL)
	title := normalizeTitle(a.Title)
	if url == "" && title == "" {
		return Identity{}, ErrMissingURLAndTitle
	}
	published := FormatTimestamp(a.PublishedAt)

	return Identity{
		NewsID:     digest(ticker, url, published),
		ArticleKey: digest(ticker, title, published),
	}, nil
}

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

func digest(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
