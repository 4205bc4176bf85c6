// Package corpus holds the article record, its stable identities and the
// merge engine that folds freshly fetched batches into the stored corpus.
package corpus

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TimestampLayout is the canonical timezone-naive layout used for
// published_at in storage, flat files and identity hashing.
const TimestampLayout = "2006-01-02T15:04:05"

// Label is a categorical sentiment label.
type Label string

const (
	Positive Label = "positive"
	Neutral  Label = "neutral"
	Negative Label = "negative"
)

// ParseLabel maps a stored label back to its Label value.
func ParseLabel(s string) (Label, error) {
	switch Label(strings.ToLower(strings.TrimSpace(s))) {
	case Positive:
		return Positive, nil
	case Neutral:
		return Neutral, nil
	case Negative:
		return Negative, nil
	}
	return "", fmt.Errorf("unknown sentiment label %q", s)
}

// Label thresholds. Scores strictly above PositiveThreshold are positive,
// strictly below NegativeThreshold negative, anything else neutral.
const (
	PositiveThreshold = 0.05
	NegativeThreshold = -0.05
)

// LabelFor derives the label for a score.
func LabelFor(score float64) Label {
	switch {
	case score > PositiveThreshold:
		return Positive
	case score < NegativeThreshold:
		return Negative
	default:
		return Neutral
	}
}

// Sentiment is a score in [-1, 1] with its derived label.
// Score and label are set together or not at all.
type Sentiment struct {
	Score float64
	Label Label
}

// NewSentiment rebuilds a stored sentiment from its score and label
// columns. The score must lie in [-1, 1] and the label must be the one
// LabelFor derives from it.
func NewSentiment(score float64, label string) (*Sentiment, error) {
	if math.IsNaN(score) || score < -1 || score > 1 {
		return nil, fmt.Errorf("sentiment score %v out of range", score)
	}
	l, err := ParseLabel(label)
	if err != nil {
		return nil, err
	}
	if want := LabelFor(score); l != want {
		return nil, fmt.Errorf("sentiment label %q does not match score %v (want %q)", l, score, want)
	}
	return &Sentiment{Score: score, Label: l}, nil
}

// Article is one row of the corpus.
type Article struct {
	Ticker         string
	Source         *string
	Author         *string
	Title          string
	Description    *string
	URL            string
	PublishedAt    time.Time // naive UTC wall clock, zero when unknown
	ContentSnippet *string

	NewsID     string
	ArticleKey string

	Sentiment *Sentiment
}

// HasSentiment reports whether the row has been enriched.
func (a *Article) HasSentiment() bool {
	return a.Sentiment != nil
}

// Text returns the text used for sentiment scoring: title plus description,
// or title alone when there is no description.
func (a *Article) Text() string {
	title := strings.TrimSpace(a.Title)
	if a.Description == nil {
		return title
	}
	desc := strings.TrimSpace(*a.Description)
	if desc == "" {
		return title
	}
	if title == "" {
		return desc
	}
	return title + " " + desc
}

// NormalizeTime converts t to the corpus clock convention: the same instant
// expressed in UTC with the location dropped.
func NormalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), 0, time.UTC)
}

// FormatTimestamp renders t in TimestampLayout. The zero time renders as "".
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return NormalizeTime(t).Format(TimestampLayout)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	TimestampLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats seen in provider payloads and
// flat files and normalizes the result. An empty string yields the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NormalizeTime(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
