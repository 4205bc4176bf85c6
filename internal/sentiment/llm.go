package sentiment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/TobiSchelling/TickerPulse/internal/llm"
)

const scorePrompt = `You are rating the sentiment of a financial news headline for investors in the company it mentions.

Headline and summary:
%s

Respond with ONLY this JSON:
{
    "score": a number from -1.0 (very negative) to 1.0 (very positive), 0.0 for neutral
}`

// maxPromptText caps the article text sent to the provider, in bytes.
const maxPromptText = 2000

// LLMScorer asks an LLM provider for a compound score.
type LLMScorer struct {
	provider  llm.Provider
	maxTokens int
}

// NewLLMScorer creates a scorer backed by provider.
func NewLLMScorer(provider llm.Provider, maxTokens int) *LLMScorer {
	if maxTokens <= 0 {
		maxTokens = 64
	}
	return &LLMScorer{provider: provider, maxTokens: maxTokens}
}

// Score implements Scorer.
func (s *LLMScorer) Score(ctx context.Context, text string) (float64, error) {
	if s.provider == nil {
		return 0, errors.New("no LLM provider available")
	}
	text = truncate(text, maxPromptText)

	resp, err := s.provider.Generate(ctx, fmt.Sprintf(scorePrompt, text), s.maxTokens)
	if err != nil {
		return 0, err
	}

	parsed := llm.ParseJSONResponse(resp)
	if parsed == nil {
		return 0, fmt.Errorf("unparseable LLM response: %q", resp)
	}

	switch v := parsed["score"].(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid score %q: %w", v, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("LLM response has no numeric score: %q", resp)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
