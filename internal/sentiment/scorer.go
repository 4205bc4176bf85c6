package sentiment

import (
	"strings"

	"github.com/TobiSchelling/TickerPulse/internal/config"
	"github.com/TobiSchelling/TickerPulse/internal/llm"
	"github.com/TobiSchelling/TickerPulse/internal/logger"
)

// NewScorer builds the scorer named in cfg. When an LLM provider is asked
// for but none is reachable, the VADER scorer is used instead.
func NewScorer(cfg config.Sentiment, log *logger.Logger) Scorer {
	switch strings.ToLower(cfg.Provider) {
	case "ollama", "openai":
		p := llm.CreateProvider(cfg.Provider, cfg.Model, cfg.OllamaURL, cfg.OpenAIModel, cfg.APIKeyEnv, log)
		if p != nil {
			return NewLLMScorer(p, cfg.MaxTokens)
		}
		log.Warn("falling back to vader sentiment scorer")
	}
	return NewVaderScorer()
}
