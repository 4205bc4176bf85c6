package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	if len(cfg.Tickers) != 6 {
		t.Errorf("expected 6 tickers, got %d", len(cfg.Tickers))
	}
	if cfg.Tickers[0].Symbol != "NVDA" || len(cfg.Tickers[0].Aliases) != 2 {
		t.Errorf("unexpected first ticker %+v", cfg.Tickers[0])
	}
	if cfg.Sentiment.Provider != "vader" {
		t.Errorf("expected provider 'vader', got %q", cfg.Sentiment.Provider)
	}
	if cfg.Sources.NewsAPI.StepDays != 5 || cfg.Sources.NewsAPI.LookbackDays != 30 {
		t.Errorf("unexpected newsapi windows %+v", cfg.Sources.NewsAPI)
	}
	if !cfg.Sources.Feeds.YahooFinance.Enabled {
		t.Error("expected yahoo finance feed enabled")
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
tickers:
  - symbol: " msft "
sentiment:
  provider: openai
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Tickers[0].Symbol != "MSFT" {
		t.Errorf("expected normalized symbol 'MSFT', got %q", cfg.Tickers[0].Symbol)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Sources.NewsAPI.PageSize != 100 {
		t.Errorf("expected default page_size 100, got %d", cfg.Sources.NewsAPI.PageSize)
	}
	if cfg.Sentiment.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("expected default openai_model, got %q", cfg.Sentiment.OpenAIModel)
	}
}

func TestValidateErrors(t *testing.T) {
	valid := func() *Config {
		cfg, err := parse([]byte("tickers: [{symbol: NVDA}]"))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"no tickers", func(c *Config) { c.Tickers = nil }, ErrNoTickers},
		{"blank ticker", func(c *Config) { c.Tickers = []Ticker{{Symbol: ""}} }, ErrInvalidTicker},
		{"spaced ticker", func(c *Config) { c.Tickers = []Ticker{{Symbol: "BRK B"}} }, ErrInvalidTicker},
		{"duplicate ticker", func(c *Config) { c.Tickers = []Ticker{{Symbol: "A"}, {Symbol: "A"}} }, ErrDuplicateTicker},
		{"lookback", func(c *Config) { c.Sources.NewsAPI.LookbackDays = 0 }, ErrInvalidLookback},
		{"step days", func(c *Config) { c.Sources.NewsAPI.StepDays = 0 }, ErrInvalidStepDays},
		{"page size", func(c *Config) { c.Sources.NewsAPI.PageSize = 101 }, ErrInvalidPageSize},
		{"max pages", func(c *Config) { c.Sources.NewsAPI.MaxPages = 0 }, ErrInvalidMaxPages},
		{"scorer", func(c *Config) { c.Sentiment.Provider = "vibes" }, ErrUnknownScorer},
		{"log level", func(c *Config) { c.Logging.Level = "chatty" }, ErrInvalidLogLevel},
		{"port", func(c *Config) { c.Server.Port = 0 }, ErrInvalidServePort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Symbols()) == 0 {
		t.Error("expected tickers to be populated from file")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("tickers: []\n"), 0o644)

	if _, err := Load(path); !errors.Is(err, ErrNoTickers) {
		t.Errorf("expected ErrNoTickers, got %v", err)
	}
}

func TestOnly(t *testing.T) {
	cfg, _ := parse(DefaultConfigYAML)
	sub := cfg.Only([]string{"msft", "TSLA"})

	if len(sub.Tickers) != 2 {
		t.Fatalf("expected 2 tickers, got %d", len(sub.Tickers))
	}
	if sub.Tickers[0].Symbol != "MSFT" || len(sub.Tickers[0].Aliases) == 0 {
		t.Errorf("expected MSFT with aliases, got %+v", sub.Tickers[0])
	}
	if sub.Tickers[1].Symbol != "TSLA" {
		t.Errorf("expected TSLA, got %q", sub.Tickers[1].Symbol)
	}
	if len(cfg.Tickers) != 6 {
		t.Error("expected original config untouched")
	}
}

func TestOnlySkipsBlankSymbols(t *testing.T) {
	cfg, _ := parse(DefaultConfigYAML)

	sub := cfg.Only([]string{"", "  ", "msft", "MSFT "})
	if len(sub.Tickers) != 1 || sub.Tickers[0].Symbol != "MSFT" {
		t.Errorf("expected only MSFT, got %+v", sub.Tickers)
	}

	if all := cfg.Only([]string{""}); len(all.Tickers) != len(cfg.Tickers) {
		t.Errorf("expected blank filter to keep all %d tickers, got %d", len(cfg.Tickers), len(all.Tickers))
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	if cfg.GetDataDir() == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
	if cfg.DatabasePath() != filepath.Join("/custom/path", "tickerpulse.db") {
		t.Errorf("unexpected database path %q", cfg.DatabasePath())
	}
}
