package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/TickerPulse/internal/logger"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Configuration validation errors.
var (
	ErrNoTickers        = errors.New("at least one ticker is required")
	ErrInvalidTicker    = errors.New("ticker symbol must be non-empty and contain no spaces")
	ErrDuplicateTicker  = errors.New("ticker listed more than once")
	ErrInvalidLookback  = errors.New("sources.newsapi.lookback_days must be at least 1")
	ErrInvalidStepDays  = errors.New("sources.newsapi.step_days must be at least 1")
	ErrInvalidPageSize  = errors.New("sources.newsapi.page_size must be between 1 and 100")
	ErrInvalidMaxPages  = errors.New("sources.newsapi.max_pages must be at least 1")
	ErrUnknownScorer    = errors.New("sentiment.provider must be one of: vader, ollama, openai")
	ErrInvalidLogLevel  = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidServePort = errors.New("server.port must be between 1 and 65535")
)

type Config struct {
	Tickers   []Ticker  `yaml:"tickers"`
	Sources   Sources   `yaml:"sources"`
	Fetch     Fetch     `yaml:"fetch"`
	Sentiment Sentiment `yaml:"sentiment"`
	Output    Output    `yaml:"output"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

// Ticker is a symbol to track plus the names it appears under in the press.
type Ticker struct {
	Symbol  string   `yaml:"symbol"`
	Aliases []string `yaml:"aliases"`
}

type Sources struct {
	NewsAPI NewsAPIConfig `yaml:"newsapi"`
	Feeds   FeedsConfig   `yaml:"feeds"`
}

type NewsAPIConfig struct {
	Enabled           bool    `yaml:"enabled"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	BaseURL           string  `yaml:"base_url"`
	Language          string  `yaml:"language"`
	LookbackDays      int     `yaml:"lookback_days"`
	StepDays          int     `yaml:"step_days"`
	MaxPages          int     `yaml:"max_pages"`
	PageSize          int     `yaml:"page_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

type FeedsConfig struct {
	YahooFinance YahooFinanceConfig `yaml:"yahoo_finance"`
}

// YahooFinanceConfig is the per-ticker headline RSS feed. URLTemplate takes
// the symbol as its only %s verb.
type YahooFinanceConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URLTemplate  string `yaml:"url_template"`
	LookbackDays int    `yaml:"lookback_days"`
	TimeoutSec   int    `yaml:"timeout_sec"`
}

// Fetch controls snippet backfill for new rows that arrive without one.
type Fetch struct {
	Enabled       bool `yaml:"enabled"`
	TimeoutSec    int  `yaml:"timeout_sec"`
	SnippetLength int  `yaml:"snippet_length"`
}

type Sentiment struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for tickerpulse.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "tickerpulse")
}

// DataDir returns the XDG data directory for tickerpulse.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "tickerpulse")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/tickerpulse/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'tickerpulse init' to create a default config",
		xdgConfig,
	)
}

// Load reads, parses and validates a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: Sources{
			NewsAPI: NewsAPIConfig{
				Enabled:           true,
				APIKeyEnv:         "NEWSAPI_KEY",
				BaseURL:           "https://newsapi.org/v2/everything",
				Language:          "en",
				LookbackDays:      30,
				StepDays:          5,
				MaxPages:          1,
				PageSize:          100,
				RequestsPerSecond: 1,
				TimeoutSec:        10,
			},
			Feeds: FeedsConfig{
				YahooFinance: YahooFinanceConfig{
					URLTemplate:  "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US",
					LookbackDays: 30,
					TimeoutSec:   10,
				},
			},
		},
		Fetch: Fetch{
			TimeoutSec:    15,
			SnippetLength: 260,
		},
		Sentiment: Sentiment{
			Provider:    "vader",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   64,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "info"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	for i := range cfg.Tickers {
		cfg.Tickers[i].Symbol = strings.ToUpper(strings.TrimSpace(cfg.Tickers[i].Symbol))
	}

	return cfg, nil
}

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if len(c.Tickers) == 0 {
		return ErrNoTickers
	}
	seen := make(map[string]bool, len(c.Tickers))
	for i, t := range c.Tickers {
		if t.Symbol == "" || strings.ContainsAny(t.Symbol, " \t") {
			return fmt.Errorf("%w: tickers[%d]", ErrInvalidTicker, i)
		}
		if seen[t.Symbol] {
			return fmt.Errorf("%w: %s", ErrDuplicateTicker, t.Symbol)
		}
		seen[t.Symbol] = true
	}

	n := c.Sources.NewsAPI
	if n.LookbackDays < 1 {
		return ErrInvalidLookback
	}
	if n.StepDays < 1 {
		return ErrInvalidStepDays
	}
	if n.PageSize < 1 || n.PageSize > 100 {
		return ErrInvalidPageSize
	}
	if n.MaxPages < 1 {
		return ErrInvalidMaxPages
	}

	switch strings.ToLower(c.Sentiment.Provider) {
	case "vader", "ollama", "openai":
	default:
		return fmt.Errorf("%w (got %q)", ErrUnknownScorer, c.Sentiment.Provider)
	}

	if _, ok := logger.ParseLevel(c.Logging.Level); !ok {
		return ErrInvalidLogLevel
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ErrInvalidServePort
	}
	return nil
}

// Symbols returns the configured ticker symbols in config order.
func (c *Config) Symbols() []string {
	out := make([]string, len(c.Tickers))
	for i, t := range c.Tickers {
		out[i] = t.Symbol
	}
	return out
}

// Only returns a copy of c restricted to the given symbols. Unknown symbols
// are added without aliases. Blank and repeated symbols are skipped; if none
// remain, c is returned unchanged.
func (c *Config) Only(symbols []string) *Config {
	byName := make(map[string]Ticker, len(c.Tickers))
	for _, t := range c.Tickers {
		byName[t.Symbol] = t
	}
	var picked []Ticker
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		if t, ok := byName[s]; ok {
			picked = append(picked, t)
		} else {
			picked = append(picked, Ticker{Symbol: s})
		}
	}
	if len(picked) == 0 {
		return c
	}
	cp := *c
	cp.Tickers = picked
	return &cp
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DatabasePath returns the corpus database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.GetDataDir(), "tickerpulse.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
