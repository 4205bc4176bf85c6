package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/TickerPulse/internal/aggregate"
	"github.com/TobiSchelling/TickerPulse/internal/config"
	"github.com/TobiSchelling/TickerPulse/internal/corpusfile"
	"github.com/TobiSchelling/TickerPulse/internal/database"
	"github.com/TobiSchelling/TickerPulse/internal/logger"
	"github.com/TobiSchelling/TickerPulse/internal/pipeline"
	"github.com/TobiSchelling/TickerPulse/internal/report"
	"github.com/TobiSchelling/TickerPulse/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	log        = logger.New("info")
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "tickerpulse",
	Short:   "News sentiment per stock ticker",
	Long:    "TickerPulse collects news for a list of stock tickers, scores its sentiment and summarizes it over 1, 7 and 30 day windows.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel("debug")
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if !verbose {
			log.SetLevel(cfg.Logging.Level)
		}
		log.Debug("config loaded", "path", path, "tickers", len(cfg.Tickers))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("tickerpulse", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/tickerpulse/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to choose tickers and set NEWSAPI_KEY in your environment.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show corpus and run status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		counts, err := db.TickerCounts()
		if err != nil {
			return fmt.Errorf("counting tickers: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Articles:")
		fmt.Printf("  Total: %d\n", stats.TotalArticles)
		fmt.Printf("  Scored: %d\n", stats.ScoredArticles)
		fmt.Printf("  Unscored: %d\n", stats.UnscoredArticles)
		if len(counts) > 0 {
			fmt.Println("\nBy ticker:")
			for _, c := range counts {
				fmt.Printf("  %-8s %d (%d scored)\n", c.Ticker, c.Articles, c.Scored)
			}
		}

		fmt.Printf("\nIngest runs: %d\n", stats.Runs)
		if r := stats.LastRun; r != nil {
			fmt.Printf("  Last: %s, added %d of %d fetched",
				r.FinishedAt.Local().Format("2006-01-02 15:04"), r.Added, r.Fetched)
			if r.RateLimited {
				fmt.Print(", rate limited")
			}
			if r.Error != nil {
				fmt.Printf(", failed: %s", *r.Error)
			}
			fmt.Println()
		}
		return nil
	},
}

// --- ingest command ---

var (
	dryRun      bool
	onlyTickers []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Collect news, score sentiment and update the corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tickers := cfg.Only(onlyTickers).Tickers
		pipe := pipeline.New(cfg, db, log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		var result *pipeline.Result
		if dryRun {
			result, err = pipe.DryRun(tickers)
		} else {
			result, err = pipe.Ingest(ctx, tickers)
		}
		printSteps(result)
		if err != nil {
			return err
		}

		if !dryRun {
			fmt.Println("\nIngest complete! Run 'tickerpulse summary' to see the numbers.")
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	ingestCmd.Flags().StringSliceVarP(&onlyTickers, "ticker", "t", nil, "Only ingest these tickers (repeatable)")
}

func printSteps(result *pipeline.Result) {
	if result == nil {
		return
	}
	for i, step := range result.Steps {
		fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
}

// --- summary command ---

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print per-ticker sentiment over 1, 7 and 30 days",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		articles, err := db.LoadCorpus()
		if err != nil {
			return err
		}
		return report.Markdown(os.Stdout, aggregate.Summarize(articles), articles, report.Options{SummaryOnly: true})
	},
}

// --- report command ---

var (
	reportFormat    string
	reportOut       string
	reportPerTicker int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the sentiment report as markdown or HTML",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(reportFormat)
		if format != "md" && format != "html" {
			return fmt.Errorf("unknown report format %q (want md or html)", reportFormat)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		articles, err := db.LoadCorpus()
		if err != nil {
			return err
		}

		var buf strings.Builder
		err = report.Markdown(&buf, aggregate.Summarize(articles), articles, report.Options{
			GeneratedAt: time.Now(),
			PerTicker:   reportPerTicker,
		})
		if err != nil {
			return err
		}

		out := []byte(buf.String())
		if format == "html" {
			if out, err = report.HTML(out); err != nil {
				return fmt.Errorf("rendering html: %w", err)
			}
		}

		if reportOut == "" {
			_, err = os.Stdout.Write(out)
			return err
		}
		if err := os.WriteFile(reportOut, out, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Wrote %s report for %d articles to %s\n", format, len(articles), reportOut)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "md", "Output format: md or html")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "Output file (default stdout)")
	reportCmd.Flags().IntVar(&reportPerTicker, "per-ticker", 0, "Limit articles listed per ticker (0 = all)")
}

// --- export / import commands ---

var fileFormat string

func resolveFormat(path string) (corpusfile.Format, error) {
	if fileFormat != "" {
		return corpusfile.ParseFormat(fileFormat)
	}
	return corpusfile.FormatFromPath(path)
}

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the corpus to CSV or Parquet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveFormat(args[0])
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		articles, err := db.LoadCorpus()
		if err != nil {
			return err
		}
		if err := corpusfile.Export(args[0], format, articles); err != nil {
			return err
		}
		fmt.Printf("Exported %d articles to %s\n", len(articles), args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Merge a CSV or Parquet corpus into the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveFormat(args[0])
		if err != nil {
			return err
		}
		articles, err := corpusfile.Import(args[0], format)
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := pipeline.New(cfg, db, log).Import(context.Background(), articles)
		printSteps(result)
		if err != nil {
			return err
		}

		perTicker := make(map[string]int)
		for _, a := range result.Corpus {
			perTicker[a.Ticker]++
		}
		tickers := make([]string, 0, len(perTicker))
		for t := range perTicker {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)
		fmt.Println("\nCorpus by ticker:")
		for _, t := range tickers {
			fmt.Printf("  %s: %d\n", t, perTicker[t])
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&fileFormat, "format", "f", "", "File format: csv or parquet (default from extension)")
	importCmd.Flags().StringVarP(&fileFormat, "format", "f", "", "File format: csv or parquet (default from extension)")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port, log)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func openDB() (*database.DB, error) {
	if err := os.MkdirAll(cfg.GetDataDir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DatabasePath(), log)
}
