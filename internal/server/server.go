package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/TobiSchelling/TickerPulse/internal/aggregate"
	"github.com/TobiSchelling/TickerPulse/internal/corpus"
	"github.com/TobiSchelling/TickerPulse/internal/database"
	"github.com/TobiSchelling/TickerPulse/internal/logger"
	"github.com/TobiSchelling/TickerPulse/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Server is the HTTP server for browsing the corpus summary.
type Server struct {
	db    *database.DB
	pages map[string]*template.Template
	mux   *http.ServeMux
	log   *logger.Logger
}

// New creates a new Server.
func New(db *database.DB, log *logger.Logger) (*Server, error) {
	funcMap := template.FuncMap{
		"avg":       report.FormatAvg,
		"score":     report.FormatScore,
		"avgClass":  report.ScoreClass,
		"timestamp": corpus.FormatTimestamp,
		"sentimentClass": func(s *corpus.Sentiment) string {
			if s == nil {
				return ""
			}
			return report.ScoreClass(&s.Score)
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so "title" and "content" can be
	// defined per page.
	pageNames := []string{"index.html", "ticker.html", "report.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, pages: pages, mux: http.NewServeMux(), log: log}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/ticker/", s.handleTicker)
	s.mux.HandleFunc("/report", s.handleReport)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	articles, err := s.db.LoadCorpus()
	if err != nil {
		s.internalError(w, "loading corpus", err)
		return
	}
	stats, err := s.db.GetStats()
	if err != nil {
		s.internalError(w, "reading stats", err)
		return
	}

	s.render(w, http.StatusOK, "index.html", map[string]any{
		"Summaries": aggregate.Summarize(articles),
		"Stats":     stats,
	})
}

func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request) {
	symbol := corpus.NormalizeTicker(strings.TrimPrefix(r.URL.Path, "/ticker/"))
	if symbol == "" || strings.Contains(symbol, "/") {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	articles, err := s.db.TickerArticles(symbol)
	if err != nil {
		s.internalError(w, "loading ticker", err)
		return
	}

	status := http.StatusOK
	var summary *aggregate.TickerSummary
	if len(articles) == 0 {
		status = http.StatusNotFound
	} else {
		summary = &aggregate.Summarize(articles)[0]
	}

	s.render(w, status, "ticker.html", map[string]any{
		"Ticker":   symbol,
		"Summary":  summary,
		"Articles": articles,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	articles, err := s.db.LoadCorpus()
	if err != nil {
		s.internalError(w, "loading corpus", err)
		return
	}

	var md bytes.Buffer
	err = report.Markdown(&md, aggregate.Summarize(articles), articles, report.Options{
		GeneratedAt: time.Now(),
		PerTicker:   50,
	})
	if err != nil {
		s.internalError(w, "rendering report", err)
		return
	}
	html, err := report.HTML(md.Bytes())
	if err != nil {
		s.internalError(w, "converting report", err)
		return
	}

	s.render(w, http.StatusOK, "report.html", map[string]any{
		"Report": template.HTML(html), //nolint: gosec
	})
}

func (s *Server) internalError(w http.ResponseWriter, what string, err error) {
	s.log.Error("request failed", "step", what, "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.log.Error("template not found", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		s.internalError(w, "rendering "+name, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, port int, log *logger.Logger) error {
	srv, err := New(db, log)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Info("server listening", "url", "http://"+addr)
	return http.ListenAndServe(addr, srv.Handler())
}
