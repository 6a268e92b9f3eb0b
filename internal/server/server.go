// Package server exposes the player table over a read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/report"
	"github.com/sells-group/roster-cli/internal/store"
)

// Reader is the read side of a store.
type Reader interface {
	Get(ctx context.Context, identity string) (model.PlayerRecord, bool, error)
	All(ctx context.Context) ([]model.PlayerRecord, error)
}

// Options configures the API.
type Options struct {
	TopN           int
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server serves players and reports from a Reader. It never writes.
type Server struct {
	reader Reader
	ledger store.FailureLedger
	opts   Options
	router chi.Router
}

// New builds the router. The failure endpoint is only mounted when reader
// also keeps a failure ledger.
func New(reader Reader, opts Options) *Server {
	if opts.TopN <= 0 {
		opts.TopN = report.DefaultTopN
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	s := &Server{reader: reader, opts: opts}
	if l, ok := reader.(store.FailureLedger); ok {
		s.ledger = l
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/players", s.handleListPlayers)
	r.Get("/players/{identity}", s.handleGetPlayer)
	r.Get("/report", s.handleReport)
	if s.ledger != nil {
		r.Get("/failures", s.handleFailures)
	}
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListPlayers supports exact, case-insensitive team, nationality and
// role filters.
func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	recs, err := s.reader.All(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	filters := map[model.Field]string{
		model.FieldTeam:        q.Get("team"),
		model.FieldNationality: q.Get("nationality"),
		model.FieldRole:        q.Get("role"),
	}
	out := make([]model.PlayerRecord, 0, len(recs))
	for _, rec := range recs {
		if matches(rec, filters) {
			out = append(out, rec)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(out),
		"players": out,
	})
}

func matches(rec model.PlayerRecord, filters map[model.Field]string) bool {
	for f, want := range filters {
		if want == "" {
			continue
		}
		if !strings.EqualFold(rec.Value(f), want) {
			return false
		}
	}
	return true
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	rec, ok, err := s.reader.Get(r.Context(), identity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "player not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleReport returns the report as JSON, or as plain text with
// ?format=text. ?top=N overrides the nationality table length.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	topN := s.opts.TopN
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "top must be a positive integer"})
			return
		}
		topN = n
	}
	recs, err := s.reader.All(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rep := report.Generate(recs, topN)
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(rep.Text()))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	failures, err := s.ledger.ListFailures(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(failures),
		"failures": failures,
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("server: request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
