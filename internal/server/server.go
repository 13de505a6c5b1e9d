// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/export"
	"github.com/rovshanmuradov/raydium-sniper/internal/position"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage"
)

const (
	defaultTradesLimit = 50
	exportLimit        = 10000
)

// Status is the body of GET /status.
type Status struct {
	Gate      position.GateState             `json:"gate"`
	Positions map[string]position.EntryState `json:"positions"`
	Uptime    string                         `json:"uptime"`
}

// Options wires the server to the running bot. Journal may be nil.
type Options struct {
	Addr     string
	Gatherer prometheus.Gatherer
	Gate     *position.Gate
	Ledger   *position.Ledger
	Journal  storage.Journal
}

// Server exposes health, metrics and position state over HTTP.
type Server struct {
	opts    Options
	started time.Time
	srv     *http.Server
	logger  *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Server {
	s := &Server{
		opts:    opts,
		started: time.Now(),
		logger:  logger.Named("server"),
	}
	s.srv = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/trades", s.handleTrades)
	r.Get("/trades/export", s.handleExport)
	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.opts.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := Status{
		Positions: map[string]position.EntryState{},
		Uptime:    time.Since(s.started).Truncate(time.Second).String(),
	}
	if s.opts.Gate != nil {
		status.Gate = s.opts.Gate.State()
	}
	if s.opts.Ledger != nil {
		status.Positions = s.opts.Ledger.Snapshot()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, ok := s.recent(w, r, defaultTradesLimit)
	if !ok {
		return
	}
	if trades == nil {
		trades = []storage.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// handleExport streams the journal as csv or json, oldest first.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := export.Format(q.Get("format"))
	switch format {
	case "":
		format = export.FormatCSV
	case export.FormatCSV, export.FormatJSON:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid format"})
		return
	}

	trades, ok := s.recent(w, r, exportLimit)
	if !ok {
		return
	}
	trades = export.Filter(trades, export.Options{
		Mint:          q.Get("mint"),
		Side:          q.Get("side"),
		OnlyConfirmed: q.Get("confirmed") == "true",
	})

	if format == export.FormatCSV {
		w.Header().Set("Content-Type", "text/csv")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="trades.`+string(format)+`"`)
	if err := export.Write(w, format, trades); err != nil {
		s.logger.Warn("Failed to export trades", zap.Error(err))
	}
}

// recent reads the journal honoring ?limit. It writes the error response
// itself and reports false on failure.
func (s *Server) recent(w http.ResponseWriter, r *http.Request, limit int) ([]storage.Trade, bool) {
	if s.opts.Journal == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "trade journal disabled"})
		return nil, false
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return nil, false
		}
		limit = n
	}

	trades, err := s.opts.Journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Warn("Failed to list trades", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "journal unavailable"})
		return nil, false
	}
	return trades, true
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
