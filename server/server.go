// Package server exposes a running portfolio over read-only HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/portfolio/analytics"
	"github.com/rustyeddy/portfolio/internal/id"
	"github.com/rustyeddy/portfolio/ledger"
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/metrics"
	"github.com/rustyeddy/portfolio/risk"
)

type Options struct {
	Ledger   *ledger.Ledger
	Recorder *metrics.Recorder

	// Marks returns current prices; positions without one are marked at
	// entry. Nil marks everything at entry.
	Marks func() market.Prices

	RiskFree float64
	Logger   zerolog.Logger
}

type handlers struct {
	opts Options
}

// New returns the router. It panics if Ledger is nil.
func New(opts Options) http.Handler {
	if opts.Ledger == nil {
		panic("server: Ledger is required")
	}
	h := &handlers{opts: opts}

	r := mux.NewRouter()
	r.Use(h.requestID, h.logRequests)

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", opts.Recorder.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(jsonContentType)
	api.HandleFunc("/portfolio", h.portfolio).Methods(http.MethodGet)
	api.HandleFunc("/report", h.report).Methods(http.MethodGet)
	api.HandleFunc("/trades", h.trades).Methods(http.MethodGet)
	api.HandleFunc("/trades/{id}", h.trade).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type ctxKey struct{}

func (h *handlers) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := id.New()
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, rid)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		rid, _ := r.Context().Value(ctxKey{}).(string)
		h.opts.Logger.Debug().
			Str("request_id", rid).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handlers) marks() market.Prices {
	if h.opts.Marks == nil {
		return nil
	}
	return h.opts.Marks()
}

type positionView struct {
	ledger.Position
	Mark          float64 `json:"mark"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

type portfolioView struct {
	Cash          float64        `json:"cash"`
	InitialCash   float64        `json:"initial_cash"`
	TotalValue    float64        `json:"total_value"`
	ReturnPct     float64        `json:"return_pct"`
	Heat          float64        `json:"heat"`
	OpenPositions int            `json:"open_positions"`
	Positions     []positionView `json:"positions"`
}

func (h *handlers) portfolio(w http.ResponseWriter, r *http.Request) {
	l := h.opts.Ledger
	prices := h.marks()
	snap, positions := l.View(prices, time.Now().UTC())

	v := portfolioView{
		Cash:          snap.Cash,
		InitialCash:   l.InitialCash(),
		TotalValue:    snap.TotalValue,
		ReturnPct:     snap.ReturnPct,
		Heat:          risk.Heat(risk.Exposures(positions, prices), snap.TotalValue),
		OpenPositions: snap.OpenPositions,
		Positions:     make([]positionView, 0, len(positions)),
	}
	for _, p := range positions {
		mark, ok := prices.Get(p.Ticker)
		if !ok {
			mark = p.EntryPrice
		}
		v.Positions = append(v.Positions, positionView{
			Position:      p,
			Mark:          mark,
			MarketValue:   p.Value(mark),
			UnrealizedPnL: p.UnrealizedPnL(mark),
		})
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handlers) report(w http.ResponseWriter, r *http.Request) {
	l := h.opts.Ledger
	rep := analytics.Analyze(l.Snapshots(), l.Trades(), l.InitialCash(), h.opts.RiskFree)
	writeJSON(w, http.StatusOK, rep.Metrics())
}

// trades lists the trade log, optionally filtered by ?ticker= and
// ?status=open|closed.
func (h *handlers) trades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ticker := market.NormalizeTicker(q.Get("ticker"))
	status := ledger.Status(strings.ToUpper(strings.TrimSpace(q.Get("status"))))
	if status != "" && status != ledger.Open && status != ledger.Closed {
		writeError(w, http.StatusBadRequest, "status must be open or closed")
		return
	}

	out := make([]ledger.Trade, 0)
	for _, t := range h.opts.Ledger.Trades() {
		if ticker != "" && t.Ticker != ticker {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) trade(w http.ResponseWriter, r *http.Request) {
	want := mux.Vars(r)["id"]
	for _, t := range h.opts.Ledger.Trades() {
		if t.ID == want {
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	writeError(w, http.StatusNotFound, "trade "+want+" not found")
}
