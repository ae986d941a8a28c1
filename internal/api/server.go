// Package api serves resolved prices and stored history over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"pricecache/internal/history"
	"pricecache/internal/instrument"
	"pricecache/internal/logging"
	"pricecache/internal/reconcile"
	"pricecache/internal/storage/historical"
)

type Resolver interface {
	Resolve(ctx context.Context, ticker string, typ instrument.Type) (reconcile.Quote, error)
}

type HistoryReader interface {
	Get(ctx context.Context, ticker string, start, end time.Time) ([]historical.Record, error)
}

// StaleHeader marks answers served from an expired cache entry.
const StaleHeader = "X-Price-Stale"

type Server struct {
	resolver Resolver
	history  HistoryReader
	logger   *slog.Logger
	timeout  time.Duration
}

// New returns the API. timeout bounds each request; zero means 15s.
func New(resolver Resolver, hist HistoryReader, timeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Server{resolver: resolver, history: hist, logger: logger, timeout: timeout}
}

// Handler returns the routed mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /price/{ticker}", s.handlePrice)
	mux.HandleFunc("GET /price/{instrument_type}/{ticker}", s.handlePrice)
	mux.HandleFunc("GET /bonos/{ticker}", s.handleBonos)
	mux.HandleFunc("GET /historial/{ticker}", s.handleHistory)

	return withRequestID(withAccessLog(s.logger, withJSONHeaders(withGzip(recoverPanic(s.logger, mux)))))
}

type priceResponse struct {
	Ticker    string  `json:"ticker"`
	Price     float64 `json:"price"`
	UpdatedAt string  `json:"updated_at"`
}

type historyRow struct {
	Date     string   `json:"date"`
	Price    float64  `json:"price"`
	AdjPrice *float64 `json:"adj_price"`
	Volume   *int64   `json:"volume"`
}

type historyResponse struct {
	Ticker  string       `json:"ticker"`
	History []historyRow `json:"history"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	typ, err := instrument.Parse(r.PathValue("instrument_type"))
	if err != nil {
		// Unknown types have no partition and answer like a miss.
		logging.FromContext(r.Context(), s.logger).Debug("unknown instrument type", "error", err)
		writeError(w, http.StatusNotFound, "Price not available")
		return
	}
	s.writePrice(w, r, r.PathValue("ticker"), typ)
}

func (s *Server) handleBonos(w http.ResponseWriter, r *http.Request) {
	s.writePrice(w, r, r.PathValue("ticker"), instrument.Bonos)
}

func (s *Server) writePrice(w http.ResponseWriter, r *http.Request, ticker string, typ instrument.Type) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	q, err := s.resolver.Resolve(ctx, ticker, typ)
	switch {
	case errors.Is(err, reconcile.ErrInvalidTicker):
		writeError(w, http.StatusBadRequest, "Invalid ticker")
		return
	case err != nil:
		writeError(w, http.StatusNotFound, "Price not available")
		return
	}
	if q.Stale {
		w.Header().Set(StaleHeader, "true")
	}
	writeJSON(w, http.StatusOK, priceResponse{
		Ticker:    q.Ticker,
		Price:     q.Price,
		UpdatedAt: q.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ticker := instrument.NormalizeTicker(r.PathValue("ticker"))
	desde, hasta := r.URL.Query().Get("desde"), r.URL.Query().Get("hasta")
	if desde == "" || hasta == "" {
		writeError(w, http.StatusBadRequest, "desde and hasta are required (YYYY-MM-DD)")
		return
	}
	start, err := historical.ParseDate(desde)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid desde: "+desde)
		return
	}
	end, err := historical.ParseDate(hasta)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hasta: "+hasta)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	recs, err := s.history.Get(ctx, ticker, start, end)
	switch {
	case errors.Is(err, history.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid date range")
		return
	case err != nil:
		logging.FromContext(r.Context(), s.logger).Error("history query failed", "ticker", ticker, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	case len(recs) == 0:
		writeError(w, http.StatusNotFound, "History not available")
		return
	}

	resp := historyResponse{Ticker: ticker, History: make([]historyRow, 0, len(recs))}
	for _, rec := range recs {
		resp.History = append(resp.History, historyRow{
			Date:     rec.Date.Format(historical.DateLayout),
			Price:    rec.Price,
			AdjPrice: rec.AdjPrice,
			Volume:   rec.Volume,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
