package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Simplici0/precifica/internal/fees"
	"github.com/Simplici0/precifica/internal/pricing"
	"github.com/Simplici0/precifica/internal/store"
)

const maxBodyBytes = 1 << 20

type scheduleStore interface {
	ListSchedules(ctx context.Context) (fees.Table, error)
	GetSchedule(ctx context.Context, id fees.MarketplaceID) (fees.Schedule, error)
	SaveSchedule(ctx context.Context, sched fees.Schedule) error
	SaveQuote(ctx context.Context, q store.Quote) (store.Quote, error)
	GetQuote(ctx context.Context, id string) (store.Quote, error)
	ListQuotes(ctx context.Context, query string) ([]store.Quote, error)
}

type server struct {
	store  scheduleStore
	solver pricing.Solver
	log    zerolog.Logger
	now    func() time.Time
}

func newServer(st scheduleStore, solver pricing.Solver, logger zerolog.Logger) *server {
	return &server{store: st, solver: solver, log: logger, now: time.Now}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/marketplaces", s.handleListMarketplaces)
		r.Get("/marketplaces/{id}", s.handleGetMarketplace)
		r.Put("/marketplaces/{id}", s.handlePutMarketplace)

		r.Post("/price", s.handlePrice)
		r.Post("/price/flat", s.handleFlatPrice)
		r.Post("/price/compare", s.handleComparePrices)
		r.Post("/markup", s.handleMarkup)
		r.Post("/decompose", s.handleDecompose)

		r.Post("/quotes", s.handleCreateQuote)
		r.Get("/quotes", s.handleListQuotes)
		r.Get("/quotes/{id}", s.handleGetQuote)

		r.Post("/export", s.handleExport)
	})

	return r
}

func (s *server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		event := s.log.Info()
		if status >= http.StatusInternalServerError {
			event = s.log.Error()
		}
		event.
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// internalError logs err and answers with a generic 500.
func (s *server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.log.Error().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg(msg)
	writeError(w, http.StatusInternalServerError, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}
