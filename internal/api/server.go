// Package api exposes the venue core over HTTP and WebSocket. It is a thin
// boundary: all matching semantics live in the venue and refprice packages.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"

	"github.com/snowy615/alphaBook/internal/domain"
	"github.com/snowy615/alphaBook/internal/infra"
	"github.com/snowy615/alphaBook/internal/venue"
)

// RefPriceSource is the reference price lookup the handlers consume.
// *refprice.Engine satisfies it.
type RefPriceSource interface {
	RefPrice(symbol string) (decimal.Decimal, bool)
}

// provenanceSource is optionally implemented by price sources that can say
// where the official price came from.
type provenanceSource interface {
	Provenance(symbol string) (source string, providerTs, fetchedAt time.Time, ok bool)
}

// Server handles REST and WebSocket connections.
type Server struct {
	registry *venue.Registry
	hub      *venue.Hub
	prices   RefPriceSource
	router   *mux.Router

	httpServer *http.Server
}

// NewServer wires the routes around the registry, hub and price source.
func NewServer(registry *venue.Registry, hub *venue.Hub, prices RefPriceSource) *Server {
	s := &Server{
		registry: registry,
		hub:      hub,
		prices:   prices,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/orders", s.handleSubmit).Methods(http.MethodPost)
	s.router.HandleFunc("/orders/cancel", s.handleCancel).Methods(http.MethodPost)
	s.router.HandleFunc("/orders", s.handleListOpen).Methods(http.MethodGet)
	s.router.HandleFunc("/book/{symbol}", s.handleBook).Methods(http.MethodGet)
	s.router.HandleFunc("/reference/{symbol}", s.handleReference).Methods(http.MethodGet)
	s.router.HandleFunc("/ws/book/{symbol}", s.handleBookStream)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
}

// Handler returns the routing stack with CORS applied, for tests and for
// Start.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// Start runs the HTTP server until ctx is canceled.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		s.httpServer.Shutdown(context.Background())
	}()

	slog.Info("api server listening", slog.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid price")
		return
	}
	qty, err := decimal.NewFromString(req.Qty)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid qty")
		return
	}

	orderID, trades, snap, err := s.registry.Submit(req.Symbol, domain.Side(req.Side), price, qty, req.OwnerID)
	switch {
	case errors.Is(err, domain.ErrInvalidOrder):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, domain.ErrUnknownSymbol):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "submit failed")
		return
	}

	if trades == nil {
		trades = []domain.Trade{}
	}
	// The snapshot was taken under the symbol lock together with the trades,
	// so the two never disagree.
	writeJSON(w, http.StatusOK, SubmitResponse{
		OrderID:  orderID,
		Trades:   trades,
		Snapshot: snap,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	ok := s.registry.Cancel(req.Symbol, req.OrderID, req.OwnerID)
	writeJSON(w, http.StatusOK, CancelResponse{Canceled: ok})
}

func (s *Server) handleListOpen(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}
	symbol := r.URL.Query().Get("symbol") // empty means all symbols

	views := s.registry.ListOpen(symbol, owner)
	if views == nil {
		views = []domain.OrderView{}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	depth := 0
	if raw := r.URL.Query().Get("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid depth")
			return
		}
		depth = d
	}

	writeJSON(w, http.StatusOK, s.registry.Snapshot(symbol, depth))
}

func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	resp := ReferenceResponse{Symbol: symbol}
	if px, ok := s.prices.RefPrice(symbol); ok {
		v := px.String()
		resp.Price = &v
	}
	if prov, ok := s.prices.(provenanceSource); ok {
		if source, _, _, found := prov.Provenance(symbol); found {
			resp.Source = source
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, infra.GlobalMetrics.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
