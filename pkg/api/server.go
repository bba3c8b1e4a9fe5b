// Package api exposes the runtime over REST and WebSocket: order
// submission and inspection, latency statistics, generator control, and
// a live event stream.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fixbench/pkg/exchange/dispatch"
	"fixbench/pkg/exchange/gen"
	"fixbench/pkg/exchange/latency"
	"fixbench/pkg/exchange/tracker"
	"fixbench/pkg/exchange/venue"
	"fixbench/pkg/fix"
	"fixbench/pkg/storage"
)

// Deps carries the components the server exposes. Initiator-side fields
// (Orders, Recorder, Generator) and the acceptor-side Venue are nil for
// the role that does not run them; endpoints for absent components
// answer 404.
type Deps struct {
	Orders     *tracker.Tracker
	Recorder   *latency.Recorder
	Generator  *gen.Generator
	Dispatcher *dispatch.Dispatcher
	Venue      *venue.Simulator
	Journal    *storage.Journal
	SessionID  quickfix.SessionID
}

type Server struct {
	deps   Deps
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
	httpd  *http.Server
}

func NewServer(deps Deps, log *zap.SugaredLogger) *Server {
	s := &Server{
		deps:   deps,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}
	s.setupRoutes()
	return s
}

// Hub returns the WebSocket hub so handlers can publish events to it.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order flow (initiator role)
	api.HandleFunc("/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/replace", s.handleReplaceOrder).Methods("POST")

	// Latency statistics
	api.HandleFunc("/latency", s.handleGetLatency).Methods("GET")
	api.HandleFunc("/latency/reset", s.handleResetLatency).Methods("POST")

	// Order generator control
	api.HandleFunc("/generator/start", s.handleGeneratorStart).Methods("POST")
	api.HandleFunc("/generator/stop", s.handleGeneratorStop).Methods("POST")
	api.HandleFunc("/generator/status", s.handleGeneratorStatus).Methods("GET")

	// Runtime state
	api.HandleFunc("/dispatcher", s.handleGetDispatcher).Methods("GET")
	api.HandleFunc("/venue", s.handleGetVenue).Methods("GET")
	api.HandleFunc("/journal", s.handleGetJournal).Methods("GET")

	// WebSocket event stream
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})

	s.httpd = &http.Server{Addr: addr, Handler: c.Handler(s.router)}

	s.log.Infow("api_server_started", "addr", addr)
	if err := s.httpd.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpd == nil {
		return nil
	}
	return s.httpd.Shutdown(ctx)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	if s.deps.Orders == nil {
		respondError(w, http.StatusNotFound, "order tracking not enabled", "")
		return
	}

	active := s.deps.Orders.Active()
	response := make([]OrderInfo, len(active))
	for i, o := range active {
		response[i] = OrderInfo{
			ClOrdID:  o.ClOrdID,
			Symbol:   o.Symbol,
			Side:     fix.DescribeSide(o.Side),
			Quantity: o.Quantity.String(),
			Price:    o.Price.String(),
			OrdType:  fix.DescribeOrdType(o.OrdType),
		}
	}
	respondJSON(w, response)
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	if s.deps.Orders == nil {
		respondError(w, http.StatusNotFound, "order tracking not enabled", "")
		return
	}

	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Symbol == "" {
		respondError(w, http.StatusBadRequest, "missing symbol", "")
		return
	}

	side, err := parseSide(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid side", err.Error())
		return
	}
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil || quantity.Sign() <= 0 {
		respondError(w, http.StatusBadRequest, "invalid quantity", req.Quantity)
		return
	}

	var clOrdID string
	switch strings.ToUpper(req.OrdType) {
	case "MARKET":
		clOrdID, err = s.deps.Orders.SubmitMarket(s.deps.SessionID, req.Symbol, side, quantity)
	case "LIMIT", "":
		var price decimal.Decimal
		price, err = decimal.NewFromString(req.Price)
		if err != nil || price.Sign() <= 0 {
			respondError(w, http.StatusBadRequest, "invalid price", req.Price)
			return
		}
		clOrdID, err = s.deps.Orders.SubmitLimit(s.deps.SessionID, req.Symbol, side, quantity, price)
	default:
		respondError(w, http.StatusBadRequest, "invalid ordType", req.OrdType)
		return
	}
	if err != nil {
		respondError(w, http.StatusBadGateway, "order send failed", err.Error())
		return
	}

	respondJSON(w, SubmitResponse{Status: "sent", ClOrdID: clOrdID})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if s.deps.Orders == nil {
		respondError(w, http.StatusNotFound, "order tracking not enabled", "")
		return
	}

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.OrigClOrdID == "" {
		respondError(w, http.StatusBadRequest, "missing origClOrdId", "")
		return
	}

	clOrdID, err := s.deps.Orders.SubmitCancel(s.deps.SessionID, req.OrigClOrdID)
	if err == tracker.ErrOrderNotFound {
		respondError(w, http.StatusNotFound, "order not found", req.OrigClOrdID)
		return
	}
	if err != nil {
		respondError(w, http.StatusBadGateway, "cancel send failed", err.Error())
		return
	}

	respondJSON(w, SubmitResponse{Status: "sent", ClOrdID: clOrdID})
}

func (s *Server) handleReplaceOrder(w http.ResponseWriter, r *http.Request) {
	if s.deps.Orders == nil {
		respondError(w, http.StatusNotFound, "order tracking not enabled", "")
		return
	}

	var req ReplaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.OrigClOrdID == "" {
		respondError(w, http.StatusBadRequest, "missing origClOrdId", "")
		return
	}

	quantity, err := parseOptionalDecimal(req.Quantity)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid quantity", req.Quantity)
		return
	}
	price, err := parseOptionalDecimal(req.Price)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid price", req.Price)
		return
	}

	clOrdID, err := s.deps.Orders.SubmitReplace(s.deps.SessionID, req.OrigClOrdID, quantity, price)
	if err == tracker.ErrOrderNotFound {
		respondError(w, http.StatusNotFound, "order not found", req.OrigClOrdID)
		return
	}
	if err != nil {
		respondError(w, http.StatusBadGateway, "replace send failed", err.Error())
		return
	}

	respondJSON(w, SubmitResponse{Status: "sent", ClOrdID: clOrdID})
}

func (s *Server) handleGetLatency(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recorder == nil {
		respondError(w, http.StatusNotFound, "latency recording not enabled", "")
		return
	}

	stats, ok := s.deps.Recorder.Statistics()
	if !ok {
		respondJSON(w, LatencyStats{Pending: s.deps.Recorder.PendingCount()})
		return
	}
	respondJSON(w, LatencyStats{
		Count:   stats.Count,
		Pending: stats.Pending,
		MinMs:   millis(stats.Min),
		MaxMs:   millis(stats.Max),
		MeanMs:  millis(stats.Mean),
		P50Ms:   millis(stats.P50),
		P95Ms:   millis(stats.P95),
		P99Ms:   millis(stats.P99),
	})
}

func (s *Server) handleResetLatency(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recorder == nil {
		respondError(w, http.StatusNotFound, "latency recording not enabled", "")
		return
	}
	s.deps.Recorder.Reset()
	respondJSON(w, map[string]string{"status": "reset"})
}

func (s *Server) handleGeneratorStart(w http.ResponseWriter, r *http.Request) {
	if s.deps.Generator == nil {
		respondError(w, http.StatusNotFound, "generator not enabled", "")
		return
	}
	if err := s.deps.Generator.Start(s.deps.SessionID); err != nil {
		respondError(w, http.StatusConflict, "generator start failed", err.Error())
		return
	}
	respondJSON(w, map[string]string{"status": "started"})
}

func (s *Server) handleGeneratorStop(w http.ResponseWriter, r *http.Request) {
	if s.deps.Generator == nil {
		respondError(w, http.StatusNotFound, "generator not enabled", "")
		return
	}
	s.deps.Generator.Stop()
	respondJSON(w, s.deps.Generator.Status())
}

func (s *Server) handleGeneratorStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Generator == nil {
		respondError(w, http.StatusNotFound, "generator not enabled", "")
		return
	}
	respondJSON(w, s.deps.Generator.Status())
}

func (s *Server) handleGetDispatcher(w http.ResponseWriter, r *http.Request) {
	if s.deps.Dispatcher == nil {
		respondError(w, http.StatusNotFound, "dispatcher not enabled", "")
		return
	}
	respondJSON(w, DispatcherStats{
		WorkerRuns: s.deps.Dispatcher.WorkerRuns(),
		CallerRuns: s.deps.Dispatcher.CallerRuns(),
		QueueDepth: s.deps.Dispatcher.QueueDepth(),
	})
}

func (s *Server) handleGetVenue(w http.ResponseWriter, r *http.Request) {
	if s.deps.Venue == nil {
		respondError(w, http.StatusNotFound, "venue not enabled", "")
		return
	}
	respondJSON(w, VenueStats{AcceptedOrders: s.deps.Venue.AcceptedCount()})
}

func (s *Server) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		respondError(w, http.StatusNotFound, "journal not enabled", "")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = n
	}

	events, err := s.deps.Journal.Recent(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal read failed", err.Error())
		return
	}
	if events == nil {
		events = []storage.Event{}
	}
	respondJSON(w, events)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

func parseSide(v string) (enum.Side, error) {
	switch strings.ToUpper(v) {
	case "BUY", "1":
		return enum.Side_BUY, nil
	case "SELL", "2":
		return enum.Side_SELL, nil
	default:
		return "", fmt.Errorf("unknown side %q", v)
	}
}

// parseOptionalDecimal maps an empty string to zero, which downstream
// replace logic treats as "keep the original value".
func parseOptionalDecimal(v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(v)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
