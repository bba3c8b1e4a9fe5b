package api

// Request and response types for the REST endpoints and the WebSocket
// event stream.

// OrderInfo is one entry from the active-order set.
type OrderInfo struct {
	ClOrdID  string `json:"clOrdId"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
	OrdType  string `json:"ordType"`
}

// SubmitOrderRequest is the payload for POST /api/v1/orders.
type SubmitOrderRequest struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`     // "BUY" or "SELL"
	OrdType  string `json:"ordType"`  // "LIMIT" or "MARKET"
	Quantity string `json:"quantity"` // decimal string
	Price    string `json:"price"`    // decimal string, required for LIMIT
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel.
type CancelOrderRequest struct {
	OrigClOrdID string `json:"origClOrdId"`
}

// ReplaceOrderRequest is the payload for POST /api/v1/orders/replace.
// Zero or omitted quantity/price keep the original values.
type ReplaceOrderRequest struct {
	OrigClOrdID string `json:"origClOrdId"`
	Quantity    string `json:"quantity,omitempty"`
	Price       string `json:"price,omitempty"`
}

// SubmitResponse acknowledges an accepted order-flow request.
type SubmitResponse struct {
	Status  string `json:"status"`
	ClOrdID string `json:"clOrdId"`
}

// LatencyStats is the round-trip latency summary, in milliseconds.
type LatencyStats struct {
	Count   int     `json:"count"`
	Pending int     `json:"pending"`
	MinMs   float64 `json:"minMs"`
	MaxMs   float64 `json:"maxMs"`
	MeanMs  float64 `json:"meanMs"`
	P50Ms   float64 `json:"p50Ms"`
	P95Ms   float64 `json:"p95Ms"`
	P99Ms   float64 `json:"p99Ms"`
}

// DispatcherStats reports how inbound work has been executed.
type DispatcherStats struct {
	WorkerRuns uint64 `json:"workerRuns"`
	CallerRuns uint64 `json:"callerRuns"`
	QueueDepth int    `json:"queueDepth"`
}

// VenueStats reports the simulator's accepted-order state.
type VenueStats struct {
	AcceptedOrders int `json:"acceptedOrders"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
