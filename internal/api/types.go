package api

import "github.com/snowy615/alphaBook/internal/domain"

// SubmitRequest is the POST /orders payload. Price and quantity travel as
// strings so exact decimals survive the wire.
type SubmitRequest struct {
	Symbol  string `json:"symbol"`
	Side    string `json:"side"`
	Price   string `json:"price"`
	Qty     string `json:"qty"`
	OwnerID string `json:"owner_id"`
}

// SubmitResponse acknowledges an accepted order.
type SubmitResponse struct {
	OrderID  string              `json:"order_id"`
	Trades   []domain.Trade      `json:"trades"`
	Snapshot domain.BookSnapshot `json:"snapshot"`
}

// CancelRequest is the POST /orders/cancel payload.
type CancelRequest struct {
	Symbol  string `json:"symbol"`
	OrderID string `json:"order_id"`
	OwnerID string `json:"owner_id"`
}

// CancelResponse reports whether anything was removed.
type CancelResponse struct {
	Canceled bool `json:"canceled"`
}

// ReferenceResponse carries the current reference price, null when none
// exists yet.
type ReferenceResponse struct {
	Symbol string  `json:"symbol"`
	Price  *string `json:"price"`
	Source string  `json:"source,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// wsHello is the first frame sent to a new book subscriber.
type wsHello struct {
	Type     string              `json:"type"`
	Symbol   string              `json:"symbol"`
	Book     domain.BookSnapshot `json:"book"`
	RefPrice *string             `json:"ref_price"`
}
