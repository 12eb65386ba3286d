package domain

import "github.com/shopspring/decimal"

// Trade is an immutable record of one match. The price is always the resting
// order's price, never the aggressor's.
type Trade struct {
	Symbol       string          `json:"symbol"`
	Price        decimal.Decimal `json:"price"`
	Qty          decimal.Decimal `json:"qty"`
	BuyerID      string          `json:"buyer_id"`
	SellerID     string          `json:"seller_id"`
	MakerOrderID string          `json:"maker_order_id"`
	TakerOrderID string          `json:"taker_order_id"`
	Ts           int64           `json:"ts"`
}

// PriceLevel is one aggregated row of a book snapshot: total remaining
// quantity at a price, individual orders not exposed.
type PriceLevel struct {
	Price decimal.Decimal `json:"px"`
	Qty   decimal.Decimal `json:"qty"`
}

// BookSnapshot is a depth-limited, best-first view of both sides.
type BookSnapshot struct {
	Bids []PriceLevel `json:"bids"`
	Asks []PriceLevel `json:"asks"`
}

// BookUpdate is the payload pushed to subscribers after a committed book
// change.
type BookUpdate struct {
	Type   string       `json:"type"`
	Symbol string       `json:"symbol"`
	Book   BookSnapshot `json:"book"`
	Trades []Trade      `json:"trades,omitempty"`
}
