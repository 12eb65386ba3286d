package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is one of the two known values.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

const (
	OrderStatusOpen     = "OPEN"
	OrderStatusFilled   = "FILLED"
	OrderStatusCanceled = "CANCELED"
)

// Order is a resting or incoming limit order. Qty is the remaining quantity
// and is decremented in place during matching; OrigQty never changes after
// submission.
type Order struct {
	ID           string
	Owner        string
	Side         Side
	Price        decimal.Decimal
	Qty          decimal.Decimal
	OrigQty      decimal.Decimal
	CreatedUnixM int64 // Unix milliseconds, tie-break and audit only
}

// NewOrder builds an order with the remaining quantity equal to the original.
func NewOrder(id, owner string, side Side, price, qty decimal.Decimal) *Order {
	return &Order{
		ID:           id,
		Owner:        owner,
		Side:         side,
		Price:        price,
		Qty:          qty,
		OrigQty:      qty,
		CreatedUnixM: time.Now().UnixMilli(),
	}
}

// FilledQty returns how much of the original quantity has been matched.
func (o *Order) FilledQty() decimal.Decimal {
	return o.OrigQty.Sub(o.Qty)
}

// View renders the order as a read-only listing row.
func (o *Order) View(symbol string) OrderView {
	return OrderView{
		ID:        o.ID,
		Symbol:    symbol,
		Side:      o.Side,
		Price:     o.Price,
		Qty:       o.OrigQty,
		FilledQty: o.FilledQty(),
		Status:    OrderStatusOpen,
		Ts:        o.CreatedUnixM,
	}
}

// OrderView is the external representation of a resting order.
type OrderView struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Qty       decimal.Decimal `json:"qty"`
	FilledQty decimal.Decimal `json:"filled_qty"`
	Status    string          `json:"status"`
	Ts        int64           `json:"ts"`
}
