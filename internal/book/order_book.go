// Package book implements a per-symbol limit order book with
// price-time-priority matching. It is pure data plus algorithm: no locking,
// no I/O. Serializing access is the owner's job.
package book

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/snowy615/alphaBook/internal/domain"
)

// level is a FIFO queue of resting orders sharing one exact price.
type level struct {
	price decimal.Decimal
	queue []*domain.Order // oldest first
}

func (l *level) totalQty() decimal.Decimal {
	total := decimal.Zero
	for _, o := range l.queue {
		total = total.Add(o.Qty)
	}
	return total
}

// OrderBook holds the two sides of one symbol's book. Bids are kept sorted
// descending (best first), asks ascending. An order index gives O(1) lookup
// of the resting side and price for cancellation.
type OrderBook struct {
	symbol string
	bids   []*level
	asks   []*level
	index  map[string]*domain.Order // order ID -> resting order
}

// New creates an empty book for one symbol.
func New(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		index:  make(map[string]*domain.Order),
	}
}

// Symbol returns the symbol this book trades.
func (b *OrderBook) Symbol() string { return b.symbol }

// Add runs the matching loop for one incoming limit order and returns the
// trades it produced, in the order the loop generated them, together with a
// view of every resting order the call filled completely. Any unmatched
// remainder rests on the book at the order's limit price.
//
// A non-positive price or quantity is rejected with ErrInvalidOrder before
// any mutation.
func (b *OrderBook) Add(o *domain.Order) ([]domain.Trade, []domain.OrderView, error) {
	if o == nil || !o.Side.Valid() || o.Price.Sign() <= 0 || o.Qty.Sign() <= 0 {
		return nil, nil, domain.ErrInvalidOrder
	}
	if o.OrigQty.Sign() <= 0 {
		o.OrigQty = o.Qty
	}

	var trades []domain.Trade
	var filled []domain.OrderView
	now := time.Now().UnixMilli()

	for o.Qty.Sign() > 0 {
		opp, ok := b.bestOpposing(o.Side)
		if !ok || !crosses(o, opp.price) {
			break
		}
		maker := opp.queue[0]
		fill := decimal.Min(o.Qty, maker.Qty)
		o.Qty = o.Qty.Sub(fill)
		maker.Qty = maker.Qty.Sub(fill)

		trade := domain.Trade{
			Symbol:       b.symbol,
			Price:        opp.price, // resting order's price
			Qty:          fill,
			MakerOrderID: maker.ID,
			TakerOrderID: o.ID,
			Ts:           now,
		}
		if o.Side == domain.SideBuy {
			trade.BuyerID, trade.SellerID = o.Owner, maker.Owner
		} else {
			trade.BuyerID, trade.SellerID = maker.Owner, o.Owner
		}
		trades = append(trades, trade)

		if maker.Qty.IsZero() {
			filled = append(filled, maker.View(b.symbol))
			opp.queue = opp.queue[1:]
			delete(b.index, maker.ID)
			if len(opp.queue) == 0 {
				b.removeLevel(maker.Side, opp.price)
			}
		}
	}

	if o.Qty.Sign() > 0 {
		b.rest(o)
	}
	return trades, filled, nil
}

// crosses reports whether the incoming order's limit reaches the opposing
// best price.
func crosses(o *domain.Order, best decimal.Decimal) bool {
	if o.Side == domain.SideBuy {
		return best.LessThanOrEqual(o.Price)
	}
	return best.GreaterThanOrEqual(o.Price)
}

// bestOpposing returns the best price level the order can match against.
func (b *OrderBook) bestOpposing(side domain.Side) (*level, bool) {
	if side == domain.SideBuy {
		if len(b.asks) == 0 {
			return nil, false
		}
		return b.asks[0], true
	}
	if len(b.bids) == 0 {
		return nil, false
	}
	return b.bids[0], true
}

// rest inserts the order at its limit price, creating the level if absent.
func (b *OrderBook) rest(o *domain.Order) {
	if o.Side == domain.SideBuy {
		// bids descending: first index with price <= o.Price
		i := sort.Search(len(b.bids), func(i int) bool {
			return b.bids[i].price.LessThanOrEqual(o.Price)
		})
		if i < len(b.bids) && b.bids[i].price.Equal(o.Price) {
			b.bids[i].queue = append(b.bids[i].queue, o)
		} else {
			b.bids = insertLevel(b.bids, i, &level{price: o.Price, queue: []*domain.Order{o}})
		}
	} else {
		// asks ascending: first index with price >= o.Price
		i := sort.Search(len(b.asks), func(i int) bool {
			return b.asks[i].price.GreaterThanOrEqual(o.Price)
		})
		if i < len(b.asks) && b.asks[i].price.Equal(o.Price) {
			b.asks[i].queue = append(b.asks[i].queue, o)
		} else {
			b.asks = insertLevel(b.asks, i, &level{price: o.Price, queue: []*domain.Order{o}})
		}
	}
	b.index[o.ID] = o
}

func insertLevel(side []*level, i int, l *level) []*level {
	side = append(side, nil)
	copy(side[i+1:], side[i:])
	side[i] = l
	return side
}

// removeLevel drops an emptied price level from its side.
func (b *OrderBook) removeLevel(side domain.Side, price decimal.Decimal) {
	if side == domain.SideBuy {
		for i, l := range b.bids {
			if l.price.Equal(price) {
				b.bids = append(b.bids[:i], b.bids[i+1:]...)
				return
			}
		}
	} else {
		for i, l := range b.asks {
			if l.price.Equal(price) {
				b.asks = append(b.asks[:i], b.asks[i+1:]...)
				return
			}
		}
	}
}

// Cancel removes the order with the given id if it exists and belongs to
// owner, returning a view of the removed order. A mismatched owner behaves
// exactly like a missing order.
func (b *OrderBook) Cancel(orderID, owner string) (domain.OrderView, bool) {
	o, ok := b.index[orderID]
	if !ok || o.Owner != owner {
		return domain.OrderView{}, false
	}

	side := b.bids
	if o.Side == domain.SideSell {
		side = b.asks
	}
	for _, l := range side {
		if !l.price.Equal(o.Price) {
			continue
		}
		for i, q := range l.queue {
			if q.ID == orderID {
				l.queue = append(l.queue[:i], l.queue[i+1:]...)
				delete(b.index, orderID)
				if len(l.queue) == 0 {
					b.removeLevel(o.Side, l.price)
				}
				return o.View(b.symbol), true
			}
		}
	}
	return domain.OrderView{}, false
}

// Snapshot returns up to depth aggregated levels per side, best first.
// The returned value shares no memory with the book.
func (b *OrderBook) Snapshot(depth int) domain.BookSnapshot {
	snap := domain.BookSnapshot{
		Bids: make([]domain.PriceLevel, 0, depth),
		Asks: make([]domain.PriceLevel, 0, depth),
	}
	for i, l := range b.bids {
		if i >= depth {
			break
		}
		snap.Bids = append(snap.Bids, domain.PriceLevel{Price: l.price, Qty: l.totalQty()})
	}
	for i, l := range b.asks {
		if i >= depth {
			break
		}
		snap.Asks = append(snap.Asks, domain.PriceLevel{Price: l.price, Qty: l.totalQty()})
	}
	return snap
}

// OpenOrders returns every resting order belonging to owner, newest first.
func (b *OrderBook) OpenOrders(owner string) []domain.OrderView {
	var out []domain.OrderView
	for _, o := range b.index {
		if o.Owner == owner {
			out = append(out, o.View(b.symbol))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ts != out[j].Ts {
			return out[i].Ts > out[j].Ts
		}
		return out[i].ID > out[j].ID // stable order for equal timestamps
	})
	return out
}

// BestBid returns the highest resting bid price.
func (b *OrderBook) BestBid() (decimal.Decimal, bool) {
	if len(b.bids) == 0 {
		return decimal.Zero, false
	}
	return b.bids[0].price, true
}

// BestAsk returns the lowest resting ask price.
func (b *OrderBook) BestAsk() (decimal.Decimal, bool) {
	if len(b.asks) == 0 {
		return decimal.Zero, false
	}
	return b.asks[0].price, true
}

// Mid returns the midpoint of the best bid and ask, if both sides exist.
func (b *OrderBook) Mid() (decimal.Decimal, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return decimal.Zero, false
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), true
}

// Reset drops every resting order from both sides.
func (b *OrderBook) Reset() {
	b.bids = nil
	b.asks = nil
	b.index = make(map[string]*domain.Order)
}
