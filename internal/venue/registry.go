package venue

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/snowy615/alphaBook/internal/book"
	"github.com/snowy615/alphaBook/internal/domain"
	"github.com/snowy615/alphaBook/internal/infra"
)

// Journal durably records emitted trades and terminal order transitions. The
// registry never retries a failed write; the matching state stays the source
// of truth for in-flight orders.
type Journal interface {
	RecordTrades(trades []domain.Trade) error
	RecordOrder(view domain.OrderView, status string) error
}

// HintSink receives the freshest book mid-price after each committed change.
// Implementations must not block.
type HintSink interface {
	SetHintMid(symbol string, mid decimal.Decimal)
}

// entry pairs one book with the mutex that serializes every mutation on it.
type entry struct {
	mu   sync.Mutex
	book *book.OrderBook
}

// Registry owns one order book and one lock per symbol, created lazily on
// first reference. It gives the illusion of a single-threaded matching engine
// per symbol while unrelated symbols proceed independently.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry

	allowed map[string]struct{} // empty means every symbol is tradable

	hub     *Hub
	journal Journal
	hints   HintSink
	depth   int
}

// Option configures a Registry.
type Option func(*Registry)

// WithJournal attaches a persistence collaborator.
func WithJournal(j Journal) Option {
	return func(r *Registry) { r.journal = j }
}

// WithHintSink attaches a mid-price consumer, typically the reference price
// engine.
func WithHintSink(s HintSink) Option {
	return func(r *Registry) { r.hints = s }
}

// WithSymbols restricts trading to the given symbols. With no restriction any
// symbol is created on first use.
func WithSymbols(symbols []string) Option {
	return func(r *Registry) {
		r.allowed = make(map[string]struct{}, len(symbols))
		for _, s := range symbols {
			r.allowed[s] = struct{}{}
		}
	}
}

// WithDepth sets the snapshot depth used for broadcasts.
func WithDepth(depth int) Option {
	return func(r *Registry) {
		if depth > 0 {
			r.depth = depth
		}
	}
}

// NewRegistry creates an empty registry around the given hub.
func NewRegistry(hub *Hub, opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		hub:     hub,
		depth:   10,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// entryFor returns the symbol's entry, creating book and lock on first use.
// The registry lock is held only for the map access, never for matching.
func (r *Registry) entryFor(symbol string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[symbol]
	if !ok {
		e = &entry{book: book.New(symbol)}
		r.entries[symbol] = e
	}
	return e
}

// lookup returns the symbol's entry without creating one. Read paths use it
// so arbitrary symbol strings never grow the registry.
func (r *Registry) lookup(symbol string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[symbol]
	return e, ok
}

func (r *Registry) tradable(symbol string) bool {
	if len(r.allowed) == 0 {
		return true
	}
	_, ok := r.allowed[symbol]
	return ok
}

// Submit creates a limit order, runs it through the symbol's book and
// returns the assigned order id, any trades produced and the post-match
// snapshot. The symbol lock is held for the mutation and the snapshot, so
// both the broadcast payload and the returned snapshot are consistent with
// the change that triggered them.
func (r *Registry) Submit(symbol string, side domain.Side, price, qty decimal.Decimal, owner string) (string, []domain.Trade, domain.BookSnapshot, error) {
	if !r.tradable(symbol) {
		infra.GlobalMetrics.RecordReject()
		return "", nil, domain.BookSnapshot{}, domain.ErrUnknownSymbol
	}
	if !side.Valid() || price.Sign() <= 0 || qty.Sign() <= 0 || owner == "" {
		infra.GlobalMetrics.RecordReject()
		return "", nil, domain.BookSnapshot{}, domain.ErrInvalidOrder
	}

	order := domain.NewOrder(uuid.NewString(), owner, side, price, qty)
	e := r.entryFor(symbol)

	start := time.Now()
	e.mu.Lock()
	trades, filledMakers, err := e.book.Add(order)
	if err != nil {
		e.mu.Unlock()
		infra.GlobalMetrics.RecordReject()
		return "", nil, domain.BookSnapshot{}, err
	}
	snap := e.book.Snapshot(r.depth)
	mid, hasMid := e.book.Mid()
	e.mu.Unlock()
	infra.GlobalMetrics.RecordSubmit(time.Since(start).Nanoseconds(), len(trades))

	r.record(trades)
	if order.Qty.IsZero() {
		r.recordOrder(order.View(symbol), domain.OrderStatusFilled)
	}
	for _, maker := range filledMakers {
		r.recordOrder(maker, domain.OrderStatusFilled)
	}

	r.hub.Broadcast(symbol, domain.BookUpdate{
		Type:   "snapshot",
		Symbol: symbol,
		Book:   snap,
		Trades: trades,
	})
	if hasMid && r.hints != nil {
		r.hints.SetHintMid(symbol, mid)
	}

	return order.ID, trades, snap, nil
}

// Cancel removes a resting order if it exists and belongs to owner. It
// reports false for unknown symbols, unknown ids and other users' orders
// alike.
func (r *Registry) Cancel(symbol, orderID, owner string) bool {
	if !r.tradable(symbol) {
		return false
	}
	e, found := r.lookup(symbol)
	if !found {
		return false
	}

	e.mu.Lock()
	view, ok := e.book.Cancel(orderID, owner)
	var snap domain.BookSnapshot
	if ok {
		snap = e.book.Snapshot(r.depth)
	}
	e.mu.Unlock()

	if !ok {
		return false
	}
	infra.GlobalMetrics.RecordCancel()

	r.recordOrder(view, domain.OrderStatusCanceled)

	r.hub.Broadcast(symbol, domain.BookUpdate{
		Type:   "snapshot",
		Symbol: symbol,
		Book:   snap,
	})
	return true
}

// Snapshot returns a depth-limited aggregated view of one symbol's book. A
// symbol without a live book yields an empty snapshot.
func (r *Registry) Snapshot(symbol string, depth int) domain.BookSnapshot {
	if depth <= 0 {
		depth = r.depth
	}
	e, found := r.lookup(symbol)
	if !found {
		return domain.BookSnapshot{Bids: []domain.PriceLevel{}, Asks: []domain.PriceLevel{}}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Snapshot(depth)
}

// ListOpen returns owner's resting orders, newest first. An empty symbol
// merges every book.
func (r *Registry) ListOpen(symbol, owner string) []domain.OrderView {
	if symbol != "" {
		e, found := r.lookup(symbol)
		if !found {
			return nil
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.book.OpenOrders(owner)
	}

	r.mu.Lock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	var out []domain.OrderView
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.book.OpenOrders(owner)...)
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ts != out[j].Ts {
			return out[i].Ts > out[j].Ts
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Reset drops all resting orders from one symbol's book and broadcasts the
// now-empty snapshot. A symbol without a live book is a no-op.
func (r *Registry) Reset(symbol string) {
	e, found := r.lookup(symbol)
	if !found {
		return
	}

	e.mu.Lock()
	e.book.Reset()
	snap := e.book.Snapshot(r.depth)
	e.mu.Unlock()

	r.hub.Broadcast(symbol, domain.BookUpdate{
		Type:   "snapshot",
		Symbol: symbol,
		Book:   snap,
	})
}

// Symbols returns the symbols with a live book, sorted.
func (r *Registry) Symbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for s := range r.entries {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// record hands trades to the journal. Failures are logged, never surfaced to
// the submitter.
func (r *Registry) record(trades []domain.Trade) {
	if r.journal == nil || len(trades) == 0 {
		return
	}
	if err := r.journal.RecordTrades(trades); err != nil {
		slog.Error("trade journal write failed", slog.Any("error", err))
	}
}

func (r *Registry) recordOrder(view domain.OrderView, status string) {
	if r.journal == nil {
		return
	}
	view.Status = status
	if err := r.journal.RecordOrder(view, status); err != nil {
		slog.Error("order journal write failed",
			slog.String("order_id", view.ID), slog.Any("error", err))
	}
}
