// Package venue ties the per-symbol order books together: the Registry
// serializes mutations per symbol, and the Hub fans committed book changes
// out to subscribers.
package venue

import (
	"log/slog"
	"sync"

	"github.com/snowy615/alphaBook/internal/domain"
)

// subscriberBuffer is the per-subscription channel depth. A subscriber that
// falls this far behind is dropped rather than allowed to stall broadcasts.
const subscriberBuffer = 16

// Subscription is one live listener on a symbol's book updates. Consume from
// C and call Close when done.
type Subscription struct {
	hub    *Hub
	symbol string
	ch     chan domain.BookUpdate
	once   sync.Once
}

// C returns the update channel. It is closed when the subscription ends,
// whether by Close or by the hub dropping a stalled subscriber.
func (s *Subscription) C() <-chan domain.BookUpdate {
	return s.ch
}

// Close unsubscribes and releases the channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Hub maintains a dynamic set of listeners per symbol and pushes a payload to
// each on every committed book change. Delivery is best-effort: one broken or
// slow listener loses only itself.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a new listener for one symbol.
func (h *Hub) Subscribe(symbol string) *Subscription {
	sub := &Subscription{
		hub:    h,
		symbol: symbol,
		ch:     make(chan domain.BookUpdate, subscriberBuffer),
	}

	h.mu.Lock()
	set, ok := h.subs[symbol]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[symbol] = set
	}
	set[sub] = struct{}{}
	total := len(set)
	h.mu.Unlock()

	slog.Debug("subscriber added", slog.String("symbol", symbol), slog.Int("total", total))
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	sub.once.Do(func() {
		h.mu.Lock()
		if set, ok := h.subs[sub.symbol]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.subs, sub.symbol)
			}
		}
		h.mu.Unlock()
		close(sub.ch)
	})
}

// Broadcast delivers upd to every listener on the symbol. A subscriber whose
// buffer is full is dropped; delivery to the rest continues and nothing
// propagates back to the caller.
func (h *Hub) Broadcast(symbol string, upd domain.BookUpdate) {
	h.mu.RLock()
	set := h.subs[symbol]
	stalled := make([]*Subscription, 0)
	for sub := range set {
		select {
		case sub.ch <- upd:
		default:
			stalled = append(stalled, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range stalled {
		slog.Warn("dropping stalled subscriber", slog.String("symbol", symbol))
		h.unsubscribe(sub)
	}
}

// SubscriberCount returns the number of live listeners on a symbol.
func (h *Hub) SubscriberCount(symbol string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[symbol])
}
