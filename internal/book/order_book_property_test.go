package book

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/snowy615/alphaBook/internal/domain"
)

// Property: after any sequence of adds the book is never crossed at rest.
func TestProperty_BookNeverCrossed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := New("TEST")
		n := rapid.IntRange(1, 40).Draw(t, "n")

		for i := 0; i < n; i++ {
			side := domain.SideBuy
			if rapid.Bool().Draw(t, fmt.Sprintf("sell%d", i)) {
				side = domain.SideSell
			}
			price := rapid.Int64Range(1, 200).Draw(t, fmt.Sprintf("px%d", i))
			qty := rapid.Int64Range(1, 50).Draw(t, fmt.Sprintf("qty%d", i))

			o := domain.NewOrder(fmt.Sprintf("o%d", i), "u", side,
				decimal.NewFromInt(price), decimal.NewFromInt(qty))
			if _, _, err := b.Add(o); err != nil {
				t.Fatalf("Add failed: %v", err)
			}

			bid, okB := b.BestBid()
			ask, okA := b.BestAsk()
			if okB && okA && bid.GreaterThanOrEqual(ask) {
				t.Fatalf("book crossed after order %d: bid %v >= ask %v", i, bid, ask)
			}
		}
	})
}

// Property: quantity is conserved for each individual add.
func TestProperty_QuantityConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := New("TEST")

		// Seed some resting asks.
		restingTotal := decimal.Zero
		n := rapid.IntRange(1, 10).Draw(t, "n")
		for i := 0; i < n; i++ {
			price := rapid.Int64Range(90, 110).Draw(t, fmt.Sprintf("ap%d", i))
			qty := rapid.Int64Range(1, 20).Draw(t, fmt.Sprintf("aq%d", i))
			o := domain.NewOrder(fmt.Sprintf("a%d", i), "maker", domain.SideSell,
				decimal.NewFromInt(price), decimal.NewFromInt(qty))
			if _, _, err := b.Add(o); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			restingTotal = restingTotal.Add(decimal.NewFromInt(qty))
		}

		price := rapid.Int64Range(80, 120).Draw(t, "bp")
		qty := rapid.Int64Range(1, 100).Draw(t, "bq")
		taker := domain.NewOrder("taker", "taker", domain.SideBuy,
			decimal.NewFromInt(price), decimal.NewFromInt(qty))
		orig := taker.OrigQty

		trades, _, err := b.Add(taker)
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		filled := decimal.Zero
		for _, tr := range trades {
			if tr.Qty.Sign() <= 0 {
				t.Fatalf("non-positive fill: %v", tr.Qty)
			}
			filled = filled.Add(tr.Qty)
		}

		// Fills never exceed either the incoming quantity or the liquidity
		// that was resting before the call.
		if filled.GreaterThan(orig) || filled.GreaterThan(restingTotal) {
			t.Fatalf("overfilled: filled=%v orig=%v resting=%v", filled, orig, restingTotal)
		}
		// Remaining equals original minus the sum of fills.
		if !taker.Qty.Equal(orig.Sub(filled)) {
			t.Fatalf("remaining %v != orig %v - filled %v", taker.Qty, orig, filled)
		}
	})
}

// Property: price compatibility decides matching. A lone bid and ask trade
// if and only if bid >= ask.
func TestProperty_PriceCompatibility(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		askPrice := rapid.Int64Range(1, 1000).Draw(t, "askPrice")
		bidPrice := rapid.Int64Range(1, 1000).Draw(t, "bidPrice")
		qty := rapid.Int64Range(1, 100).Draw(t, "qty")

		b := New("TEST")
		ask := domain.NewOrder("ask", "seller", domain.SideSell,
			decimal.NewFromInt(askPrice), decimal.NewFromInt(qty))
		if _, _, err := b.Add(ask); err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		bid := domain.NewOrder("bid", "buyer", domain.SideBuy,
			decimal.NewFromInt(bidPrice), decimal.NewFromInt(qty))
		trades, _, err := b.Add(bid)
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		shouldMatch := bidPrice >= askPrice
		if shouldMatch && len(trades) == 0 {
			t.Fatalf("expected trade when bid=%d >= ask=%d", bidPrice, askPrice)
		}
		if !shouldMatch && len(trades) != 0 {
			t.Fatalf("expected no trade when bid=%d < ask=%d", bidPrice, askPrice)
		}
		if shouldMatch && !trades[0].Price.Equal(decimal.NewFromInt(askPrice)) {
			t.Fatalf("execution must be at the resting price %d, got %v", askPrice, trades[0].Price)
		}
	})
}
