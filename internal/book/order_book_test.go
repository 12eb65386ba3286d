package book

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/snowy615/alphaBook/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newOrder(id, owner string, side domain.Side, price, qty string) *domain.Order {
	return domain.NewOrder(id, owner, side, d(price), d(qty))
}

func TestAdd_RestsWhenNoMatch(t *testing.T) {
	b := New("AAPL")

	trades, _, err := b.Add(newOrder("o1", "alice", domain.SideBuy, "100", "10"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("expected 0 trades, got %d", len(trades))
	}

	bid, ok := b.BestBid()
	if !ok || !bid.Equal(d("100")) {
		t.Errorf("expected best bid 100, got %v (ok=%v)", bid, ok)
	}
	if _, ok := b.BestAsk(); ok {
		t.Error("expected no asks")
	}
}

func TestAdd_PartialFill(t *testing.T) {
	// Buy 10@100, then Sell 4@100 -> one trade 4@100, remaining bid 6@100.
	b := New("AAPL")

	if _, _, err := b.Add(newOrder("buy", "alice", domain.SideBuy, "100", "10")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	trades, _, err := b.Add(newOrder("sell", "bob", domain.SideSell, "100", "4"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if !tr.Price.Equal(d("100")) || !tr.Qty.Equal(d("4")) {
		t.Errorf("expected 4@100, got %v@%v", tr.Qty, tr.Price)
	}
	if tr.BuyerID != "alice" || tr.SellerID != "bob" {
		t.Errorf("wrong parties: buyer=%s seller=%s", tr.BuyerID, tr.SellerID)
	}
	if tr.MakerOrderID != "buy" || tr.TakerOrderID != "sell" {
		t.Errorf("wrong order refs: maker=%s taker=%s", tr.MakerOrderID, tr.TakerOrderID)
	}

	snap := b.Snapshot(10)
	if len(snap.Asks) != 0 {
		t.Errorf("expected no asks, got %d", len(snap.Asks))
	}
	if len(snap.Bids) != 1 {
		t.Fatalf("expected 1 bid level, got %d", len(snap.Bids))
	}
	if !snap.Bids[0].Qty.Equal(d("6")) {
		t.Errorf("expected remaining bid qty 6, got %v", snap.Bids[0].Qty)
	}
}

func TestAdd_SweepsMultipleLevels(t *testing.T) {
	// Buy 5@101, Buy 5@100, then Sell 8@99 -> trades 5@101 then 3@100.
	b := New("AAPL")

	if _, _, err := b.Add(newOrder("b1", "alice", domain.SideBuy, "101", "5")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, _, err := b.Add(newOrder("b2", "alice", domain.SideBuy, "100", "5")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	trades, _, err := b.Add(newOrder("s1", "bob", domain.SideSell, "99", "8"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if !trades[0].Price.Equal(d("101")) || !trades[0].Qty.Equal(d("5")) {
		t.Errorf("first trade should be 5@101, got %v@%v", trades[0].Qty, trades[0].Price)
	}
	if !trades[1].Price.Equal(d("100")) || !trades[1].Qty.Equal(d("3")) {
		t.Errorf("second trade should be 3@100, got %v@%v", trades[1].Qty, trades[1].Price)
	}

	snap := b.Snapshot(10)
	if len(snap.Asks) != 0 {
		t.Errorf("expected no asks, got %d", len(snap.Asks))
	}
	if len(snap.Bids) != 1 || !snap.Bids[0].Price.Equal(d("100")) || !snap.Bids[0].Qty.Equal(d("2")) {
		t.Errorf("expected remaining bid 2@100, got %+v", snap.Bids)
	}
}

func TestAdd_FIFOFairness(t *testing.T) {
	b := New("AAPL")

	a := newOrder("a", "alice", domain.SideSell, "100", "5")
	a.CreatedUnixM = 1
	c := newOrder("c", "carol", domain.SideSell, "100", "5")
	c.CreatedUnixM = 2
	if _, _, err := b.Add(a); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, _, err := b.Add(c); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	trades, _, err := b.Add(newOrder("t", "bob", domain.SideBuy, "100", "7"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	// Oldest resting order fills completely first.
	if trades[0].SellerID != "alice" || !trades[0].Qty.Equal(d("5")) {
		t.Errorf("first fill should drain alice's order, got %s qty=%v", trades[0].SellerID, trades[0].Qty)
	}
	if trades[1].SellerID != "carol" || !trades[1].Qty.Equal(d("2")) {
		t.Errorf("second fill should touch carol's order for 2, got %s qty=%v", trades[1].SellerID, trades[1].Qty)
	}
}

func TestAdd_ExecutesAtRestingPrice(t *testing.T) {
	b := New("AAPL")

	if _, _, err := b.Add(newOrder("s", "alice", domain.SideSell, "100", "5")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	// Aggressive buy at 105 must still trade at the resting 100.
	trades, _, err := b.Add(newOrder("t", "bob", domain.SideBuy, "105", "5"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(trades) != 1 || !trades[0].Price.Equal(d("100")) {
		t.Fatalf("expected execution at 100, got %+v", trades)
	}
}

func TestAdd_RejectsInvalidOrders(t *testing.T) {
	b := New("AAPL")

	cases := []*domain.Order{
		newOrder("z1", "alice", domain.SideBuy, "100", "0"),
		newOrder("z2", "alice", domain.SideBuy, "0", "10"),
		newOrder("z3", "alice", domain.SideSell, "-5", "10"),
		domain.NewOrder("z4", "alice", "SHORT", d("100"), d("10")),
	}
	for _, o := range cases {
		if _, _, err := b.Add(o); !errors.Is(err, domain.ErrInvalidOrder) {
			t.Errorf("order %s: expected ErrInvalidOrder, got %v", o.ID, err)
		}
	}

	// Rejection must not have touched the book.
	snap := b.Snapshot(10)
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 {
		t.Error("rejected orders must not mutate the book")
	}
}

func TestCancel_Idempotent(t *testing.T) {
	b := New("AAPL")

	if _, _, err := b.Add(newOrder("o1", "alice", domain.SideBuy, "100", "10")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if _, ok := b.Cancel("o1", "alice"); !ok {
		t.Error("first cancel should succeed")
	}
	if _, ok := b.Cancel("o1", "alice"); ok {
		t.Error("second cancel should report not found")
	}
	if _, ok := b.Cancel("missing", "alice"); ok {
		t.Error("unknown id should report not found")
	}
}

func TestCancel_OwnerMismatch(t *testing.T) {
	b := New("AAPL")

	if _, _, err := b.Add(newOrder("o1", "alice", domain.SideBuy, "100", "10")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Bob cannot cancel alice's order, and the outcome is identical to a
	// nonexistent order.
	if _, ok := b.Cancel("o1", "bob"); ok {
		t.Error("cross-owner cancel must fail")
	}
	if bid, ok := b.BestBid(); !ok || !bid.Equal(d("100")) {
		t.Error("order should still be resting after failed cancel")
	}
	if _, ok := b.Cancel("o1", "alice"); !ok {
		t.Error("owner cancel should still work")
	}
}

func TestCancel_RemovesEmptyLevel(t *testing.T) {
	b := New("AAPL")

	if _, _, err := b.Add(newOrder("o1", "alice", domain.SideSell, "101", "3")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, ok := b.Cancel("o1", "alice"); !ok {
		t.Fatal("cancel failed")
	}
	if _, ok := b.BestAsk(); ok {
		t.Error("ask side should be empty after canceling its only order")
	}
}

func TestSnapshot_DepthAndAggregation(t *testing.T) {
	b := New("AAPL")

	for i := 0; i < 5; i++ {
		px := fmt.Sprintf("%d", 100-i)
		if _, _, err := b.Add(newOrder(fmt.Sprintf("b%d", i), "alice", domain.SideBuy, px, "1")); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	// Two orders at the same price aggregate into one level.
	if _, _, err := b.Add(newOrder("b5", "bob", domain.SideBuy, "100", "2")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	snap := b.Snapshot(3)
	if len(snap.Bids) != 3 {
		t.Fatalf("expected depth-limited 3 levels, got %d", len(snap.Bids))
	}
	if !snap.Bids[0].Price.Equal(d("100")) || !snap.Bids[0].Qty.Equal(d("3")) {
		t.Errorf("expected top level 3@100, got %v@%v", snap.Bids[0].Qty, snap.Bids[0].Price)
	}
	if !snap.Bids[1].Price.Equal(d("99")) {
		t.Errorf("levels must be sorted best-first, got %v second", snap.Bids[1].Price)
	}
}

func TestOpenOrders_NewestFirst(t *testing.T) {
	b := New("AAPL")

	o1 := newOrder("o1", "alice", domain.SideBuy, "100", "10")
	o1.CreatedUnixM = 1
	o2 := newOrder("o2", "alice", domain.SideSell, "105", "5")
	o2.CreatedUnixM = 2
	o3 := newOrder("o3", "bob", domain.SideBuy, "99", "1")
	o3.CreatedUnixM = 3
	for _, o := range []*domain.Order{o1, o2, o3} {
		if _, _, err := b.Add(o); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	views := b.OpenOrders("alice")
	if len(views) != 2 {
		t.Fatalf("expected 2 open orders for alice, got %d", len(views))
	}
	if views[0].ID != "o2" || views[1].ID != "o1" {
		t.Errorf("expected newest first (o2, o1), got (%s, %s)", views[0].ID, views[1].ID)
	}
}

func TestOpenOrders_ReportsFilledQty(t *testing.T) {
	b := New("AAPL")

	if _, _, err := b.Add(newOrder("o1", "alice", domain.SideBuy, "100", "10")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, _, err := b.Add(newOrder("o2", "bob", domain.SideSell, "100", "4")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	views := b.OpenOrders("alice")
	if len(views) != 1 {
		t.Fatalf("expected 1 open order, got %d", len(views))
	}
	v := views[0]
	if !v.Qty.Equal(d("10")) || !v.FilledQty.Equal(d("4")) {
		t.Errorf("expected qty 10 filled 4, got qty %v filled %v", v.Qty, v.FilledQty)
	}
}

func TestFullFill_LeavesNoResidue(t *testing.T) {
	b := New("AAPL")

	if _, _, err := b.Add(newOrder("s", "alice", domain.SideSell, "100", "5")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	trades, _, err := b.Add(newOrder("t", "bob", domain.SideBuy, "100", "5"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}

	snap := b.Snapshot(10)
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 {
		t.Error("fully matched orders must leave an empty book")
	}
	if len(b.OpenOrders("alice")) != 0 || len(b.OpenOrders("bob")) != 0 {
		t.Error("no open orders should remain after a full fill")
	}
}

func TestAdd_ReportsFilledMakers(t *testing.T) {
	b := New("AAPL")

	if _, _, err := b.Add(newOrder("m1", "alice", domain.SideSell, "100", "3")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, _, err := b.Add(newOrder("m2", "carol", domain.SideSell, "101", "4")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Sweeps m1 completely and m2 partially.
	_, filled, err := b.Add(newOrder("t", "bob", domain.SideBuy, "101", "5"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(filled) != 1 {
		t.Fatalf("expected one fully filled maker, got %d", len(filled))
	}
	m := filled[0]
	if m.ID != "m1" || m.Symbol != "AAPL" {
		t.Errorf("expected maker m1 on AAPL, got %+v", m)
	}
	if m.Side != domain.SideSell || !m.Price.Equal(d("100")) {
		t.Errorf("filled view must carry side and price, got %+v", m)
	}
	if !m.Qty.Equal(d("3")) || !m.FilledQty.Equal(d("3")) {
		t.Errorf("expected qty 3 fully filled, got qty %v filled %v", m.Qty, m.FilledQty)
	}
}

func TestCancel_ReturnsRemovedOrderView(t *testing.T) {
	b := New("AAPL")

	if _, _, err := b.Add(newOrder("o1", "alice", domain.SideBuy, "100", "10")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	view, ok := b.Cancel("o1", "alice")
	if !ok {
		t.Fatal("cancel should succeed")
	}
	if view.ID != "o1" || view.Side != domain.SideBuy {
		t.Errorf("expected view of the removed order, got %+v", view)
	}
	if !view.Price.Equal(d("100")) || !view.Qty.Equal(d("10")) {
		t.Errorf("view must carry price and quantity, got %+v", view)
	}
}

func TestMid(t *testing.T) {
	b := New("AAPL")

	if _, ok := b.Mid(); ok {
		t.Error("empty book has no mid")
	}
	if _, _, err := b.Add(newOrder("b", "alice", domain.SideBuy, "99", "1")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, ok := b.Mid(); ok {
		t.Error("one-sided book has no mid")
	}
	if _, _, err := b.Add(newOrder("s", "bob", domain.SideSell, "101", "1")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	mid, ok := b.Mid()
	if !ok || !mid.Equal(d("100")) {
		t.Errorf("expected mid 100, got %v (ok=%v)", mid, ok)
	}
}

func TestReset(t *testing.T) {
	b := New("AAPL")

	if _, _, err := b.Add(newOrder("o1", "alice", domain.SideBuy, "100", "10")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	b.Reset()

	snap := b.Snapshot(10)
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 {
		t.Error("reset book should be empty")
	}
	if _, ok := b.Cancel("o1", "alice"); ok {
		t.Error("orders do not survive a reset")
	}
}
