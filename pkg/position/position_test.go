package position

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

func fill(side types.Side, price types.Price, qty types.Qty) wire.ClientResponse {
	return wire.ClientResponse{Type: wire.ResponseFilled, Side: side, Price: price, QtyExec: qty}
}

// P4 — a fully closed position has zero unrealized PnL and zero vwap_open
// on both sides.
func TestPosition_P4_FullCloseZerosVWAPAndUnrealized(t *testing.T) {
	p := New()
	p.AddFill(fill(types.Buy, 100, 10))
	p.AddFill(fill(types.Sell, 105, 10))

	if p.Net() != 0 {
		t.Fatalf("expected flat position, got %d", p.Net())
	}
	if !p.Unrealized().Equal(decimal.Zero) {
		t.Fatalf("expected zero unrealized, got %s", p.Unrealized())
	}
	if !p.Realized().Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected realized 50, got %s", p.Realized())
	}
}

// sign-flip in one fill resets VWAPs correctly.
func TestPosition_S6_SignFlipResetsVWAP(t *testing.T) {
	p := New()
	p.AddFill(fill(types.Buy, 100, 10))
	p.AddFill(fill(types.Sell, 110, 15))

	if p.Net() != -5 {
		t.Fatalf("expected net position -5 after flip, got %d", p.Net())
	}
	if !p.Realized().Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected realized 100, got %s", p.Realized())
	}
	if !p.Unrealized().Equal(decimal.Zero) {
		t.Fatalf("expected unrealized 0 marked at the fill price, got %s", p.Unrealized())
	}

	p.OnBBOUpdate(BBO{Bid: 108, Ask: 112})
	// mid = 110, matches the fill price, so unrealized stays 0.
	if !p.Unrealized().Equal(decimal.Zero) {
		t.Fatalf("expected unrealized 0 at mid=110, got %s", p.Unrealized())
	}

	p.OnBBOUpdate(BBO{Bid: 98, Ask: 102})
	// mid = 100; short 5 opened at 110 -> unrealized = (110-100)*5 = 50.
	if !p.Unrealized().Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected unrealized 50 at mid=100, got %s", p.Unrealized())
	}
}

func TestPosition_PartialFillAccruesVWAPOnSameSide(t *testing.T) {
	p := New()
	p.AddFill(fill(types.Buy, 100, 10))
	p.AddFill(fill(types.Buy, 110, 10))
	// vwap_open[BUY] = 1000 + 1100 = 2100 over 20 qty -> vwap = 105.
	p.OnBBOUpdate(BBO{Bid: 104, Ask: 106}) // mid = 105
	if !p.Unrealized().Equal(decimal.Zero) {
		t.Fatalf("expected unrealized 0 at the blended vwap, got %s", p.Unrealized())
	}
}

func TestPosition_OnBBOUpdate_NoOpWhenFlat(t *testing.T) {
	p := New()
	p.OnBBOUpdate(BBO{Bid: 100, Ask: 101})
	if !p.Unrealized().Equal(decimal.Zero) {
		t.Fatalf("expected unrealized to remain 0 while flat")
	}
}

func TestBBO_Valid(t *testing.T) {
	if (BBO{Bid: types.InvalidPrice, Ask: 100}).Valid() {
		t.Fatalf("expected invalid bid to make BBO invalid")
	}
	if !(BBO{Bid: 99, Ask: 100}).Valid() {
		t.Fatalf("expected both valid sides to make BBO valid")
	}
}
