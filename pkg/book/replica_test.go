package book

import (
	"testing"

	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

func newTestReplica() *Replica {
	return NewReplica(0, types.TestLimits())
}

func TestReplica_AddBuildsBBO(t *testing.T) {
	r := newTestReplica()
	updates := []wire.MarketUpdate{
		{Type: wire.UpdateAdd, OrderId: 1, Side: types.Buy, Price: 100, Qty: 10, Priority: 1},
		{Type: wire.UpdateAdd, OrderId: 2, Side: types.Buy, Price: 105, Qty: 5, Priority: 1},
		{Type: wire.UpdateAdd, OrderId: 3, Side: types.Sell, Price: 110, Qty: 7, Priority: 1},
	}
	for _, u := range updates {
		if err := r.Apply(u); err != nil {
			t.Fatalf("apply %+v: %v", u, err)
		}
	}
	if r.BestBid() != 105 {
		t.Fatalf("expected best bid 105, got %d", r.BestBid())
	}
	if r.BestAsk() != 110 {
		t.Fatalf("expected best ask 110, got %d", r.BestAsk())
	}
}

func TestReplica_CancelRemovesOrderAndEmptyLevel(t *testing.T) {
	r := newTestReplica()
	if err := r.Apply(wire.MarketUpdate{Type: wire.UpdateAdd, OrderId: 1, Side: types.Buy, Price: 100, Qty: 10, Priority: 1}); err != nil {
		t.Fatal(err)
	}
	if err := r.Apply(wire.MarketUpdate{Type: wire.UpdateCancel, OrderId: 1, Side: types.Buy, Price: 100}); err != nil {
		t.Fatal(err)
	}
	if r.BestBid() != types.InvalidPrice {
		t.Fatalf("expected empty bid side after cancelling sole order, got %d", r.BestBid())
	}
}

func TestReplica_ModifyUpdatesQtyInPlace(t *testing.T) {
	r := newTestReplica()
	if err := r.Apply(wire.MarketUpdate{Type: wire.UpdateAdd, OrderId: 1, Side: types.Buy, Price: 100, Qty: 10, Priority: 1}); err != nil {
		t.Fatal(err)
	}
	if err := r.Apply(wire.MarketUpdate{Type: wire.UpdateModify, OrderId: 1, Side: types.Buy, Price: 100, Qty: 4, Priority: 1}); err != nil {
		t.Fatal(err)
	}
	levels := r.Levels(types.Buy, 1)
	if len(levels) != 1 || levels[0].Qty != 4 {
		t.Fatalf("expected aggregate qty 4 at best bid, got %+v", levels)
	}
}

func TestReplica_ClearResetsState(t *testing.T) {
	r := newTestReplica()
	if err := r.Apply(wire.MarketUpdate{Type: wire.UpdateAdd, OrderId: 1, Side: types.Buy, Price: 100, Qty: 10, Priority: 1}); err != nil {
		t.Fatal(err)
	}
	if err := r.Apply(wire.MarketUpdate{Type: wire.UpdateClear}); err != nil {
		t.Fatal(err)
	}
	if r.BestBid() != types.InvalidPrice || r.BestAsk() != types.InvalidPrice {
		t.Fatalf("expected empty book after clear")
	}
	if err := r.Apply(wire.MarketUpdate{Type: wire.UpdateCancel, OrderId: 1, Side: types.Buy, Price: 100}); err != ErrUnknownOrderId {
		t.Fatalf("expected ErrUnknownOrderId for a pre-clear order id, got %v", err)
	}
}

func TestReplica_LevelsAggregatesMultipleOrdersAtSamePrice(t *testing.T) {
	r := newTestReplica()
	if err := r.Apply(wire.MarketUpdate{Type: wire.UpdateAdd, OrderId: 1, Side: types.Buy, Price: 100, Qty: 10, Priority: 1}); err != nil {
		t.Fatal(err)
	}
	if err := r.Apply(wire.MarketUpdate{Type: wire.UpdateAdd, OrderId: 2, Side: types.Buy, Price: 100, Qty: 20, Priority: 2}); err != nil {
		t.Fatal(err)
	}
	levels := r.Levels(types.Buy, 1)
	if len(levels) != 1 || levels[0].Qty != 30 {
		t.Fatalf("expected aggregate qty 30, got %+v", levels)
	}
}

func TestReplica_MirrorsExchangeBookAfterEquivalentUpdates(t *testing.T) {
	b := newTestBook()
	res, err := b.Add(1, 0, types.Buy, 100, 10)
	if err != nil {
		t.Fatal(err)
	}
	r := newTestReplica()
	for _, u := range res.MarketUpdates {
		if err := r.Apply(u); err != nil {
			t.Fatal(err)
		}
	}
	if r.BestBid() != b.BestBid() {
		t.Fatalf("replica BBO %d diverged from exchange BBO %d", r.BestBid(), b.BestBid())
	}

	res2, err := b.Add(2, 0, types.Sell, 100, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range res2.MarketUpdates {
		if err := r.Apply(u); err != nil {
			t.Fatal(err)
		}
	}
	if r.BestBid() != b.BestBid() {
		t.Fatalf("replica BBO %d diverged from exchange BBO %d after trade", r.BestBid(), b.BestBid())
	}
}
