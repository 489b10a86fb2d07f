package ordermgmt

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/luxfi/xchange/pkg/risk"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

type fakePosition struct{}

func (fakePosition) Net() int64             { return 0 }
func (fakePosition) Total() decimal.Decimal { return decimal.Zero }

type fakeSender struct {
	news    []wire.ClientRequest
	cancels []wire.ClientRequest
}

func (f *fakeSender) SendNew(ticker types.TickerId, clientOrderId types.ClientOrderId, side types.Side, price types.Price, qty types.Qty) error {
	f.news = append(f.news, wire.ClientRequest{TickerId: ticker, ClientOrderId: clientOrderId, Side: side, Price: price, Qty: qty})
	return nil
}

func (f *fakeSender) SendCancel(ticker types.TickerId, clientOrderId types.ClientOrderId) error {
	f.cancels = append(f.cancels, wire.ClientRequest{TickerId: ticker, ClientOrderId: clientOrderId})
	return nil
}

func newTestManager() (*Manager, *fakeSender) {
	s := &fakeSender{}
	riskMgr := risk.NewManager(risk.Limits{SizeMax: 1000, PositionMax: 1000, LossMax: decimal.NewFromInt(-100000)})
	return New(s, riskMgr, log.New("test-om")), s
}

func TestManager_InvalidOrderSendsNewWhenAllowed(t *testing.T) {
	m, s := newTestManager()
	m.ManageOrder(1, fakePosition{}, 100, types.Buy, 10)

	if len(s.news) != 1 {
		t.Fatalf("expected one NEW request, got %d", len(s.news))
	}
	o := m.Order(1, types.Buy)
	if o.State != PendingNew {
		t.Fatalf("expected PENDING_NEW, got %v", o.State)
	}
}

func TestManager_PendingNewIsNoOp(t *testing.T) {
	m, s := newTestManager()
	m.ManageOrder(1, fakePosition{}, 100, types.Buy, 10)
	m.ManageOrder(1, fakePosition{}, 105, types.Buy, 10)

	if len(s.news) != 1 {
		t.Fatalf("expected still only one NEW request while PENDING_NEW, got %d", len(s.news))
	}
}

func TestManager_LiveAtDifferentPriceSendsCancel(t *testing.T) {
	m, s := newTestManager()
	m.ManageOrder(1, fakePosition{}, 100, types.Buy, 10)
	o := m.Order(1, types.Buy)
	m.OnResponse(wire.ClientResponse{Type: wire.ResponseAccepted, TickerId: 1, Side: types.Buy, ClientOrderId: o.ClientOrderId})
	if o.State != Live {
		t.Fatalf("expected LIVE after ACCEPTED, got %v", o.State)
	}

	m.ManageOrder(1, fakePosition{}, 105, types.Buy, 10)
	if len(s.cancels) != 1 {
		t.Fatalf("expected one cancel request, got %d", len(s.cancels))
	}
	if o.State != PendingCancel {
		t.Fatalf("expected PENDING_CANCEL, got %v", o.State)
	}
}

func TestManager_LiveAtSamePriceIsNoOp(t *testing.T) {
	m, s := newTestManager()
	m.ManageOrder(1, fakePosition{}, 100, types.Buy, 10)
	o := m.Order(1, types.Buy)
	m.OnResponse(wire.ClientResponse{Type: wire.ResponseAccepted, TickerId: 1, Side: types.Buy, ClientOrderId: o.ClientOrderId})

	m.ManageOrder(1, fakePosition{}, 100, types.Buy, 10)
	if len(s.cancels) != 0 {
		t.Fatalf("expected no cancel when price is unchanged, got %d", len(s.cancels))
	}
}

func TestManager_CancelledReturnsToDeadAndAllowsFreshNew(t *testing.T) {
	m, s := newTestManager()
	m.ManageOrder(1, fakePosition{}, 100, types.Buy, 10)
	o := m.Order(1, types.Buy)
	firstCoid := o.ClientOrderId
	m.OnResponse(wire.ClientResponse{Type: wire.ResponseAccepted, TickerId: 1, Side: types.Buy, ClientOrderId: firstCoid})
	m.ManageOrder(1, fakePosition{}, 105, types.Buy, 10)
	m.OnResponse(wire.ClientResponse{Type: wire.ResponseCancelled, TickerId: 1, Side: types.Buy, ClientOrderId: firstCoid})

	if o.State != Dead {
		t.Fatalf("expected DEAD after CANCELLED, got %v", o.State)
	}

	m.ManageOrder(1, fakePosition{}, 105, types.Buy, 10)
	if len(s.news) != 2 {
		t.Fatalf("expected a fresh NEW after returning to DEAD, got %d", len(s.news))
	}
}

func TestManager_FillDrainsQtyAndGoesDeadAtZero(t *testing.T) {
	m, _ := newTestManager()
	m.ManageOrder(1, fakePosition{}, 100, types.Buy, 10)
	o := m.Order(1, types.Buy)
	coid := o.ClientOrderId
	m.OnResponse(wire.ClientResponse{Type: wire.ResponseAccepted, TickerId: 1, Side: types.Buy, ClientOrderId: coid})

	m.OnResponse(wire.ClientResponse{Type: wire.ResponseFilled, TickerId: 1, Side: types.Buy, ClientOrderId: coid, QtyExec: 4, QtyRemain: 6})
	if o.State != Live || o.Qty != 6 {
		t.Fatalf("expected LIVE with qty=6 after partial fill, got state=%v qty=%d", o.State, o.Qty)
	}

	m.OnResponse(wire.ClientResponse{Type: wire.ResponseFilled, TickerId: 1, Side: types.Buy, ClientOrderId: coid, QtyExec: 6, QtyRemain: 0})
	if o.State != Dead || o.Qty != 0 {
		t.Fatalf("expected DEAD with qty=0 after full fill, got state=%v qty=%d", o.State, o.Qty)
	}
}

func TestManager_RiskRejectionPreventsSend(t *testing.T) {
	s := &fakeSender{}
	riskMgr := risk.NewManager(risk.Limits{SizeMax: 5, PositionMax: 1000, LossMax: decimal.NewFromInt(-100000)})
	m := New(s, riskMgr, log.New("test-om"))

	m.ManageOrder(1, fakePosition{}, 100, types.Buy, 10)
	if len(s.news) != 0 {
		t.Fatalf("expected no NEW request when risk rejects, got %d", len(s.news))
	}
	if m.Order(1, types.Buy).State != Invalid {
		t.Fatalf("expected order to remain INVALID after risk rejection")
	}
}
