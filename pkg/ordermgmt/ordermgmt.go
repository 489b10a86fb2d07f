// Package ordermgmt implements the order manager: one working order per
// (ticker, side), driven by a strategy's target price/qty and by the
// exchange's own response stream, consulting the risk manager before
// every new submission.
package ordermgmt

import (
	"github.com/luxfi/xchange/pkg/risk"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

// State is an OMOrder's lifecycle state.
type State int

const (
	Invalid State = iota
	PendingNew
	Live
	PendingCancel
	Dead
)

func (s State) String() string {
	switch s {
	case PendingNew:
		return "PENDING_NEW"
	case Live:
		return "LIVE"
	case PendingCancel:
		return "PENDING_CANCEL"
	case Dead:
		return "DEAD"
	default:
		return "INVALID"
	}
}

// OMOrder is the single working order OrderManager tracks per (ticker, side).
type OMOrder struct {
	State         State
	ClientOrderId types.ClientOrderId
	Price         types.Price
	Qty           types.Qty
	Side          types.Side
}

// Sender is the subset of gateway.Client that OrderManager drives. It is
// an interface so this package never imports pkg/gateway directly.
type Sender interface {
	SendNew(ticker types.TickerId, clientOrderId types.ClientOrderId, side types.Side, price types.Price, qty types.Qty) error
	SendCancel(ticker types.TickerId, clientOrderId types.ClientOrderId) error
}

type key struct {
	ticker types.TickerId
	side   types.Side
}

// Manager is the order manager.
type Manager struct {
	sender Sender
	risk   *risk.Manager
	logger log.Logger

	nextClientOrderId uint64
	orders            map[key]*OMOrder
}

// New constructs an OrderManager that submits through sender and
// risk-checks through riskMgr.
func New(sender Sender, riskMgr *risk.Manager, logger log.Logger) *Manager {
	return &Manager{
		sender: sender,
		risk:   riskMgr,
		logger: logger,
		orders: make(map[key]*OMOrder),
	}
}

// Order returns the tracked order for (ticker, side), creating an empty
// INVALID entry on first reference.
func (m *Manager) Order(ticker types.TickerId, side types.Side) *OMOrder {
	k := key{ticker, side}
	o, ok := m.orders[k]
	if !ok {
		o = &OMOrder{State: Invalid, Price: types.InvalidPrice}
		m.orders[k] = o
	}
	return o
}

// ManageOrder is called by a strategy with its desired quote for one
// side of one instrument; the order manager reconciles the working
// order toward it.
//
// A LIVE order quoted at a different price is cancelled outright rather
// than replaced in place — the replacement is submitted only after the
// CANCELLED response arrives and the order returns to DEAD, on the
// strategy's next call.
func (m *Manager) ManageOrder(ticker types.TickerId, pos risk.PositionView, price types.Price, side types.Side, qty types.Qty) {
	o := m.Order(ticker, side)

	switch o.State {
	case Live:
		if o.Price == price {
			return
		}
		if err := m.sender.SendCancel(ticker, o.ClientOrderId); err != nil {
			m.logger.Warn("ordermgmt: send cancel: %v", err)
			return
		}
		o.State = PendingCancel

	case Invalid, Dead:
		if price == types.InvalidPrice || qty == 0 {
			return
		}
		verdict := m.risk.Check(pos, side, qty)
		if verdict != risk.Allowed {
			m.logger.Info("ordermgmt: order rejected by risk manager: %s", verdict)
			return
		}
		coid := types.ClientOrderId(m.nextClientOrderId)
		m.nextClientOrderId++
		if err := m.sender.SendNew(ticker, coid, side, price, qty); err != nil {
			m.logger.Warn("ordermgmt: send new: %v", err)
			return
		}
		o.ClientOrderId = coid
		o.Price = price
		o.Qty = qty
		o.Side = side
		o.State = PendingNew

	case PendingNew, PendingCancel:
		// A request is already in flight for this (ticker, side); wait
		// for the response before acting again.
	}
}

// OnResponse applies the response-driven state transitions: ACCEPTED ->
// LIVE, CANCELLED -> DEAD, FILLED sets qty=qty_remain and transitions
// to DEAD once qty reaches zero.
func (m *Manager) OnResponse(resp wire.ClientResponse) {
	o := m.Order(resp.TickerId, resp.Side)
	if o.ClientOrderId != resp.ClientOrderId {
		return
	}

	switch resp.Type {
	case wire.ResponseAccepted:
		o.State = Live
	case wire.ResponseCancelled:
		o.State = Dead
	case wire.ResponseFilled:
		o.Qty = resp.QtyRemain
		if o.Qty == 0 {
			o.State = Dead
		}
	default:
		// CANCEL_REJECTED and any other response type: no-op.
	}
}
