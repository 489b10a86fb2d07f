// Package feature implements the feature engine owned by the trading
// engine: a thin collaborator that turns replica-book and trade events
// into the handful of numeric signals the example strategies consult.
// It carries no state of its own beyond the instrument's current BBO.
package feature

import "github.com/luxfi/xchange/pkg/types"

// BBO mirrors the replica book's current best bid/offer for one
// instrument, as fed in by TradingEngine's on_order_book_update callback.
type BBO struct {
	BidPrice types.Price
	BidQty   types.Qty
	AskPrice types.Price
	AskQty   types.Qty
}

// Valid reports whether both sides are present.
func (b BBO) Valid() bool {
	return b.BidPrice != types.InvalidPrice && b.AskPrice != types.InvalidPrice
}

// Spread returns AskPrice - BidPrice, or InvalidPrice if either side is missing.
func (b BBO) Spread() types.Price {
	if !b.Valid() {
		return types.InvalidPrice
	}
	return b.AskPrice - b.BidPrice
}

// Mid returns the arithmetic midpoint of the BBO, truncated to an integer
// Price, or InvalidPrice if either side is missing.
func (b BBO) Mid() types.Price {
	if !b.Valid() {
		return types.InvalidPrice
	}
	return (b.BidPrice + b.AskPrice) / 2
}

// Imbalance returns (bid_qty - ask_qty) / (bid_qty + ask_qty) in
// [-1, +1]; 0 when both sides are empty. Positive values indicate more
// resting size on the bid than the ask.
func (b BBO) Imbalance() float64 {
	total := float64(b.BidQty) + float64(b.AskQty)
	if total == 0 {
		return 0
	}
	return (float64(b.BidQty) - float64(b.AskQty)) / total
}

// Engine tracks the latest BBO per instrument and derives signals from
// it on demand; it holds no history and does no book bookkeeping of its
// own, deferring that to the replica book it mirrors.
type Engine struct {
	bbos map[types.TickerId]BBO
}

// New constructs an empty FeatureEngine.
func New() *Engine {
	return &Engine{bbos: make(map[types.TickerId]BBO)}
}

// OnBookUpdate records the latest BBO for ticker, as observed by the
// replica book after an ADD/MODIFY/CANCEL.
func (e *Engine) OnBookUpdate(ticker types.TickerId, bbo BBO) {
	e.bbos[ticker] = bbo
}

// BBO returns the latest recorded BBO for ticker.
func (e *Engine) BBO(ticker types.TickerId) BBO {
	return e.bbos[ticker]
}

// FairValue returns the instrument's current mid price, the simplest
// fair-value estimate a strategy can quote around, or InvalidPrice if no
// BBO has been recorded for ticker yet or either side is missing.
func (e *Engine) FairValue(ticker types.TickerId) types.Price {
	bbo, ok := e.bbos[ticker]
	if !ok {
		return types.InvalidPrice
	}
	return bbo.Mid()
}
