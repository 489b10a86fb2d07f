// Package strategy defines the Strategy interface the trading engine
// drives, and two example strategies (market-maker, liquidity-taker).
// These are thin external collaborators, not part of the system's hard
// core.
package strategy

import (
	"github.com/luxfi/xchange/pkg/book"
	"github.com/luxfi/xchange/pkg/risk"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

// Strategy is the set of callbacks the trading engine invokes: book
// updates, trade prints, and order responses, each scoped to one
// instrument's replica book.
type Strategy interface {
	// OnOrderBookUpdate fires after a book-mutating update whose side's
	// BBO may have changed; price is the new best price on that side, or
	// types.InvalidPrice if that side emptied out.
	OnOrderBookUpdate(ticker types.TickerId, price types.Price, side types.Side, replica *book.Replica)

	// OnTradeUpdate fires on a TRADE update, which never itself mutates
	// the book.
	OnTradeUpdate(ticker types.TickerId, update wire.MarketUpdate, replica *book.Replica)

	// OnOrderResponse fires for every response on the client's own
	// orders, after PositionManager has already applied any FILLED fill.
	OnOrderResponse(ticker types.TickerId, resp wire.ClientResponse)
}

// PositionProvider gives a strategy read access to the current position
// for an instrument, so it can pass it through to RiskManager.check via
// OrderManager.ManageOrder without owning PositionManager itself.
// tradingengine.Engine implements this directly.
type PositionProvider interface {
	Position(ticker types.TickerId) risk.PositionView
}
