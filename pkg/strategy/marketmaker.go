package strategy

import (
	"github.com/luxfi/xchange/pkg/book"
	"github.com/luxfi/xchange/pkg/feature"
	"github.com/luxfi/xchange/pkg/ordermgmt"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

// MarketMaker is an example strategy: it quotes both sides of every
// tracked instrument symmetrically around the current fair value,
// re-quoting whenever the BBO moves.
type MarketMaker struct {
	orders     *ordermgmt.Manager
	features   *feature.Engine
	positions  PositionProvider
	halfSpread types.Price
	quoteQty   types.Qty
	logger     log.Logger
}

// NewMarketMaker constructs a MarketMaker quoting quoteQty on each side
// at halfSpread away from fair value.
func NewMarketMaker(orders *ordermgmt.Manager, features *feature.Engine, positions PositionProvider, halfSpread types.Price, quoteQty types.Qty, logger log.Logger) *MarketMaker {
	return &MarketMaker{
		orders:     orders,
		features:   features,
		positions:  positions,
		halfSpread: halfSpread,
		quoteQty:   quoteQty,
		logger:     logger,
	}
}

// OnOrderBookUpdate re-quotes both sides around the instrument's current
// mid price.
func (mm *MarketMaker) OnOrderBookUpdate(ticker types.TickerId, _ types.Price, _ types.Side, _ *book.Replica) {
	fv := mm.features.FairValue(ticker)
	if fv == types.InvalidPrice {
		return
	}
	pos := mm.positions.Position(ticker)
	mm.orders.ManageOrder(ticker, pos, fv-mm.halfSpread, types.Buy, mm.quoteQty)
	mm.orders.ManageOrder(ticker, pos, fv+mm.halfSpread, types.Sell, mm.quoteQty)
}

// OnTradeUpdate is a no-op: the market maker re-quotes purely off BBO
// moves, which a trade that consumes the touch will itself produce.
func (mm *MarketMaker) OnTradeUpdate(types.TickerId, wire.MarketUpdate, *book.Replica) {}

// OnOrderResponse is a no-op: OrderManager's own state machine already
// tracks fill/cancel progress; the market maker re-derives its quotes
// from the next book update rather than reacting to responses directly.
func (mm *MarketMaker) OnOrderResponse(types.TickerId, wire.ClientResponse) {}
