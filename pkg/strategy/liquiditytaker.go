package strategy

import (
	"github.com/luxfi/xchange/pkg/book"
	"github.com/luxfi/xchange/pkg/feature"
	"github.com/luxfi/xchange/pkg/ordermgmt"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

// LiquidityTaker is the second example strategy: it crosses the spread
// on whichever side the book's top-of-book imbalance favors, and
// otherwise stays flat.
type LiquidityTaker struct {
	orders    *ordermgmt.Manager
	features  *feature.Engine
	positions PositionProvider
	threshold float64
	takeQty   types.Qty
	logger    log.Logger
}

// NewLiquidityTaker constructs a LiquidityTaker that crosses with takeQty
// once the BBO qty imbalance exceeds threshold in magnitude.
func NewLiquidityTaker(orders *ordermgmt.Manager, features *feature.Engine, positions PositionProvider, threshold float64, takeQty types.Qty, logger log.Logger) *LiquidityTaker {
	return &LiquidityTaker{
		orders:    orders,
		features:  features,
		positions: positions,
		threshold: threshold,
		takeQty:   takeQty,
		logger:    logger,
	}
}

// OnOrderBookUpdate crosses the spread on the favored side when the
// imbalance breaches threshold, and pulls any standing quote on the
// other side.
func (lt *LiquidityTaker) OnOrderBookUpdate(ticker types.TickerId, _ types.Price, _ types.Side, _ *book.Replica) {
	bbo := lt.features.BBO(ticker)
	if !bbo.Valid() {
		return
	}
	pos := lt.positions.Position(ticker)
	imb := bbo.Imbalance()

	switch {
	case imb >= lt.threshold:
		lt.orders.ManageOrder(ticker, pos, bbo.AskPrice, types.Buy, lt.takeQty)
		lt.orders.ManageOrder(ticker, pos, types.InvalidPrice, types.Sell, lt.takeQty)
	case imb <= -lt.threshold:
		lt.orders.ManageOrder(ticker, pos, bbo.BidPrice, types.Sell, lt.takeQty)
		lt.orders.ManageOrder(ticker, pos, types.InvalidPrice, types.Buy, lt.takeQty)
	default:
		lt.orders.ManageOrder(ticker, pos, types.InvalidPrice, types.Buy, lt.takeQty)
		lt.orders.ManageOrder(ticker, pos, types.InvalidPrice, types.Sell, lt.takeQty)
	}
}

// OnTradeUpdate is a no-op: the taker reacts to standing imbalance, not
// to individual prints.
func (lt *LiquidityTaker) OnTradeUpdate(types.TickerId, wire.MarketUpdate, *book.Replica) {}

// OnOrderResponse is a no-op, for the same reason as MarketMaker's.
func (lt *LiquidityTaker) OnOrderResponse(types.TickerId, wire.ClientResponse) {}
