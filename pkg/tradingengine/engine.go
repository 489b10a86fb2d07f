// Package tradingengine implements the client-side trading engine: it
// owns one replica order book per instrument, a feature engine, one
// position manager per instrument, a risk manager, an order manager,
// and drives one Strategy through its three callbacks.
package tradingengine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/xchange/pkg/book"
	"github.com/luxfi/xchange/pkg/feature"
	"github.com/luxfi/xchange/pkg/ordermgmt"
	"github.com/luxfi/xchange/pkg/position"
	"github.com/luxfi/xchange/pkg/ring"
	"github.com/luxfi/xchange/pkg/risk"
	"github.com/luxfi/xchange/pkg/strategy"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

// Engine is the client-side TradingEngine.
type Engine struct {
	replicas  map[types.TickerId]*book.Replica
	positions map[types.TickerId]*position.Position
	features  *feature.Engine
	risk      *risk.Manager
	orders    *ordermgmt.Manager
	strategy  strategy.Strategy
	logger    log.Logger

	updates   *ring.Ring[wire.MarketUpdate]
	responses *ring.Ring[wire.ClientResponse]

	idlePause time.Duration
	running   atomic.Bool
	wg        sync.WaitGroup
}

// New constructs a TradingEngine for tickers, consuming recovered
// MarketUpdates from updates and order responses from responses, and
// submitting new orders through sender (typically a gateway.Client).
// Call SetStrategy before Start.
func New(limits types.Limits, tickers []types.TickerId, updates *ring.Ring[wire.MarketUpdate], responses *ring.Ring[wire.ClientResponse], sender ordermgmt.Sender, riskLimits risk.Limits, logger log.Logger) *Engine {
	e := &Engine{
		replicas:  make(map[types.TickerId]*book.Replica, len(tickers)),
		positions: make(map[types.TickerId]*position.Position, len(tickers)),
		features:  feature.New(),
		risk:      risk.NewManager(riskLimits),
		updates:   updates,
		responses: responses,
		logger:    logger,
		idlePause: time.Millisecond,
	}
	for _, t := range tickers {
		e.replicas[t] = book.NewReplica(t, limits)
		e.positions[t] = position.New()
	}
	e.orders = ordermgmt.New(sender, e.risk, logger)
	return e
}

// SetStrategy installs the strategy the engine drives. Must be called
// before Start.
func (e *Engine) SetStrategy(s strategy.Strategy) { e.strategy = s }

// Orders exposes the OrderManager so a strategy can be constructed with
// a reference to it before being installed with SetStrategy.
func (e *Engine) Orders() *ordermgmt.Manager { return e.orders }

// Features exposes the FeatureEngine for strategy construction.
func (e *Engine) Features() *feature.Engine { return e.features }

// Position implements strategy.PositionProvider.
func (e *Engine) Position(ticker types.TickerId) risk.PositionView {
	return e.positions[ticker]
}

// Replica returns the replica book for ticker, or nil if untracked.
func (e *Engine) Replica(ticker types.TickerId) *book.Replica {
	return e.replicas[ticker]
}

// Start spins the engine's single worker goroutine.
func (e *Engine) Start() {
	e.running.Store(true)
	e.wg.Add(1)
	go e.run()
}

// Stop signals the worker goroutine and waits for it to exit.
func (e *Engine) Stop() {
	e.running.Store(false)
	e.wg.Wait()
}

func (e *Engine) run() {
	defer e.wg.Done()
	for e.running.Load() {
		drained := false
		for e.updates.Size() > 0 {
			u := *e.updates.NextRead()
			e.updates.CommitRead()
			e.onMarketUpdate(u)
			drained = true
		}
		for e.responses.Size() > 0 {
			r := *e.responses.NextRead()
			e.responses.CommitRead()
			e.onOrderResponse(r)
			drained = true
		}
		if !drained {
			time.Sleep(e.idlePause)
		}
	}
}

// onMarketUpdate folds one market update into the replica book, then
// recomputes the BBO and dispatches to the strategy's callbacks.
func (e *Engine) onMarketUpdate(u wire.MarketUpdate) {
	replica := e.replicas[u.TickerId]
	if replica == nil {
		e.logger.Warn("tradingengine: update for untracked ticker %d", u.TickerId)
		return
	}

	if u.Type == wire.UpdateTrade {
		e.strategy.OnTradeUpdate(u.TickerId, u, replica)
		return
	}

	if err := replica.Apply(u); err != nil {
		e.logger.Error("tradingengine: replica apply: %v", err)
		return
	}
	if u.Type == wire.UpdateSnapshotStart || u.Type == wire.UpdateSnapshotEnd {
		return
	}

	bbo := e.bboOf(replica)
	e.features.OnBookUpdate(u.TickerId, bbo)
	e.positions[u.TickerId].OnBBOUpdate(position.BBO{Bid: bbo.BidPrice, Ask: bbo.AskPrice})

	price := bbo.BidPrice
	if u.Side == types.Sell {
		price = bbo.AskPrice
	}
	e.strategy.OnOrderBookUpdate(u.TickerId, price, u.Side, replica)
}

func (e *Engine) bboOf(replica *book.Replica) feature.BBO {
	bbo := feature.BBO{BidPrice: types.InvalidPrice, AskPrice: types.InvalidPrice}
	if levels := replica.Levels(types.Buy, 1); len(levels) > 0 {
		bbo.BidPrice = levels[0].Price
		bbo.BidQty = levels[0].Qty
	}
	if levels := replica.Levels(types.Sell, 1); len(levels) > 0 {
		bbo.AskPrice = levels[0].Price
		bbo.AskQty = levels[0].Qty
	}
	return bbo
}

// onOrderResponse routes a FILLED response to the position manager's
// fill accounting before the order manager's state transition and the
// strategy callback run.
func (e *Engine) onOrderResponse(resp wire.ClientResponse) {
	if pos, ok := e.positions[resp.TickerId]; ok && resp.Type == wire.ResponseFilled {
		pos.AddFill(resp)
	}
	e.orders.OnResponse(resp)
	e.strategy.OnOrderResponse(resp.TickerId, resp)
}
