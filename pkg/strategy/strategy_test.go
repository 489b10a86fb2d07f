package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/xchange/pkg/feature"
	"github.com/luxfi/xchange/pkg/ordermgmt"
	"github.com/luxfi/xchange/pkg/risk"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

type fakePosition struct{}

func (fakePosition) Net() int64             { return 0 }
func (fakePosition) Total() decimal.Decimal { return decimal.Zero }

type fakePositions struct{}

func (fakePositions) Position(types.TickerId) risk.PositionView { return fakePosition{} }

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

func newHarness() (*ordermgmt.Manager, *feature.Engine, *fakeSender) {
	s := &fakeSender{}
	riskMgr := risk.NewManager(risk.Limits{SizeMax: 1000, PositionMax: 1000, LossMax: decimal.NewFromInt(-1_000_000)})
	om := ordermgmt.New(s, riskMgr, log.New("test-strategy"))
	return om, feature.New(), s
}

func TestMarketMaker_QuotesBothSidesAroundFairValue(t *testing.T) {
	om, features, sender := newHarness()
	features.OnBookUpdate(1, feature.BBO{BidPrice: 98, BidQty: 10, AskPrice: 102, AskQty: 10})

	mm := NewMarketMaker(om, features, fakePositions{}, 1, 5, log.New("test-mm"))
	mm.OnOrderBookUpdate(1, 98, types.Buy, nil)

	require.Len(t, sender.news, 2)
	var buys, sells int
	for _, r := range sender.news {
		if r.Side == types.Buy {
			buys++
			require.Equal(t, types.Price(99), r.Price)
		} else {
			sells++
			require.Equal(t, types.Price(101), r.Price)
		}
	}
	require.Equal(t, 1, buys)
	require.Equal(t, 1, sells)
}

func TestMarketMaker_NoQuoteWithoutFairValue(t *testing.T) {
	om, features, sender := newHarness()
	mm := NewMarketMaker(om, features, fakePositions{}, 1, 5, log.New("test-mm"))
	mm.OnOrderBookUpdate(1, types.InvalidPrice, types.Buy, nil)
	require.Empty(t, sender.news)
}

func TestLiquidityTaker_CrossesOnBidHeavyImbalance(t *testing.T) {
	om, features, sender := newHarness()
	features.OnBookUpdate(1, feature.BBO{BidPrice: 100, BidQty: 90, AskPrice: 101, AskQty: 10})

	lt := NewLiquidityTaker(om, features, fakePositions{}, 0.5, 5, log.New("test-lt"))
	lt.OnOrderBookUpdate(1, 0, types.Buy, nil)

	require.Len(t, sender.news, 1)
	require.Equal(t, types.Buy, sender.news[0].Side)
	require.Equal(t, types.Price(101), sender.news[0].Price)
}

func TestLiquidityTaker_StaysFlatBelowThreshold(t *testing.T) {
	om, features, sender := newHarness()
	features.OnBookUpdate(1, feature.BBO{BidPrice: 100, BidQty: 55, AskPrice: 101, AskQty: 45})

	lt := NewLiquidityTaker(om, features, fakePositions{}, 0.5, 5, log.New("test-lt"))
	lt.OnOrderBookUpdate(1, 0, types.Buy, nil)

	require.Empty(t, sender.news)
}
