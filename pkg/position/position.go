// Package position implements per-instrument VWAP and
// realized/unrealized PnL accounting. Monetary accumulation uses
// shopspring/decimal rather than floating point, since repeated partial
// fills would otherwise accumulate rounding error across a session.
package position

import (
	"github.com/shopspring/decimal"

	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

func sideIndex(s types.Side) int {
	if s == types.Buy {
		return 0
	}
	return 1
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// BBO is a best-bid/best-offer snapshot for one instrument, as fed to
// Position.OnBBOUpdate.
type BBO struct {
	Bid types.Price
	Ask types.Price
}

// Valid reports whether both sides are present.
func (b BBO) Valid() bool {
	return b.Bid != types.InvalidPrice && b.Ask != types.InvalidPrice
}

// Position tracks one instrument's net position, VWAP-open sums per
// side, and realized/unrealized PnL.
type Position struct {
	position int64
	volume   uint64

	vwapOpen [2]decimal.Decimal // indexed by sideIndex(side): open PxQ sum

	realized   decimal.Decimal
	unrealized decimal.Decimal
}

// New constructs a flat Position.
func New() *Position {
	return &Position{
		vwapOpen: [2]decimal.Decimal{decimal.Zero, decimal.Zero},
	}
}

// Net returns the signed net position (positive is long).
func (p *Position) Net() int64 { return p.position }

// Volume returns the cumulative executed quantity across all fills.
func (p *Position) Volume() uint64 { return p.volume }

// Realized returns realized PnL accumulated so far.
func (p *Position) Realized() decimal.Decimal { return p.realized }

// Unrealized returns the most recently computed unrealized PnL.
func (p *Position) Unrealized() decimal.Decimal { return p.unrealized }

// Total returns realized + unrealized PnL.
func (p *Position) Total() decimal.Decimal {
	return p.realized.Add(p.unrealized)
}

// AddFill folds one FILLED response into the position's VWAP and
// realized-PnL accounting.
func (p *Position) AddFill(resp wire.ClientResponse) {
	p.addFill(resp.Side, resp.Price, resp.QtyExec)
}

func (p *Position) addFill(side types.Side, price types.Price, qty types.Qty) {
	pr := decimal.NewFromInt(int64(price))
	q := decimal.NewFromInt(int64(qty))
	sign := side.Sign()

	old := p.position
	p.position += sign * int64(qty)
	p.volume += uint64(qty)

	si := sideIndex(side)
	oi := sideIndex(side.Opposite())

	// Step 2.
	openedOrIncreased := old*sign >= 0

	if openedOrIncreased {
		// Step 3.
		p.vwapOpen[si] = p.vwapOpen[si].Add(pr.Mul(q))
	} else {
		// Step 4: closing or flipping.
		absOld := decimal.NewFromInt(absInt64(old))
		vwapOpp := p.vwapOpen[oi].Div(absOld)
		absPos := decimal.NewFromInt(absInt64(p.position))
		p.vwapOpen[oi] = vwapOpp.Mul(absPos)

		fillQty := decimal.NewFromInt(minInt64(int64(qty), absInt64(old)))
		p.realized = p.realized.Add(fillQty.Mul(decimal.NewFromInt(sign)).Mul(vwapOpp.Sub(pr)))

		if p.position*old < 0 {
			// Sign flipped: the excess beyond closing `old` opens a fresh
			// position on the fill's own side at the fill price.
			p.vwapOpen[si] = pr.Mul(absPos)
			p.vwapOpen[oi] = decimal.Zero
		}
	}

	p.recomputeUnrealized(pr)
}

// OnBBOUpdate recomputes unrealized PnL marked at the BBO midpoint
// whenever both sides are valid and the position is non-flat.
func (p *Position) OnBBOUpdate(bbo BBO) {
	if p.position == 0 || !bbo.Valid() {
		return
	}
	mid := decimal.NewFromInt(int64(bbo.Bid)).Add(decimal.NewFromInt(int64(bbo.Ask))).Div(decimal.NewFromInt(2))
	p.recomputeUnrealized(mid)
}

// recomputeUnrealized marks the open VWAP to mark and updates unrealized PnL.
func (p *Position) recomputeUnrealized(mark decimal.Decimal) {
	if p.position == 0 {
		p.vwapOpen[0] = decimal.Zero
		p.vwapOpen[1] = decimal.Zero
		p.unrealized = decimal.Zero
		return
	}
	absPos := decimal.NewFromInt(absInt64(p.position))
	if p.position > 0 {
		vwapBuy := p.vwapOpen[sideIndex(types.Buy)].Div(absPos)
		p.unrealized = mark.Sub(vwapBuy).Mul(absPos)
	} else {
		vwapSell := p.vwapOpen[sideIndex(types.Sell)].Div(absPos)
		p.unrealized = vwapSell.Sub(mark).Mul(absPos)
	}
}
