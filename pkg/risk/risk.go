// Package risk implements a pre-trade risk check applied by the order
// manager before any NEW request is sent to the exchange.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/luxfi/xchange/pkg/types"
)

// Verdict is the outcome of Manager.Check.
type Verdict int

const (
	Allowed Verdict = iota
	SizeTooLarge
	PositionTooLarge
	LossTooLarge
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "ALLOWED"
	case SizeTooLarge:
		return "SIZE_TOO_LARGE"
	case PositionTooLarge:
		return "POSITION_TOO_LARGE"
	case LossTooLarge:
		return "LOSS_TOO_LARGE"
	default:
		return "UNKNOWN"
	}
}

// Limits is the risk configuration consulted by Check.
type Limits struct {
	SizeMax     types.Qty
	PositionMax int64
	LossMax     decimal.Decimal
}

// PositionView is the subset of position.Position that RiskManager needs
// to evaluate a prospective order, kept as an interface so pkg/risk does
// not import pkg/position.
type PositionView interface {
	Net() int64
	Total() decimal.Decimal
}

// Manager evaluates prospective orders against Limits.
type Manager struct {
	limits Limits
}

// NewManager constructs a risk Manager.
func NewManager(limits Limits) *Manager {
	return &Manager{limits: limits}
}

// Check rejects if qty exceeds size_max; else if the resulting
// |position| would exceed position_max; else if the instrument's
// running PnL is already below loss_max; else allows the order.
func (m *Manager) Check(pos PositionView, side types.Side, qty types.Qty) Verdict {
	if qty > m.limits.SizeMax {
		return SizeTooLarge
	}
	projected := pos.Net() + side.Sign()*int64(qty)
	if absInt64(projected) > m.limits.PositionMax {
		return PositionTooLarge
	}
	if pos.Total().LessThan(m.limits.LossMax) {
		return LossTooLarge
	}
	return Allowed
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
