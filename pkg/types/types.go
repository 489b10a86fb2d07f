// Package types defines the fixed-width semantic types shared by every
// component of the exchange and client processes. These types cross every
// inter-thread ring and every wire boundary, so their widths are load
// bearing: both sides of the wire must agree on them bit for bit.
package types

import "math"

// OrderId uniquely identifies an order within a book (market-assigned).
type OrderId uint64

// InvalidOrderId is the sentinel for "no order".
const InvalidOrderId OrderId = math.MaxUint64

// TickerId densely identifies an instrument in [0, MAX_TICKERS).
type TickerId uint32

// InvalidTickerId is the sentinel for "no ticker".
const InvalidTickerId TickerId = math.MaxUint32

// ClientId densely identifies a participant in [0, MAX_CLIENTS).
type ClientId uint32

// InvalidClientId is the sentinel for "no client".
const InvalidClientId ClientId = math.MaxUint32

// ClientOrderId is the order id a client assigned before the exchange
// replaced it with a market-wide OrderId.
type ClientOrderId uint64

// InvalidClientOrderId is the sentinel for "no client order id".
const InvalidClientOrderId ClientOrderId = math.MaxUint64

// Price is an integer price level. The system does no tick-size logic;
// callers choose units (e.g. hundredths of a cent) and stay consistent.
type Price int64

// InvalidPrice is the sentinel for "no price".
const InvalidPrice Price = math.MaxInt64

// Qty is an integer quantity.
type Qty uint32

// InvalidQty is the sentinel for "no quantity".
const InvalidQty Qty = math.MaxUint32

// Priority is an order's position inside a price level's FIFO queue. Lower
// values are served first.
type Priority uint64

// InvalidPriority is the sentinel for "no priority".
const InvalidPriority Priority = math.MaxUint64

// Nanos is a monotonic or wall-clock nanosecond timestamp.
type Nanos int64

// Side is the side of an order or update: Buy or Sell.
type Side int8

const (
	// Buy is the bid side.
	Buy Side = 1
	// Sell is the ask side.
	Sell Side = -1
)

// Sign returns +1 for Buy and -1 for Sell.
func (s Side) Sign() int64 {
	return int64(s)
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Limits holds the compile-time-style sizing constants that must be
// identical on both sides of the wire. It is an explicit configuration
// value, constructed once at process start and threaded through every
// component — never a build tag or package-level global, so tests can
// run at a smaller scale than production without a separate build.
type Limits struct {
	MaxTickers              TickerId
	MaxClients              ClientId
	MaxOrderIDs             uint32
	MaxPriceLevels          uint32
	MaxClientUpdates        uint32
	MaxMarketUpdates        uint32
	MaxPendingOrderRequests uint32
}

// DefaultLimits returns the production-sized limits.
func DefaultLimits() Limits {
	return Limits{
		MaxTickers:              8,
		MaxClients:              256,
		MaxOrderIDs:             1 << 16,
		MaxPriceLevels:          1 << 14,
		MaxClientUpdates:        1 << 16,
		MaxMarketUpdates:        1 << 16,
		MaxPendingOrderRequests: 1 << 14,
	}
}

// TestLimits returns a small set of limits sized for fast unit tests —
// an explicit alternative value, not a compile-time switch.
func TestLimits() Limits {
	return Limits{
		MaxTickers:              4,
		MaxClients:              8,
		MaxOrderIDs:             1024,
		MaxPriceLevels:          256,
		MaxClientUpdates:        1024,
		MaxMarketUpdates:        1024,
		MaxPendingOrderRequests: 256,
	}
}
