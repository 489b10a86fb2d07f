package book

import (
	"github.com/luxfi/xchange/pkg/pool"
	"github.com/luxfi/xchange/pkg/types"
)

// order is the exchange-side resting order: arena-indexed, no raw
// back-pointers. prev/next link within a single price level's circular
// doubly linked FIFO queue; level is the owning PriceLevel's handle,
// not a pointer.
type order struct {
	ticker        types.TickerId
	clientId      types.ClientId
	clientOrderId types.ClientOrderId
	marketOrderId types.OrderId
	side          types.Side
	price         types.Price
	qty           types.Qty
	priority      types.Priority

	prev  pool.Handle
	next  pool.Handle
	level pool.Handle
}

// priceLevel is the exchange-side price level: prev/next link price
// levels in a circular doubly linked list sorted by aggressiveness —
// highest bid first, lowest ask first.
type priceLevel struct {
	side types.Side
	price types.Price
	head  pool.Handle // head order handle of the level's FIFO queue
	prev  pool.Handle
	next  pool.Handle
}
