package book

import (
	"fmt"

	"github.com/luxfi/xchange/pkg/pool"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

// replicaOrder is a client-side mirror of a single resting order, keyed
// only by the exchange-assigned order id: clients never learn the
// client_order_id for orders placed by other clients.
type replicaOrder struct {
	orderId  types.OrderId
	side     types.Side
	price    types.Price
	qty      types.Qty
	priority types.Priority

	prev  pool.Handle
	next  pool.Handle
	level pool.Handle
}

type replicaLevel struct {
	side  types.Side
	price types.Price
	head  pool.Handle
	prev  pool.Handle
	next  pool.Handle
}

// ErrUnknownOrderId indicates a MarketUpdate referenced a market_order_id
// the replica has never seen ADD for — either a lost update (handled by
// pkg/marketdata's gap-recovery state machine before it reaches here) or
// a programmer error.
var ErrUnknownOrderId = fmt.Errorf("book: unknown market_order_id in replica")

// Replica is the client-side order book: maintained purely by applying
// the incremental MarketUpdate stream (after gap recovery), with no
// client_order_id or client_id visibility into other participants'
// orders. It is rebuilt wholesale on CLEAR/SNAP_START and is otherwise
// an exact structural mirror of Book, minus the per-client dense index.
type Replica struct {
	ticker types.TickerId

	orders *pool.Pool[replicaOrder]
	levels *pool.Pool[replicaLevel]

	bestBid pool.Handle
	bestAsk pool.Handle

	priceIndex []pool.Handle
	orderIndex map[types.OrderId]pool.Handle

	maxPriceLevels uint32
}

// NewReplica constructs an empty client-side replica for ticker.
func NewReplica(ticker types.TickerId, limits types.Limits) *Replica {
	priceIdx := make([]pool.Handle, limits.MaxPriceLevels)
	for i := range priceIdx {
		priceIdx[i] = pool.InvalidHandle
	}
	return &Replica{
		ticker:         ticker,
		orders:         pool.New[replicaOrder](int(limits.MaxOrderIDs)),
		levels:         pool.New[replicaLevel](int(limits.MaxPriceLevels)),
		bestBid:        pool.InvalidHandle,
		bestAsk:        pool.InvalidHandle,
		priceIndex:     priceIdx,
		orderIndex:     make(map[types.OrderId]pool.Handle),
		maxPriceLevels: limits.MaxPriceLevels,
	}
}

func (r *Replica) priceSlot(p types.Price) int {
	m := int64(r.maxPriceLevels)
	v := int64(p) % m
	if v < 0 {
		v += m
	}
	return int(v)
}

func (r *Replica) bestHandle(side types.Side) pool.Handle {
	if side == types.Buy {
		return r.bestBid
	}
	return r.bestAsk
}

func (r *Replica) setBest(side types.Side, h pool.Handle) {
	if side == types.Buy {
		r.bestBid = h
	} else {
		r.bestAsk = h
	}
}

// BestBid returns the replica's current best bid, or types.InvalidPrice.
func (r *Replica) BestBid() types.Price {
	if r.bestBid == pool.InvalidHandle {
		return types.InvalidPrice
	}
	return r.levels.Get(r.bestBid).price
}

// BestAsk returns the replica's current best ask, or types.InvalidPrice.
func (r *Replica) BestAsk() types.Price {
	if r.bestAsk == pool.InvalidHandle {
		return types.InvalidPrice
	}
	return r.levels.Get(r.bestAsk).price
}

// Clear empties the replica — applied on an UpdateClear or at the start
// of snapshot splicing.
func (r *Replica) Clear() {
	n := r.orders.Cap()
	r.orders = pool.New[replicaOrder](n)
	r.levels = pool.New[replicaLevel](r.levels.Cap())
	r.bestBid = pool.InvalidHandle
	r.bestAsk = pool.InvalidHandle
	for i := range r.priceIndex {
		r.priceIndex[i] = pool.InvalidHandle
	}
	r.orderIndex = make(map[types.OrderId]pool.Handle)
}

func (r *Replica) findOrInsertLevel(side types.Side, price types.Price) (pool.Handle, error) {
	slot := r.priceSlot(price)
	if h := r.priceIndex[slot]; h != pool.InvalidHandle {
		lvl := r.levels.Get(h)
		if lvl.price != price || lvl.side != side {
			return pool.InvalidHandle, ErrPriceLevelCollision
		}
		return h, nil
	}

	h, err := r.levels.Allocate(func(l *replicaLevel) {
		*l = replicaLevel{side: side, price: price, head: pool.InvalidHandle}
	})
	if err != nil {
		return pool.InvalidHandle, fmt.Errorf("book: replica level pool exhausted: %w", err)
	}
	lvl := r.levels.Get(h)
	lvl.prev = h
	lvl.next = h
	r.priceIndex[slot] = h

	head := r.bestHandle(side)
	if head == pool.InvalidHandle {
		r.setBest(side, h)
		return h, nil
	}

	cur := head
	for {
		curLvl := r.levels.Get(cur)
		if moreAggressive(side, price, curLvl.price) {
			prev := curLvl.prev
			prevLvl := r.levels.Get(prev)
			lvl.prev = prev
			lvl.next = cur
			prevLvl.next = h
			curLvl.prev = h
			if cur == head {
				r.setBest(side, h)
			}
			return h, nil
		}
		next := curLvl.next
		if next == head {
			tailLvl := curLvl
			lvl.prev = cur
			lvl.next = head
			tailLvl.next = h
			headLvl := r.levels.Get(head)
			headLvl.prev = h
			return h, nil
		}
		cur = next
	}
}

func (r *Replica) removeLevel(side types.Side, h pool.Handle) {
	lvl := r.levels.Get(h)
	slot := r.priceSlot(lvl.price)
	r.priceIndex[slot] = pool.InvalidHandle

	head := r.bestHandle(side)
	if lvl.next == h {
		r.setBest(side, pool.InvalidHandle)
	} else {
		prevLvl := r.levels.Get(lvl.prev)
		nextLvl := r.levels.Get(lvl.next)
		prevLvl.next = lvl.next
		nextLvl.prev = lvl.prev
		if head == h {
			r.setBest(side, lvl.next)
		}
	}
	r.levels.Deallocate(h)
}

func (r *Replica) appendToLevel(levelH, orderH pool.Handle) {
	lvl := r.levels.Get(levelH)
	ord := r.orders.Get(orderH)
	ord.level = levelH

	if lvl.head == pool.InvalidHandle {
		ord.prev = orderH
		ord.next = orderH
		lvl.head = orderH
		return
	}
	head := lvl.head
	headOrd := r.orders.Get(head)
	tail := headOrd.prev
	tailOrd := r.orders.Get(tail)

	ord.prev = tail
	ord.next = head
	tailOrd.next = orderH
	headOrd.prev = orderH
}

func (r *Replica) unlinkFromLevel(side types.Side, orderH pool.Handle) {
	ord := r.orders.Get(orderH)
	levelH := ord.level
	lvl := r.levels.Get(levelH)

	if ord.next == orderH {
		r.removeLevel(side, levelH)
		return
	}
	prevOrd := r.orders.Get(ord.prev)
	nextOrd := r.orders.Get(ord.next)
	prevOrd.next = ord.next
	nextOrd.prev = ord.prev
	if lvl.head == orderH {
		lvl.head = ord.next
	}
}

// Apply folds one MarketUpdate into the replica. Callers must only
// present updates from a LIVE (gap-free) stream — pkg/marketdata's
// Consumer owns sequencing and recovery; Apply assumes in-order
// delivery and does no sequence checking of its own.
func (r *Replica) Apply(u wire.MarketUpdate) error {
	switch u.Type {
	case wire.UpdateClear, wire.UpdateSnapshotStart:
		r.Clear()
		return nil

	case wire.UpdateSnapshotEnd:
		return nil

	case wire.UpdateAdd:
		levelH, err := r.findOrInsertLevel(u.Side, u.Price)
		if err != nil {
			return err
		}
		orderH, err := r.orders.Allocate(func(o *replicaOrder) {
			*o = replicaOrder{orderId: u.OrderId, side: u.Side, price: u.Price, qty: u.Qty, priority: u.Priority}
		})
		if err != nil {
			return fmt.Errorf("book: replica order pool exhausted: %w", err)
		}
		r.appendToLevel(levelH, orderH)
		r.orderIndex[u.OrderId] = orderH
		return nil

	case wire.UpdateModify:
		h, ok := r.orderIndex[u.OrderId]
		if !ok {
			return ErrUnknownOrderId
		}
		ord := r.orders.Get(h)
		ord.qty = u.Qty
		ord.priority = u.Priority
		return nil

	case wire.UpdateCancel:
		h, ok := r.orderIndex[u.OrderId]
		if !ok {
			return ErrUnknownOrderId
		}
		ord := r.orders.Get(h)
		side := ord.side
		delete(r.orderIndex, u.OrderId)
		r.unlinkFromLevel(side, h)
		r.orders.Deallocate(h)
		return nil

	case wire.UpdateTrade:
		// Trades carry no order_id: they inform PnL/feature consumers
		// but never mutate book structure directly — the matching
		// Add/Modify/Cancel updates that accompany a trade on the wire
		// are what the replica structurally applies.
		return nil

	default:
		return fmt.Errorf("book: replica: unknown update type %v", u.Type)
	}
}

// Levels returns up to depth price levels on side, best first, as
// (price, aggregate qty) pairs — used by the trading engine to derive
// the BBO it feeds the feature engine.
func (r *Replica) Levels(side types.Side, depth int) []PriceLevelView {
	out := make([]PriceLevelView, 0, depth)
	h := r.bestHandle(side)
	if h == pool.InvalidHandle {
		return out
	}
	cur := h
	for len(out) < depth {
		lvl := r.levels.Get(cur)
		out = append(out, PriceLevelView{Price: lvl.price, Qty: r.levelQty(cur)})
		cur = lvl.next
		if cur == h {
			break
		}
	}
	return out
}

func (r *Replica) levelQty(levelH pool.Handle) types.Qty {
	lvl := r.levels.Get(levelH)
	if lvl.head == pool.InvalidHandle {
		return 0
	}
	var total types.Qty
	cur := lvl.head
	for {
		ord := r.orders.Get(cur)
		total += ord.qty
		cur = ord.next
		if cur == lvl.head {
			break
		}
	}
	return total
}

// PriceLevelView is a read-only snapshot of one aggregated price level.
type PriceLevelView struct {
	Price types.Price
	Qty   types.Qty
}
