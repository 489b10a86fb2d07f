// Package book implements the exchange-side price-time-priority limit
// order book and matching algorithm, plus the client-side replica in
// replica.go. Exactly one Book exists per instrument, owned exclusively
// by the matching engine's goroutine — nothing here is safe for
// concurrent use from more than one goroutine.
//
// Orders and price levels live in fixed pool.Pool arenas and are linked
// by pool.Handle, not language pointers. Price levels are addressed by
// price mod MaxPriceLevels; Book.Add returns a fatal error if two
// simultaneously live prices would collide in that slot, rather than
// silently corrupting the book — failing loud and deferring the choice
// of a collision-free MaxPriceLevels (or a real hash map) to the
// operator sizing Limits.
package book

import (
	"fmt"

	"github.com/luxfi/xchange/pkg/pool"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

// ErrPriceLevelCollision indicates two distinct live prices hashed to the
// same direct-address slot.
var ErrPriceLevelCollision = fmt.Errorf("book: price level collision")

// ErrOrderIdOutOfRange indicates a client_order_id outside the dense
// per-client table bound — treated as a protocol error, not fatal.
var ErrOrderIdOutOfRange = fmt.Errorf("book: client_order_id out of range")

// ErrDuplicateOrderId indicates a NEW request reused a still-live
// client_order_id — a programmer/integration error.
var ErrDuplicateOrderId = fmt.Errorf("book: duplicate client_order_id")

// Book is the exchange-side order book for one instrument.
type Book struct {
	ticker types.TickerId
	limits types.Limits

	orders *pool.Pool[order]
	levels *pool.Pool[priceLevel]

	bestBid pool.Handle
	bestAsk pool.Handle

	priceIndex       []pool.Handle // slot = price mod MaxPriceLevels
	clientOrderIndex [][]pool.Handle // [client][client_order_id] -> order handle

	nextMarketOrderId uint64
}

// NewBook constructs an empty book for ticker, sized from limits.
func NewBook(ticker types.TickerId, limits types.Limits) *Book {
	clientIdx := make([][]pool.Handle, limits.MaxClients)
	for i := range clientIdx {
		row := make([]pool.Handle, limits.MaxOrderIDs)
		for j := range row {
			row[j] = pool.InvalidHandle
		}
		clientIdx[i] = row
	}
	priceIdx := make([]pool.Handle, limits.MaxPriceLevels)
	for i := range priceIdx {
		priceIdx[i] = pool.InvalidHandle
	}

	return &Book{
		ticker:           ticker,
		limits:           limits,
		orders:           pool.New[order](int(limits.MaxOrderIDs)),
		levels:           pool.New[priceLevel](int(limits.MaxPriceLevels)),
		bestBid:          pool.InvalidHandle,
		bestAsk:          pool.InvalidHandle,
		priceIndex:       priceIdx,
		clientOrderIndex: clientIdx,
	}
}

func (b *Book) priceSlot(p types.Price) int {
	m := int64(b.limits.MaxPriceLevels)
	v := int64(p) % m
	if v < 0 {
		v += m
	}
	return int(v)
}

func (b *Book) bestHandle(side types.Side) pool.Handle {
	if side == types.Buy {
		return b.bestBid
	}
	return b.bestAsk
}

func (b *Book) setBest(side types.Side, h pool.Handle) {
	if side == types.Buy {
		b.bestBid = h
	} else {
		b.bestAsk = h
	}
}

// BestBid returns the current best bid price, or types.InvalidPrice if
// the bid side is empty.
func (b *Book) BestBid() types.Price {
	if b.bestBid == pool.InvalidHandle {
		return types.InvalidPrice
	}
	return b.levels.Get(b.bestBid).price
}

// BestAsk returns the current best ask price, or types.InvalidPrice if
// the ask side is empty.
func (b *Book) BestAsk() types.Price {
	if b.bestAsk == pool.InvalidHandle {
		return types.InvalidPrice
	}
	return b.levels.Get(b.bestAsk).price
}

// moreAggressive reports whether price a is strictly more aggressive than
// price b for side: higher for Buy, lower for Sell.
func moreAggressive(side types.Side, a, b types.Price) bool {
	if side == types.Buy {
		return a > b
	}
	return a < b
}

// findLevel returns the handle of the live level at price, or
// pool.InvalidHandle if none, detecting a direct-address collision.
func (b *Book) findLevel(side types.Side, price types.Price) (pool.Handle, error) {
	slot := b.priceSlot(price)
	h := b.priceIndex[slot]
	if h == pool.InvalidHandle {
		return pool.InvalidHandle, nil
	}
	lvl := b.levels.Get(h)
	if lvl.price != price || lvl.side != side {
		return pool.InvalidHandle, ErrPriceLevelCollision
	}
	return h, nil
}

// insertLevel creates and links a new price level at price on side,
// walking the sorted DLL from the current head to find the insertion
// point.
func (b *Book) insertLevel(side types.Side, price types.Price) (pool.Handle, error) {
	slot := b.priceSlot(price)
	if b.priceIndex[slot] != pool.InvalidHandle {
		return pool.InvalidHandle, ErrPriceLevelCollision
	}

	h, err := b.levels.Allocate(func(l *priceLevel) {
		*l = priceLevel{side: side, price: price, head: pool.InvalidHandle}
	})
	if err != nil {
		return pool.InvalidHandle, fmt.Errorf("book: level pool exhausted: %w", err)
	}
	lvl := b.levels.Get(h)
	lvl.prev = h
	lvl.next = h
	b.priceIndex[slot] = h

	head := b.bestHandle(side)
	if head == pool.InvalidHandle {
		b.setBest(side, h)
		return h, nil
	}

	cur := head
	for {
		curLvl := b.levels.Get(cur)
		if moreAggressive(side, price, curLvl.price) {
			// insert before cur
			prev := curLvl.prev
			prevLvl := b.levels.Get(prev)
			lvl.prev = prev
			lvl.next = cur
			prevLvl.next = h
			curLvl.prev = h
			if cur == head {
				b.setBest(side, h)
			}
			return h, nil
		}
		next := curLvl.next
		if next == head {
			// insert at tail
			tailLvl := curLvl
			lvl.prev = cur
			lvl.next = head
			tailLvl.next = h
			headLvl := b.levels.Get(head)
			headLvl.prev = h
			return h, nil
		}
		cur = next
	}
}

// removeLevel unlinks and frees an empty level.
func (b *Book) removeLevel(side types.Side, h pool.Handle) {
	lvl := b.levels.Get(h)
	slot := b.priceSlot(lvl.price)
	b.priceIndex[slot] = pool.InvalidHandle

	head := b.bestHandle(side)
	if lvl.next == h {
		// sole level on this side
		b.setBest(side, pool.InvalidHandle)
	} else {
		prevLvl := b.levels.Get(lvl.prev)
		nextLvl := b.levels.Get(lvl.next)
		prevLvl.next = lvl.next
		nextLvl.prev = lvl.prev
		if head == h {
			b.setBest(side, lvl.next)
		}
	}
	b.levels.Deallocate(h)
}

// appendOrderToLevel inserts ord at the tail of lvl's FIFO queue, giving
// it priority = tail.priority + 1, or 1 if the level was empty.
func (b *Book) appendOrderToLevel(levelH pool.Handle, orderH pool.Handle) {
	lvl := b.levels.Get(levelH)
	ord := b.orders.Get(orderH)
	ord.level = levelH

	if lvl.head == pool.InvalidHandle {
		ord.priority = 1
		ord.prev = orderH
		ord.next = orderH
		lvl.head = orderH
		return
	}

	head := lvl.head
	headOrd := b.orders.Get(head)
	tail := headOrd.prev
	tailOrd := b.orders.Get(tail)

	ord.priority = tailOrd.priority + 1
	ord.prev = tail
	ord.next = head
	tailOrd.next = orderH
	headOrd.prev = orderH
}

// unlinkOrderFromLevel removes ord from its level's FIFO queue, removing
// the level itself if it was the last order.
func (b *Book) unlinkOrderFromLevel(side types.Side, orderH pool.Handle) {
	ord := b.orders.Get(orderH)
	levelH := ord.level
	lvl := b.levels.Get(levelH)

	if ord.next == orderH {
		// sole order in the level
		b.removeLevel(side, levelH)
		return
	}

	prevOrd := b.orders.Get(ord.prev)
	nextOrd := b.orders.Get(ord.next)
	prevOrd.next = ord.next
	nextOrd.prev = ord.prev
	if lvl.head == orderH {
		lvl.head = ord.next
	}
}

func (b *Book) clientIndexSlot(clientId types.ClientId, oid types.ClientOrderId) (int, int, error) {
	ci := int(clientId)
	if ci < 0 || ci >= len(b.clientOrderIndex) {
		return 0, 0, ErrOrderIdOutOfRange
	}
	oi := int(oid)
	if oi < 0 || oi >= len(b.clientOrderIndex[ci]) {
		return 0, 0, ErrOrderIdOutOfRange
	}
	return ci, oi, nil
}

// AddResult is the outcome of Book.Add: the responses to send back to
// the originating and any counterparty clients, plus the market updates
// to disseminate, in the order they were generated.
type AddResult struct {
	Responses     []wire.ClientResponse
	MarketUpdates []wire.MarketUpdate
}

// Add accepts a new order, matches it against the opposite side in
// price-then-priority order, and rests any remainder.
func (b *Book) Add(clientId types.ClientId, clientOrderId types.ClientOrderId, side types.Side, price types.Price, qty types.Qty) (AddResult, error) {
	ci, oi, err := b.clientIndexSlot(clientId, clientOrderId)
	if err != nil {
		return AddResult{}, err
	}
	if b.clientOrderIndex[ci][oi] != pool.InvalidHandle {
		return AddResult{}, ErrDuplicateOrderId
	}

	var res AddResult

	marketOrderId := types.OrderId(b.nextMarketOrderId)
	b.nextMarketOrderId++

	res.Responses = append(res.Responses, wire.ClientResponse{
		Type:          wire.ResponseAccepted,
		ClientId:      clientId,
		TickerId:      b.ticker,
		ClientOrderId: clientOrderId,
		MarketOrderId: marketOrderId,
		Side:          side,
		Price:         price,
		QtyExec:       0,
		QtyRemain:     qty,
	})

	remaining := qty
	oppSide := side.Opposite()

	for remaining > 0 {
		bestH := b.bestHandle(oppSide)
		if bestH == pool.InvalidHandle {
			break
		}
		lvl := b.levels.Get(bestH)
		if side == types.Buy && lvl.price > price {
			break
		}
		if side == types.Sell && lvl.price < price {
			break
		}

		restingH := lvl.head
		resting := b.orders.Get(restingH)

		fill := remaining
		if resting.qty < fill {
			fill = resting.qty
		}

		remaining -= fill
		resting.qty -= fill

		res.Responses = append(res.Responses,
			wire.ClientResponse{
				Type:          wire.ResponseFilled,
				ClientId:      clientId,
				TickerId:      b.ticker,
				ClientOrderId: clientOrderId,
				MarketOrderId: marketOrderId,
				Side:          side,
				Price:         lvl.price,
				QtyExec:       fill,
				QtyRemain:     remaining,
			},
			wire.ClientResponse{
				Type:          wire.ResponseFilled,
				ClientId:      resting.clientId,
				TickerId:      b.ticker,
				ClientOrderId: resting.clientOrderId,
				MarketOrderId: resting.marketOrderId,
				Side:          oppSide,
				Price:         lvl.price,
				QtyExec:       fill,
				QtyRemain:     resting.qty,
			},
		)

		res.MarketUpdates = append(res.MarketUpdates, wire.MarketUpdate{
			Type:     wire.UpdateTrade,
			OrderId:  types.InvalidOrderId,
			TickerId: b.ticker,
			Side:     oppSide,
			Price:    lvl.price,
			Qty:      fill,
			Priority: types.InvalidPriority,
		})

		if resting.qty == 0 {
			res.MarketUpdates = append(res.MarketUpdates, wire.MarketUpdate{
				Type:     wire.UpdateCancel,
				OrderId:  resting.marketOrderId,
				TickerId: b.ticker,
				Side:     oppSide,
				Price:    lvl.price,
				Qty:      0,
				Priority: types.InvalidPriority,
			})
			rci, roi, _ := b.clientIndexSlot(resting.clientId, resting.clientOrderId)
			b.clientOrderIndex[rci][roi] = pool.InvalidHandle
			b.unlinkOrderFromLevel(oppSide, restingH)
			b.orders.Deallocate(restingH)
		} else {
			res.MarketUpdates = append(res.MarketUpdates, wire.MarketUpdate{
				Type:     wire.UpdateModify,
				OrderId:  resting.marketOrderId,
				TickerId: b.ticker,
				Side:     oppSide,
				Price:    lvl.price,
				Qty:      resting.qty,
				Priority: resting.priority,
			})
		}
	}

	if remaining > 0 {
		levelH, err := b.findLevel(side, price)
		if err != nil {
			return res, err
		}
		if levelH == pool.InvalidHandle {
			levelH, err = b.insertLevel(side, price)
			if err != nil {
				return res, err
			}
		}

		orderH, err := b.orders.Allocate(func(o *order) {
			*o = order{
				ticker:        b.ticker,
				clientId:      clientId,
				clientOrderId: clientOrderId,
				marketOrderId: marketOrderId,
				side:          side,
				price:         price,
				qty:           remaining,
			}
		})
		if err != nil {
			return res, fmt.Errorf("book: order pool exhausted: %w", err)
		}
		b.appendOrderToLevel(levelH, orderH)
		b.clientOrderIndex[ci][oi] = orderH

		ord := b.orders.Get(orderH)
		res.MarketUpdates = append(res.MarketUpdates, wire.MarketUpdate{
			Type:     wire.UpdateAdd,
			OrderId:  marketOrderId,
			TickerId: b.ticker,
			Side:     side,
			Price:    price,
			Qty:      remaining,
			Priority: ord.priority,
		})
	}

	return res, nil
}

// CancelResult is the outcome of Book.Cancel.
type CancelResult struct {
	Response     wire.ClientResponse
	MarketUpdate *wire.MarketUpdate // nil on CANCEL_REJECTED
}

// Cancel removes a resting order identified by (clientId, clientOrderId).
func (b *Book) Cancel(clientId types.ClientId, clientOrderId types.ClientOrderId) (CancelResult, error) {
	ci, oi, err := b.clientIndexSlot(clientId, clientOrderId)
	if err != nil {
		return CancelResult{}, err
	}

	orderH := b.clientOrderIndex[ci][oi]
	if orderH == pool.InvalidHandle {
		return CancelResult{
			Response: wire.ClientResponse{
				Type:          wire.ResponseCancelRejected,
				ClientId:      clientId,
				TickerId:      b.ticker,
				ClientOrderId: clientOrderId,
				MarketOrderId: types.InvalidOrderId,
				Side:          0,
				Price:         types.InvalidPrice,
				QtyExec:       0,
				QtyRemain:     0,
			},
		}, nil
	}

	ord := b.orders.Get(orderH)
	upd := wire.MarketUpdate{
		Type:     wire.UpdateCancel,
		OrderId:  ord.marketOrderId,
		TickerId: b.ticker,
		Side:     ord.side,
		Price:    ord.price,
		Qty:      0,
		Priority: types.InvalidPriority,
	}
	resp := wire.ClientResponse{
		Type:          wire.ResponseCancelled,
		ClientId:      clientId,
		TickerId:      b.ticker,
		ClientOrderId: clientOrderId,
		MarketOrderId: ord.marketOrderId,
		Side:          ord.side,
		Price:         ord.price,
		QtyExec:       0,
		QtyRemain:     ord.qty,
	}

	b.clientOrderIndex[ci][oi] = pool.InvalidHandle
	b.unlinkOrderFromLevel(ord.side, orderH)
	b.orders.Deallocate(orderH)

	return CancelResult{Response: resp, MarketUpdate: &upd}, nil
}
