package marketdata

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/xchange/pkg/ring"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

type trackedOrder struct {
	side     types.Side
	price    types.Price
	qty      types.Qty
	priority types.Priority
	live     bool
}

// Synthesizer applies the incremental stream verbatim into a dense
// per-instrument order_id table and periodically broadcasts a full
// snapshot on the snapshot multicast group.
type Synthesizer struct {
	in     *ring.Ring[wire.MarketUpdate]
	conn   *net.UDPConn
	logger log.Logger

	orders  [][]trackedOrder // [ticker][order_id]
	lastSeq uint64

	interval  time.Duration
	running   atomic.Bool
	wg        sync.WaitGroup
	idlePause time.Duration
}

// NewSynthesizer constructs a Synthesizer draining in, sending snapshots
// on conn every interval, sized for limits.MaxTickers instruments of
// limits.MaxOrderIDs orders each.
func NewSynthesizer(in *ring.Ring[wire.MarketUpdate], conn *net.UDPConn, interval time.Duration, limits types.Limits, logger log.Logger) *Synthesizer {
	orders := make([][]trackedOrder, limits.MaxTickers)
	for t := range orders {
		orders[t] = make([]trackedOrder, limits.MaxOrderIDs)
	}
	return &Synthesizer{
		in:        in,
		conn:      conn,
		logger:    logger,
		orders:    orders,
		interval:  interval,
		idlePause: 50 * time.Microsecond,
	}
}

// Start spins the synthesizer worker goroutine.
func (s *Synthesizer) Start() {
	s.running.Store(true)
	s.wg.Add(1)
	go s.run()
}

// Stop clears the running flag and joins.
func (s *Synthesizer) Stop() {
	s.running.Store(false)
	s.wg.Wait()
}

func (s *Synthesizer) run() {
	defer s.wg.Done()
	next := time.Now().Add(s.interval)
	for s.running.Load() {
		if u := s.in.NextRead(); u != nil {
			upd := *u
			s.in.CommitRead()
			s.apply(upd)
		} else {
			time.Sleep(s.idlePause)
		}
		if now := time.Now(); now.After(next) {
			s.publishSnapshot()
			next = now.Add(s.interval)
		}
	}
}

// apply folds one incremental into the dense snapshot table and
// enforces the strictly-increasing-by-one sequence invariant — a
// violation is a programmer error, fatal.
func (s *Synthesizer) apply(u wire.MarketUpdate) {
	if u.NSeq != s.lastSeq+1 {
		s.logger.Fatal("marketdata: synthesizer sequence gap: got %d, expected %d", u.NSeq, s.lastSeq+1)
		return
	}
	s.lastSeq = u.NSeq

	if int(u.TickerId) < 0 || int(u.TickerId) >= len(s.orders) {
		s.logger.Fatal("marketdata: synthesizer: ticker_id %d out of range", u.TickerId)
		return
	}
	table := s.orders[u.TickerId]
	oid := int(u.OrderId)

	switch u.Type {
	case wire.UpdateAdd:
		if oid < 0 || oid >= len(table) {
			s.logger.Fatal("marketdata: synthesizer: order_id %d out of range", u.OrderId)
			return
		}
		table[oid] = trackedOrder{side: u.Side, price: u.Price, qty: u.Qty, priority: u.Priority, live: true}

	case wire.UpdateModify:
		if oid < 0 || oid >= len(table) || !table[oid].live {
			return
		}
		table[oid].qty = u.Qty
		table[oid].price = u.Price

	case wire.UpdateCancel:
		if oid < 0 || oid >= len(table) {
			return
		}
		table[oid] = trackedOrder{}

	case wire.UpdateTrade:
		// not book-altering.

	default:
		s.logger.Fatal("marketdata: synthesizer saw unexpected update type %v from the matching engine", u.Type)
	}
}

// publishSnapshot broadcasts a full snapshot using snapshot-local
// sequence numbers starting at 0.
func (s *Synthesizer) publishSnapshot() {
	var seq uint64

	s.send(wire.MarketUpdate{NSeq: seq, Type: wire.UpdateSnapshotStart, OrderId: types.OrderId(s.lastSeq)})

	for t := range s.orders {
		seq++
		s.send(wire.MarketUpdate{NSeq: seq, Type: wire.UpdateClear, TickerId: types.TickerId(t)})
		for oid, o := range s.orders[t] {
			if !o.live {
				continue
			}
			seq++
			s.send(wire.MarketUpdate{
				NSeq: seq, Type: wire.UpdateAdd, OrderId: types.OrderId(oid), TickerId: types.TickerId(t),
				Side: o.side, Price: o.price, Qty: o.qty, Priority: o.priority,
			})
		}
	}

	seq++
	s.send(wire.MarketUpdate{NSeq: seq, Type: wire.UpdateSnapshotEnd, OrderId: types.OrderId(s.lastSeq)})
}

func (s *Synthesizer) send(u wire.MarketUpdate) {
	buf := make([]byte, wire.MarketUpdateWireSize)
	if err := u.Encode(buf); err != nil {
		s.logger.Error("marketdata: encode snapshot update: %v", err)
		return
	}
	if _, err := s.conn.Write(buf); err != nil {
		s.logger.Warn("marketdata: send snapshot update: %v", err)
	}
}
