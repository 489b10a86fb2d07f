package marketdata

import (
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/xchange/pkg/netutil"
	"github.com/luxfi/xchange/pkg/ring"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/wire"
)

type consumerState int

const (
	stateLive consumerState = iota
	stateRecovering
)

func (s consumerState) String() string {
	if s == stateLive {
		return "LIVE"
	}
	return "RECOVERING"
}

type rawUpdate struct {
	nSeq   uint64
	update wire.MarketUpdate
}

// Metrics is the subset of metrics.Metrics a Consumer reports
// gap-recovery cycles through, kept as an interface so this package
// never imports pkg/telemetry/metrics.
type Metrics interface {
	RecordGapRecovery(seconds float64)
}

// Consumer is the market-data gap-recovery state machine. It owns both
// multicast sockets, the trading engine's inbound update ring, and the
// recovery buffers; it joins the snapshot group only while RECOVERING.
type Consumer struct {
	incConn *net.UDPConn
	out     *ring.Ring[wire.MarketUpdate]
	logger  log.Logger
	metrics Metrics

	snapIface string
	snapGroup net.IP
	snapPort  int
	snapConn  *net.UDPConn

	st             consumerState
	recoveryStart  time.Time
	incNext        uint64
	queuedInc      map[uint64]wire.MarketUpdate
	queuedSnap     map[uint64]wire.MarketUpdate

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewConsumer constructs a Consumer already joined to the incremental
// group via incConn, capable of joining snapGroup:snapPort on snapIface
// on demand, forwarding recovered updates to out.
func NewConsumer(incConn *net.UDPConn, snapIface string, snapGroup net.IP, snapPort int, out *ring.Ring[wire.MarketUpdate], logger log.Logger) *Consumer {
	return &Consumer{
		incConn:    incConn,
		out:        out,
		logger:     logger,
		snapIface:  snapIface,
		snapGroup:  snapGroup,
		snapPort:   snapPort,
		st:         stateLive,
		incNext:    1,
		queuedInc:  make(map[uint64]wire.MarketUpdate),
		queuedSnap: make(map[uint64]wire.MarketUpdate),
	}
}

// State reports the consumer's current recovery state — exposed for
// the monitoring feed.
func (c *Consumer) State() string { return c.st.String() }

// SetMetrics installs an optional sink for gap-recovery cycles. Nil is a
// safe no-op.
func (c *Consumer) SetMetrics(m Metrics) { c.metrics = m }

// Start spins the consumer's worker goroutine.
func (c *Consumer) Start() {
	c.running.Store(true)
	c.wg.Add(1)
	go c.run()
}

// Stop closes both sockets and joins the worker goroutine.
func (c *Consumer) Stop() {
	c.running.Store(false)
	c.incConn.Close()
	if c.snapConn != nil {
		c.snapConn.Close()
	}
	c.wg.Wait()
}

func readMulticastLoop(conn *net.UDPConn) <-chan rawUpdate {
	ch := make(chan rawUpdate, 256)
	go func() {
		defer close(ch)
		buf := make([]byte, wire.MarketUpdateWireSize)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			if n < wire.MarketUpdateWireSize {
				continue
			}
			var u wire.MarketUpdate
			if err := u.Decode(buf[:n]); err != nil {
				continue
			}
			select {
			case ch <- rawUpdate{nSeq: u.NSeq, update: u}:
			default:
				// a full buffered channel here means the consumer
				// goroutine has stalled; dropping keeps the reader from
				// blocking the kernel socket buffer indefinitely.
			}
		}
	}()
	return ch
}

func (c *Consumer) run() {
	defer c.wg.Done()
	incCh := readMulticastLoop(c.incConn)
	var snapCh <-chan rawUpdate

	for c.running.Load() {
		select {
		case m, ok := <-incCh:
			if !ok {
				return
			}
			c.onIncremental(m)
		case m, ok := <-snapCh:
			if !ok {
				snapCh = nil
				continue
			}
			c.onSnapshot(m)
		case <-time.After(50 * time.Millisecond):
		}

		switch {
		case c.st == stateRecovering && c.snapConn == nil:
			conn, err := netutil.ListenMulticastUDP(c.snapIface, c.snapGroup, c.snapPort)
			if err != nil {
				c.logger.Error("marketdata: join snapshot group: %v", err)
				continue
			}
			c.snapConn = conn
			snapCh = readMulticastLoop(conn)

		case c.st == stateLive && c.snapConn != nil:
			c.snapConn.Close()
			c.snapConn = nil
			snapCh = nil
			c.queuedInc = make(map[uint64]wire.MarketUpdate)
			c.queuedSnap = make(map[uint64]wire.MarketUpdate)
		}
	}
}

// onIncremental applies the LIVE/RECOVERING incremental-socket handling.
func (c *Consumer) onIncremental(m rawUpdate) {
	switch c.st {
	case stateLive:
		if m.nSeq == c.incNext {
			c.forward(m.update)
			c.incNext++
			return
		}
		c.logger.Warn("marketdata: sequence gap (got %d, expected %d), entering RECOVERING", m.nSeq, c.incNext)
		c.st = stateRecovering
		c.recoveryStart = time.Now()
		c.queuedInc = map[uint64]wire.MarketUpdate{m.nSeq: m.update}
		c.queuedSnap = make(map[uint64]wire.MarketUpdate)

	case stateRecovering:
		c.queuedInc[m.nSeq] = m.update
	}
}

// onSnapshot applies the RECOVERING snapshot-socket handling. Snapshot
// messages received in LIVE are a warning and dropped.
func (c *Consumer) onSnapshot(m rawUpdate) {
	if c.st != stateRecovering {
		c.logger.Warn("marketdata: snapshot message received while LIVE, dropping")
		return
	}
	c.queuedSnap[m.nSeq] = m.update
	c.checkRecovery()
}

// checkRecovery runs the multi-step splice check: the queued snapshot
// must form a dense, sentinel-bounded run, and the queued incrementals
// from its end must pick up with no gap before the two streams splice
// back into one live sequence.
func (c *Consumer) checkRecovery() {
	keys := sortedKeys(c.queuedSnap)
	if len(keys) == 0 {
		return
	}

	// Step 1: must begin with SNAPSHOT_START.
	if keys[0] != 0 || c.queuedSnap[keys[0]].Type != wire.UpdateSnapshotStart {
		c.queuedSnap = make(map[uint64]wire.MarketUpdate)
		return
	}

	// Step 2: keys must be dense 0,1,2,...
	for i, k := range keys {
		if k != uint64(i) {
			c.queuedSnap = make(map[uint64]wire.MarketUpdate)
			return
		}
	}

	// Step 3: last entry must be SNAPSHOT_END, else still arriving.
	last := c.queuedSnap[keys[len(keys)-1]]
	if last.Type != wire.UpdateSnapshotEnd {
		return
	}

	// Step 4.
	incSplice := uint64(last.OrderId) + 1

	// Step 5: queued_inc must be dense from inc_splice with no gap.
	incKeys := sortedKeys(c.queuedInc)
	var tail []wire.MarketUpdate
	expect := incSplice
	for _, k := range incKeys {
		if k < incSplice {
			continue
		}
		if k != expect {
			c.queuedSnap = make(map[uint64]wire.MarketUpdate)
			return
		}
		tail = append(tail, c.queuedInc[k])
		expect++
	}

	// Step 6: forward snapshot body (skip sentinels), then the incremental tail.
	for _, k := range keys {
		u := c.queuedSnap[k]
		if u.Type == wire.UpdateSnapshotStart || u.Type == wire.UpdateSnapshotEnd {
			continue
		}
		c.forward(u)
	}
	lastForwarded := incSplice - 1
	for _, u := range tail {
		c.forward(u)
		lastForwarded = u.NSeq
	}

	// Step 7.
	c.incNext = lastForwarded + 1
	c.queuedInc = make(map[uint64]wire.MarketUpdate)
	c.queuedSnap = make(map[uint64]wire.MarketUpdate)
	c.st = stateLive
	if c.metrics != nil {
		c.metrics.RecordGapRecovery(time.Since(c.recoveryStart).Seconds())
	}
}

func (c *Consumer) forward(u wire.MarketUpdate) {
	if c.out.Full() {
		c.logger.Fatal("marketdata: trading-engine update ring overflow")
		return
	}
	*c.out.NextWrite() = u
	c.out.CommitWrite()
}

func sortedKeys(m map[uint64]wire.MarketUpdate) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
