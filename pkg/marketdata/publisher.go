// Package marketdata implements the market-data publisher and snapshot
// synthesizer, and the gap-recovery state machine that consumes their
// output on the client side.
package marketdata

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/xchange/pkg/ring"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/wire"
)

// Monitor is the observability sink a Publisher optionally mirrors every
// stamped update to — satisfied by *monitor.Server without this package
// importing pkg/monitor, since the update ring already has exactly one
// consumer (this Publisher) and a second independent reader would break
// the ring's single-consumer contract.
type Monitor interface {
	PublishUpdate(u wire.MarketUpdate)
}

// Publisher drains the matching engine's market-update ring, stamps
// each update with a monotonically increasing incremental sequence
// starting at 1, sends it on the incremental multicast socket, and
// forwards a sequence-stamped copy to the snapshot synthesizer over a
// second ring.
type Publisher struct {
	in      *ring.Ring[wire.MarketUpdate]
	toSynth *ring.Ring[wire.MarketUpdate]
	conn    *net.UDPConn
	logger  log.Logger
	monitor Monitor

	seq uint64 // next incremental sequence to assign; starts at 1

	running   atomic.Bool
	wg        sync.WaitGroup
	idlePause time.Duration
}

// SetMonitor installs an optional observability mirror — every update
// this Publisher sends is also handed to m. Nil is a safe no-op.
func (p *Publisher) SetMonitor(m Monitor) { p.monitor = m }

// NewPublisher constructs a Publisher draining in and sending on conn,
// also forwarding every stamped update to toSynth.
func NewPublisher(in, toSynth *ring.Ring[wire.MarketUpdate], conn *net.UDPConn, logger log.Logger) *Publisher {
	return &Publisher{
		in:        in,
		toSynth:   toSynth,
		conn:      conn,
		logger:    logger,
		seq:       1,
		idlePause: 50 * time.Microsecond,
	}
}

// Start spins the publisher worker goroutine.
func (p *Publisher) Start() {
	p.running.Store(true)
	p.wg.Add(1)
	go p.run()
}

// Stop clears the running flag and joins.
func (p *Publisher) Stop() {
	p.running.Store(false)
	p.wg.Wait()
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for p.running.Load() {
		u := p.in.NextRead()
		if u == nil {
			time.Sleep(p.idlePause)
			continue
		}
		upd := *u
		p.in.CommitRead()

		upd.NSeq = p.seq
		p.seq++

		buf := make([]byte, wire.MarketUpdateWireSize)
		if err := upd.Encode(buf); err != nil {
			p.logger.Error("marketdata: encode incremental: %v", err)
			continue
		}
		if _, err := p.conn.Write(buf); err != nil {
			p.logger.Warn("marketdata: send incremental: %v", err)
		}
		if p.monitor != nil {
			p.monitor.PublishUpdate(upd)
		}

		if p.toSynth.Full() {
			p.logger.Fatal("marketdata: synthesizer feed ring overflow")
			return
		}
		*p.toSynth.NextWrite() = upd
		p.toSynth.CommitWrite()
	}
}
