package marketdata

import (
	"testing"

	"github.com/luxfi/xchange/pkg/ring"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

func newTestConsumer() *Consumer {
	out := ring.New[wire.MarketUpdate](256)
	return &Consumer{
		out:        out,
		logger:     log.New("test-mdc"),
		st:         stateLive,
		incNext:    1,
		queuedInc:  make(map[uint64]wire.MarketUpdate),
		queuedSnap: make(map[uint64]wire.MarketUpdate),
	}
}

func TestConsumer_LiveForwardsInOrder(t *testing.T) {
	c := newTestConsumer()
	c.onIncremental(rawUpdate{nSeq: 1, update: wire.MarketUpdate{NSeq: 1, Type: wire.UpdateAdd, OrderId: 1}})
	c.onIncremental(rawUpdate{nSeq: 2, update: wire.MarketUpdate{NSeq: 2, Type: wire.UpdateAdd, OrderId: 2}})

	if c.st != stateLive {
		t.Fatalf("expected to remain LIVE")
	}
	if c.out.Size() != 2 {
		t.Fatalf("expected 2 forwarded updates, got %d", c.out.Size())
	}
}

func TestConsumer_GapEntersRecovering(t *testing.T) {
	c := newTestConsumer()
	c.onIncremental(rawUpdate{nSeq: 1, update: wire.MarketUpdate{NSeq: 1, Type: wire.UpdateAdd, OrderId: 1}})
	c.onIncremental(rawUpdate{nSeq: 3, update: wire.MarketUpdate{NSeq: 3, Type: wire.UpdateAdd, OrderId: 3}})

	if c.st != stateRecovering {
		t.Fatalf("expected RECOVERING after a sequence gap, got %v", c.st)
	}
	if c.out.Size() != 1 {
		t.Fatalf("expected only the pre-gap update forwarded, got %d", c.out.Size())
	}
	if _, ok := c.queuedInc[3]; !ok {
		t.Fatalf("expected the gap-triggering message to be queued")
	}
}

// S5 — recovery splices a snapshot plus its incremental tail correctly.
func TestConsumer_RecoverySplicesSnapshotAndIncrementalTail(t *testing.T) {
	c := newTestConsumer()

	// Client was LIVE up through seq 5, then seq 6 never arrived; seq 7
	// triggers the gap and RECOVERING begins.
	for i := uint64(1); i <= 5; i++ {
		c.onIncremental(rawUpdate{nSeq: i, update: wire.MarketUpdate{NSeq: i, Type: wire.UpdateAdd, OrderId: types.OrderId(i)}})
	}
	c.onIncremental(rawUpdate{nSeq: 7, update: wire.MarketUpdate{NSeq: 7, Type: wire.UpdateAdd, OrderId: 70}})
	if c.st != stateRecovering {
		t.Fatalf("expected RECOVERING")
	}
	preGapForwarded := c.out.Size()

	// A snapshot published after last_seq=6 splices at inc_splice=7.
	c.onSnapshot(rawUpdate{nSeq: 0, update: wire.MarketUpdate{NSeq: 0, Type: wire.UpdateSnapshotStart, OrderId: 6}})
	c.onSnapshot(rawUpdate{nSeq: 1, update: wire.MarketUpdate{NSeq: 1, Type: wire.UpdateClear, TickerId: 0}})
	c.onSnapshot(rawUpdate{nSeq: 2, update: wire.MarketUpdate{NSeq: 2, Type: wire.UpdateAdd, OrderId: 1, TickerId: 0}})
	c.onSnapshot(rawUpdate{nSeq: 3, update: wire.MarketUpdate{NSeq: 3, Type: wire.UpdateSnapshotEnd, OrderId: 6}})

	if c.st != stateLive {
		t.Fatalf("expected recovery to complete back to LIVE, got %v", c.st)
	}
	if c.incNext != 8 {
		t.Fatalf("expected inc_next=8 after splicing in seq 7, got %d", c.incNext)
	}
	// Forwarded: pre-gap updates, then snapshot body (CLEAR + ADD, 2
	// entries), then the queued incremental at seq 7.
	if c.out.Size() != preGapForwarded+3 {
		t.Fatalf("expected %d total forwarded updates, got %d", preGapForwarded+3, c.out.Size())
	}
}

func TestConsumer_RecoveryWaitsForIncompleteSnapshot(t *testing.T) {
	c := newTestConsumer()
	c.onIncremental(rawUpdate{nSeq: 1, update: wire.MarketUpdate{NSeq: 1}})
	c.onIncremental(rawUpdate{nSeq: 3, update: wire.MarketUpdate{NSeq: 3}})

	c.onSnapshot(rawUpdate{nSeq: 0, update: wire.MarketUpdate{NSeq: 0, Type: wire.UpdateSnapshotStart, OrderId: 6}})
	c.onSnapshot(rawUpdate{nSeq: 1, update: wire.MarketUpdate{NSeq: 1, Type: wire.UpdateClear}})
	// SNAPSHOT_END not yet seen: must remain RECOVERING.
	if c.st != stateRecovering {
		t.Fatalf("expected to remain RECOVERING with an incomplete snapshot")
	}
}

func TestConsumer_SnapshotMessageInLiveIsDropped(t *testing.T) {
	c := newTestConsumer()
	c.onSnapshot(rawUpdate{nSeq: 0, update: wire.MarketUpdate{Type: wire.UpdateSnapshotStart}})
	if len(c.queuedSnap) != 0 {
		t.Fatalf("expected a LIVE-state snapshot message to be dropped, not queued")
	}
}

func TestConsumer_MissedSnapshotStartClearsAndWaits(t *testing.T) {
	c := newTestConsumer()
	c.onIncremental(rawUpdate{nSeq: 1, update: wire.MarketUpdate{NSeq: 1}})
	c.onIncremental(rawUpdate{nSeq: 3, update: wire.MarketUpdate{NSeq: 3}})

	// First snapshot message observed is not SNAPSHOT_START (missed it).
	c.onSnapshot(rawUpdate{nSeq: 2, update: wire.MarketUpdate{NSeq: 2, Type: wire.UpdateAdd}})
	if len(c.queuedSnap) != 0 {
		t.Fatalf("expected queued_snap cleared after missing SNAPSHOT_START")
	}
	if c.st != stateRecovering {
		t.Fatalf("expected to remain RECOVERING, waiting for the next cycle")
	}
}
