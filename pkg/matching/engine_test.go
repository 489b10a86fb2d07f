package matching

import (
	"testing"
	"time"

	"github.com/luxfi/xchange/pkg/ring"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

func newTestEngine(t *testing.T) (*Engine, *ring.Ring[wire.ClientRequest], *ring.Ring[wire.ClientResponse], *ring.Ring[wire.MarketUpdate]) {
	t.Helper()
	requests := ring.New[wire.ClientRequest](64)
	responses := ring.New[wire.ClientResponse](64)
	updates := ring.New[wire.MarketUpdate](64)
	e := NewEngine(types.TestLimits(), requests, responses, updates, log.New("test-ome"))
	return e, requests, responses, updates
}

func TestEngine_NewRequestProducesAcceptedAndAdd(t *testing.T) {
	e, requests, responses, updates := newTestEngine(t)
	e.Start()
	defer e.Stop()

	*requests.NextWrite() = wire.ClientRequest{
		Type: wire.RequestNew, ClientId: 1, TickerId: 0, ClientOrderId: 0,
		Side: types.Buy, Price: 100, Qty: 10,
	}
	requests.CommitWrite()

	waitForRead(t, responses, 1)
	waitForRead(t, updates, 1)

	resp := responses.NextRead()
	if resp == nil || resp.Type != wire.ResponseAccepted {
		t.Fatalf("expected ACCEPTED, got %+v", resp)
	}
	upd := updates.NextRead()
	if upd == nil || upd.Type != wire.UpdateAdd {
		t.Fatalf("expected ADD update, got %+v", upd)
	}
}

func TestEngine_CancelUnknownIdYieldsCancelRejected(t *testing.T) {
	e, requests, responses, _ := newTestEngine(t)
	e.Start()
	defer e.Stop()

	*requests.NextWrite() = wire.ClientRequest{
		Type: wire.RequestCancel, ClientId: 1, TickerId: 0, ClientOrderId: 5,
	}
	requests.CommitWrite()

	waitForRead(t, responses, 1)
	resp := responses.NextRead()
	if resp == nil || resp.Type != wire.ResponseCancelRejected {
		t.Fatalf("expected CANCEL_REJECTED, got %+v", resp)
	}
}

func waitForRead[T any](t *testing.T, r *ring.Ring[T], n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.Size() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d entries on ring", n)
}
