package gateway

import (
	"testing"
	"time"

	"github.com/luxfi/xchange/pkg/ring"
	"github.com/luxfi/xchange/pkg/sequencer"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

func TestServerClient_NewRequestIsSequencedAndResponseRoundTrips(t *testing.T) {
	toEngine := ring.New[wire.ClientRequest](16)
	seq := sequencer.New(16, toEngine, log.New("test-seq"))
	fromEngine := ring.New[wire.ClientResponse](16)

	srv, err := NewServer("127.0.0.1:0", seq, fromEngine, log.New("test-ogs"))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.Start()
	defer srv.Stop()

	clientResponses := ring.New[wire.ClientResponse](16)
	cli, err := Dial(srv.Addr().String(), 7, clientResponses, log.New("test-ogc"))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	cli.Start()
	defer cli.Stop()

	if err := cli.SendNew(0, 1, types.Buy, 100, 10); err != nil {
		t.Fatalf("SendNew: %v", err)
	}

	req := waitForRingRead(t, toEngine)
	if req.ClientId != 7 || req.Type != wire.RequestNew || req.Price != 100 {
		t.Fatalf("unexpected request reached engine ring: %+v", req)
	}

	*fromEngine.NextWrite() = wire.ClientResponse{
		Type: wire.ResponseAccepted, ClientId: 7, ClientOrderId: 1, Price: 100, QtyRemain: 10,
	}
	fromEngine.CommitWrite()

	resp := waitForRingRead(t, clientResponses)
	if resp.Type != wire.ResponseAccepted || resp.ClientOrderId != 1 {
		t.Fatalf("unexpected response reached client ring: %+v", resp)
	}
}

func waitForRingRead[T any](t *testing.T, r *ring.Ring[T]) T {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v := r.NextRead(); v != nil {
			out := *v
			r.CommitRead()
			return out
		}
		time.Sleep(time.Millisecond)
	}
	var zero T
	t.Fatalf("timed out waiting for ring entry")
	return zero
}
