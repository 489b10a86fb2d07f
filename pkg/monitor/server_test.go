package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

func TestServer_BroadcastsPublishedUpdateToConnectedClient(t *testing.T) {
	s := NewServer(log.New("test-monitor"))
	mux := httptest.NewServer(s.Handler())
	defer mux.Close()

	s.wg.Add(1)
	go s.runHub()
	defer func() {
		close(s.done)
		s.wg.Wait()
	}()

	wsURL := "ws" + strings.TrimPrefix(mux.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond) // let the register message reach the hub
	s.PublishUpdate(wire.MarketUpdate{NSeq: 1, Type: wire.UpdateAdd, TickerId: 1, Side: types.Buy, OrderId: 5, Price: 100, Qty: 10})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(payload), `"orderId":5`)
}
