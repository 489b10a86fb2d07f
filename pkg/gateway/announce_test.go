package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Announcer itself requires a live NATS server to construct (NewAnnouncer
// dials immediately), so this test sticks to the wire shape the
// announce/stats control-plane channel exchanges.
func TestStats_JSONRoundTrip(t *testing.T) {
	want := Stats{OrdersProcessed: 42, TradesExecuted: 7, Timestamp: time.Now().UTC().Truncate(time.Second)}

	data, err := json.Marshal(want)
	require.NoError(t, err)

	var got Stats
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, want.OrdersProcessed, got.OrdersProcessed)
	require.Equal(t, want.TradesExecuted, got.TradesExecuted)
	require.True(t, want.Timestamp.Equal(got.Timestamp))
}
