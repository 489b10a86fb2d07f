// Package config implements environment-variable configuration for both
// binaries: every tunable has a documented default and is read once at
// process start into a plain struct, never consulted ad hoc via
// os.Getenv deep inside a component.
package config

import (
	"net"
	"os"
	"strconv"

	"github.com/luxfi/xchange/pkg/types"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Exchange holds the tunables of the exchange binary; EXCHANGE_NATS_URL
// is read directly by cmd/exchange and is not part of it.
type Exchange struct {
	Iface             string
	OrderGatewayPort  int
	IncrementalIP     net.IP
	IncrementalPort   int
	SnapshotIP        net.IP
	SnapshotPort      int
	MetricsAddr       string
	MonitorAddr       string
	LogPath           string
	Limits            types.Limits
}

// LoadExchange reads Exchange config from the environment, falling back
// to the documented defaults for anything unset.
func LoadExchange() Exchange {
	return Exchange{
		Iface:            getenv("EXCHANGE_IFACE", "lo"),
		OrderGatewayPort: getenvInt("EXCHANGE_ORDER_GATEWAY_PORT", 9000),
		IncrementalIP:    net.ParseIP(getenv("EXCHANGE_MARKET_DATA_INCREMENTAL_IP", "239.0.0.1")),
		IncrementalPort:  getenvInt("EXCHANGE_MARKET_DATA_INCREMENTAL_PORT", 9001),
		SnapshotIP:       net.ParseIP(getenv("EXCHANGE_MARKET_DATA_SNAPSHOT_IP", "239.0.0.2")),
		SnapshotPort:     getenvInt("EXCHANGE_MARKET_DATA_SNAPSHOT_PORT", 9002),
		MetricsAddr:      getenv("EXCHANGE_METRICS_ADDR", ":2112"),
		MonitorAddr:      getenv("EXCHANGE_MONITOR_ADDR", ":8090"),
		LogPath:          getenv("EXCHANGE_LOG", ""),
		Limits:           types.DefaultLimits(),
	}
}

// Client holds the tunables of the client binary; CLIENT_ID is read
// directly by cmd/client and is not part of it.
type Client struct {
	Iface            string
	GatewayAddr      string
	IncrementalIP    net.IP
	IncrementalPort  int
	SnapshotIface    string
	SnapshotIP       net.IP
	SnapshotPort     int
	NATSUrl          string
	MetricsAddr      string
	LogPath          string
	Limits           types.Limits
}

// LoadClient reads Client config from the environment, falling back to
// the documented defaults for anything unset.
func LoadClient() Client {
	return Client{
		Iface:           getenv("CLIENT_IFACE", "lo"),
		GatewayAddr:     getenv("CLIENT_ORDER_GATEWAY_ADDR", "127.0.0.1:9000"),
		IncrementalIP:   net.ParseIP(getenv("CLIENT_MARKET_DATA_INCREMENTAL_IP", "239.0.0.1")),
		IncrementalPort: getenvInt("CLIENT_MARKET_DATA_INCREMENTAL_PORT", 9001),
		SnapshotIface:   getenv("CLIENT_IFACE", "lo"),
		SnapshotIP:      net.ParseIP(getenv("CLIENT_MARKET_DATA_SNAPSHOT_IP", "239.0.0.2")),
		SnapshotPort:    getenvInt("CLIENT_MARKET_DATA_SNAPSHOT_PORT", 9002),
		NATSUrl:         getenv("CLIENT_NATS_URL", "nats://127.0.0.1:4222"),
		MetricsAddr:     getenv("CLIENT_METRICS_ADDR", ":2113"),
		LogPath:         getenv("CLIENT_LOG", ""),
		Limits:          types.DefaultLimits(),
	}
}
