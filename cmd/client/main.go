// Command client consumes market data with gap recovery, connects to
// the order gateway, and runs a trading engine driving one pluggable
// Strategy.
package main

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/luxfi/xchange/pkg/config"
	"github.com/luxfi/xchange/pkg/gateway"
	"github.com/luxfi/xchange/pkg/marketdata"
	"github.com/luxfi/xchange/pkg/netutil"
	"github.com/luxfi/xchange/pkg/ring"
	"github.com/luxfi/xchange/pkg/risk"
	"github.com/luxfi/xchange/pkg/strategy"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/telemetry/metrics"
	"github.com/luxfi/xchange/pkg/tradingengine"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"

	"github.com/shopspring/decimal"
)

// ringCapacity sizes every inter-thread ring.
const ringCapacity = 1 << 16

// clientId identifies this process to the order gateway. A real
// deployment assigns this per-instance; CLIENT_ID lets a shell script
// run several of these binaries against the same exchange.
func clientId() types.ClientId {
	v := os.Getenv("CLIENT_ID")
	if v == "" {
		return 1
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 1
	}
	return types.ClientId(n)
}

func main() {
	cfg := config.LoadClient()

	var logOut *os.File
	logger := log.New("client")
	if cfg.LogPath != "" {
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Fatal("client: open log file %q: %v", cfg.LogPath, err)
		}
		logOut = f
		logger = log.NewWithWriter("client", f)
	}
	if logOut != nil {
		defer logOut.Close()
	}

	met := metrics.New("client", logger.WithField("component", "metrics"))
	met.Serve(cfg.MetricsAddr)

	responses := ring.New[wire.ClientResponse](ringCapacity)
	marketUpdates := ring.New[wire.MarketUpdate](ringCapacity)

	ogClient, err := gateway.Dial(cfg.GatewayAddr, clientId(), responses, logger.WithField("component", "gateway"))
	if err != nil {
		logger.Fatal("client: dial order gateway %s: %v", cfg.GatewayAddr, err)
	}

	incConn, err := netutil.ListenMulticastUDP(cfg.Iface, cfg.IncrementalIP, cfg.IncrementalPort)
	if err != nil {
		logger.Fatal("client: join incremental multicast %s:%d: %v", cfg.IncrementalIP, cfg.IncrementalPort, err)
	}
	mdc := marketdata.NewConsumer(incConn, cfg.SnapshotIface, cfg.SnapshotIP, cfg.SnapshotPort, marketUpdates, logger.WithField("component", "marketdata"))
	mdc.SetMetrics(met)

	tickers := make([]types.TickerId, cfg.Limits.MaxTickers)
	for i := range tickers {
		tickers[i] = types.TickerId(i)
	}

	riskLimits := risk.Limits{
		SizeMax:     types.Qty(10_000),
		PositionMax: 100_000,
		LossMax:     decimal.NewFromInt(-1_000_000),
	}

	engine := tradingengine.New(cfg.Limits, tickers, marketUpdates, responses, ogClient, riskLimits, logger.WithField("component", "tradingengine"))

	strat := strategy.NewMarketMaker(
		engine.Orders(),
		engine.Features(),
		engine,
		types.Price(10),
		types.Qty(100),
		logger.WithField("component", "strategy"),
	)
	engine.SetStrategy(strat)

	if stats, err := gateway.DiscoverStats(cfg.NATSUrl, 2*time.Second); err == nil {
		logger.Info("client: exchange reports %d orders, %d trades processed so far", stats.OrdersProcessed, stats.TradesExecuted)
	} else {
		logger.Warn("client: NATS stats discovery unavailable: %v", err)
	}

	ogClient.Start()
	mdc.Start()
	engine.Start()

	logger.Info("client: connected to %s, incremental=%s:%d, snapshot=%s:%d, metrics=%s",
		cfg.GatewayAddr, cfg.IncrementalIP, cfg.IncrementalPort, cfg.SnapshotIP, cfg.SnapshotPort, cfg.MetricsAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("client: shutting down")
	engine.Stop()
	mdc.Stop()
	ogClient.Stop()
}
