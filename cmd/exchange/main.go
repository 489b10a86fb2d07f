// Command exchange owns the matching engine, the order gateway, and
// market-data publication for every configured instrument, wired
// together through a fixed ring topology.
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
	"github.com/luxfi/xchange/pkg/matching"
	"github.com/luxfi/xchange/pkg/monitor"
	"github.com/luxfi/xchange/pkg/netutil"
	"github.com/luxfi/xchange/pkg/ring"
	"github.com/luxfi/xchange/pkg/sequencer"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/telemetry/metrics"
	"github.com/luxfi/xchange/pkg/wire"
)

// ringCapacity sizes every inter-thread ring; a power of two well above
// one poll iteration's worth of traffic.
const ringCapacity = 1 << 16

func main() {
	cfg := config.LoadExchange()

	var logOut *os.File
	logger := log.New("exchange")
	if cfg.LogPath != "" {
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.New("exchange").Fatal("exchange: open log file %q: %v", cfg.LogPath, err)
		}
		logOut = f
		logger = log.NewWithWriter("exchange", f)
	}
	if logOut != nil {
		defer logOut.Close()
	}

	met := metrics.New("exchange", logger.WithField("component", "metrics"))
	met.Serve(cfg.MetricsAddr)

	requests := ring.New[wire.ClientRequest](ringCapacity)
	responses := ring.New[wire.ClientResponse](ringCapacity)
	updates := ring.New[wire.MarketUpdate](ringCapacity)
	toSynth := ring.New[wire.MarketUpdate](ringCapacity)

	seq := sequencer.New(ringCapacity, requests, logger.WithField("component", "sequencer"))

	engine := matching.NewEngine(cfg.Limits, requests, responses, updates, logger.WithField("component", "matching"))
	engine.SetMetrics(met)

	gatewayAddr := ":" + strconv.Itoa(cfg.OrderGatewayPort)
	ogs, err := gateway.NewServer(gatewayAddr, seq, responses, logger.WithField("component", "gateway"))
	if err != nil {
		logger.Fatal("exchange: start order gateway on %s: %v", gatewayAddr, err)
	}

	incConn, err := netutil.DialMulticastUDP(cfg.IncrementalIP, cfg.IncrementalPort)
	if err != nil {
		logger.Fatal("exchange: dial incremental multicast %s:%d: %v", cfg.IncrementalIP, cfg.IncrementalPort, err)
	}
	snapConn, err := netutil.DialMulticastUDP(cfg.SnapshotIP, cfg.SnapshotPort)
	if err != nil {
		logger.Fatal("exchange: dial snapshot multicast %s:%d: %v", cfg.SnapshotIP, cfg.SnapshotPort, err)
	}

	publisher := marketdata.NewPublisher(updates, toSynth, incConn, logger.WithField("component", "publisher"))
	synth := marketdata.NewSynthesizer(toSynth, snapConn, time.Second, cfg.Limits, logger.WithField("component", "synthesizer"))

	mon := monitor.NewServer(logger.WithField("component", "monitor"))
	mon.Start(cfg.MonitorAddr)
	publisher.SetMonitor(mon)

	var announcer *gateway.Announcer
	if natsURL := os.Getenv("EXCHANGE_NATS_URL"); natsURL != "" {
		a, err := gateway.NewAnnouncer(natsURL, logger.WithField("component", "announce"))
		if err != nil {
			logger.Warn("exchange: NATS announce channel unavailable: %v", err)
		} else {
			if err := a.Start(5 * time.Second); err != nil {
				logger.Warn("exchange: start NATS announce channel: %v", err)
			} else {
				announcer = a
			}
		}
	}

	engine.Start()
	ogs.Start()
	publisher.Start()
	synth.Start()

	logger.Info("exchange: listening on %s, incremental=%s:%d, snapshot=%s:%d, metrics=%s, monitor=%s",
		gatewayAddr, cfg.IncrementalIP, cfg.IncrementalPort, cfg.SnapshotIP, cfg.SnapshotPort, cfg.MetricsAddr, cfg.MonitorAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("exchange: shutting down")
	ogs.Stop()
	synth.Stop()
	publisher.Stop()
	engine.Stop()
	mon.Stop()
	if announcer != nil {
		announcer.Stop()
	}
}
