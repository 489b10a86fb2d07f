package gateway

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/luxfi/xchange/pkg/telemetry/log"
)

// announceSubject and statsSubject are the control-plane-only subjects
// this package uses — entirely separate from the order/market-data
// wire protocol, following an announce/stats request-reply pattern.
const (
	announceSubject = "xchange.announce"
	statsSubject    = "xchange.stats"
)

// Stats is the snapshot an Announcer publishes and answers over NATS.
type Stats struct {
	OrdersProcessed int64     `json:"ordersProcessed"`
	TradesExecuted  int64     `json:"tradesExecuted"`
	Timestamp       time.Time `json:"timestamp"`
}

// Announcer periodically broadcasts liveness plus a stats snapshot on
// announceSubject and answers one-off statsSubject requests — an
// auxiliary control-plane channel a discovery tool or dashboard can use,
// never consulted by OrderGatewayServer/Client or the matching path
// itself.
type Announcer struct {
	nc     *nats.Conn
	logger log.Logger

	ordersProcessed atomic.Int64
	tradesExecuted  atomic.Int64

	sub    *nats.Subscription
	ticker *time.Ticker
	done   chan struct{}
}

// NewAnnouncer connects to natsURL and constructs an Announcer. A failed
// connection is returned as an error rather than fatal: the control-plane
// channel is optional, and its absence must never take down the exchange.
func NewAnnouncer(natsURL string, logger log.Logger) (*Announcer, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Announcer{nc: nc, logger: logger, done: make(chan struct{})}, nil
}

// RecordOrder and RecordTrade feed the published Stats snapshot.
func (a *Announcer) RecordOrder() { a.ordersProcessed.Add(1) }
func (a *Announcer) RecordTrade() { a.tradesExecuted.Add(1) }

// Start subscribes to statsSubject and begins periodic announcements.
func (a *Announcer) Start(period time.Duration) error {
	sub, err := a.nc.Subscribe(statsSubject, func(m *nats.Msg) {
		data, err := json.Marshal(a.snapshot())
		if err != nil {
			a.logger.Warn("gateway: marshal stats: %v", err)
			return
		}
		if err := m.Respond(data); err != nil {
			a.logger.Warn("gateway: respond stats: %v", err)
		}
	})
	if err != nil {
		return err
	}
	a.sub = sub

	a.ticker = time.NewTicker(period)
	go a.announceLoop()
	return nil
}

func (a *Announcer) announceLoop() {
	for {
		select {
		case <-a.done:
			return
		case <-a.ticker.C:
			data, err := json.Marshal(a.snapshot())
			if err != nil {
				a.logger.Warn("gateway: marshal announcement: %v", err)
				continue
			}
			if err := a.nc.Publish(announceSubject, data); err != nil {
				a.logger.Warn("gateway: publish announcement: %v", err)
			}
		}
	}
}

func (a *Announcer) snapshot() Stats {
	return Stats{
		OrdersProcessed: a.ordersProcessed.Load(),
		TradesExecuted:  a.tradesExecuted.Load(),
		Timestamp:       time.Now(),
	}
}

// Stop unsubscribes, stops the announce loop, and closes the NATS
// connection.
func (a *Announcer) Stop() {
	if a.sub != nil {
		a.sub.Unsubscribe()
	}
	if a.ticker != nil {
		a.ticker.Stop()
	}
	close(a.done)
	a.nc.Close()
}

// DiscoverStats is the client-side half: a one-shot request/reply poll
// of an exchange's current Stats over NATS, used by the client binary
// once at startup for a status line — never by
// MarketDataConsumer or OrderGatewayClient.
func DiscoverStats(natsURL string, timeout time.Duration) (Stats, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return Stats{}, err
	}
	defer nc.Close()

	msg, err := nc.Request(statsSubject, nil, timeout)
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	if err := json.Unmarshal(msg.Data, &stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}
