// Package matching implements the order matching engine: the single
// owner of every instrument's exchange-side order book.
package matching

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/xchange/pkg/book"
	"github.com/luxfi/xchange/pkg/ring"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/types"
	"github.com/luxfi/xchange/pkg/wire"
)

// Metrics is the subset of metrics.Metrics the engine reports through,
// kept as an interface so this package never imports pkg/telemetry/metrics.
type Metrics interface {
	RecordOrder()
	RecordTrade()
	RecordCancelRejected()
	ObserveMatchingLatency(nanoseconds float64)
}

// Engine is the single consumer of a ClientRequest ring and single
// producer of a ClientResponse ring and a MarketUpdate ring. It owns
// one book.Book per instrument, created up front from limits so the
// matching-engine goroutine never allocates a book on a hot path.
type Engine struct {
	books  []*book.Book // indexed by types.TickerId
	limits types.Limits

	requests  *ring.Ring[wire.ClientRequest]
	responses *ring.Ring[wire.ClientResponse]
	updates   *ring.Ring[wire.MarketUpdate]

	logger  log.Logger
	metrics Metrics

	running atomic.Bool
	wg      sync.WaitGroup

	// idlePause is the spin-loop backoff applied when the request ring is
	// empty — keeps the worker from pegging a core at 100% in this
	// reference build; production deployments pin the thread and spin
	// unconditionally instead.
	idlePause time.Duration
}

// NewEngine constructs an Engine with one book per ticker in
// [0, limits.MaxTickers).
func NewEngine(limits types.Limits, requests *ring.Ring[wire.ClientRequest], responses *ring.Ring[wire.ClientResponse], updates *ring.Ring[wire.MarketUpdate], logger log.Logger) *Engine {
	books := make([]*book.Book, limits.MaxTickers)
	for t := range books {
		books[t] = book.NewBook(types.TickerId(t), limits)
	}
	return &Engine{
		books:     books,
		limits:    limits,
		requests:  requests,
		responses: responses,
		updates:   updates,
		logger:    logger,
		idlePause: 50 * time.Microsecond,
	}
}

// SetMetrics installs the metrics sink the engine reports order/trade
// counts to. Optional — nil is a safe no-op.
func (e *Engine) SetMetrics(m Metrics) { e.metrics = m }

// Book returns the book owned by this engine for ticker — valid only from
// the engine's own goroutine, or after Stop has joined.
func (e *Engine) Book(ticker types.TickerId) *book.Book {
	return e.books[ticker]
}

// Start spins up the matching-engine worker goroutine. A production
// deployment pins the equivalent OS thread to a core; Go has no
// portable thread pinning, so this is a plain goroutine.
func (e *Engine) Start() {
	e.running.Store(true)
	e.wg.Add(1)
	go e.run()
}

// Stop clears the running flag and joins the worker goroutine.
func (e *Engine) Stop() {
	e.running.Store(false)
	e.wg.Wait()
}

func (e *Engine) run() {
	defer e.wg.Done()
	for e.running.Load() {
		req := e.requests.NextRead()
		if req == nil {
			time.Sleep(e.idlePause)
			continue
		}
		start := time.Now()
		e.dispatch(*req)
		if e.metrics != nil {
			e.metrics.ObserveMatchingLatency(float64(time.Since(start).Nanoseconds()))
		}
		e.requests.CommitRead()
	}
}

// dispatch runs the engine's per-request loop body: NEW adds to the
// book, CANCEL cancels, any other request type is a programmer error
// and is fatal.
func (e *Engine) dispatch(req wire.ClientRequest) {
	if int(req.TickerId) < 0 || int(req.TickerId) >= len(e.books) {
		e.logger.Error("matching: ticker_id %d out of range", req.TickerId)
		return
	}
	b := e.books[req.TickerId]

	switch req.Type {
	case wire.RequestNew:
		res, err := b.Add(req.ClientId, req.ClientOrderId, req.Side, req.Price, req.Qty)
		if errors.Is(err, book.ErrOrderIdOutOfRange) {
			e.logger.Warn("matching: dropping NEW from client %d: %v", req.ClientId, err)
			return
		}
		if err != nil {
			e.logger.Fatal("book.Add failed: %v", err)
			return
		}
		if e.metrics != nil {
			e.metrics.RecordOrder()
		}
		e.publish(req.TickerId, res.Responses, res.MarketUpdates)

	case wire.RequestCancel:
		res, err := b.Cancel(req.ClientId, req.ClientOrderId)
		if errors.Is(err, book.ErrOrderIdOutOfRange) {
			e.logger.Warn("matching: dropping CANCEL from client %d: %v", req.ClientId, err)
			return
		}
		if err != nil {
			e.logger.Fatal("book.Cancel failed: %v", err)
			return
		}
		if e.metrics != nil && res.Response.Type == wire.ResponseCancelRejected {
			e.metrics.RecordCancelRejected()
		}
		var updates []wire.MarketUpdate
		if res.MarketUpdate != nil {
			updates = []wire.MarketUpdate{*res.MarketUpdate}
		}
		e.publish(req.TickerId, []wire.ClientResponse{res.Response}, updates)

	default:
		e.logger.Fatal("matching: unknown request type %v from client %d", req.Type, req.ClientId)
	}
}

func (e *Engine) publish(ticker types.TickerId, responses []wire.ClientResponse, updates []wire.MarketUpdate) {
	for i := range responses {
		responses[i].TickerId = ticker
		if e.metrics != nil && responses[i].Type == wire.ResponseFilled {
			e.metrics.RecordTrade()
		}
		if e.responses.Full() {
			e.logger.Fatal("matching: response ring overflow")
			return
		}
		*e.responses.NextWrite() = responses[i]
		e.responses.CommitWrite()
	}
	for i := range updates {
		updates[i].TickerId = ticker
		if e.updates.Full() {
			e.logger.Fatal("matching: market-update ring overflow")
			return
		}
		*e.updates.NextWrite() = updates[i]
		e.updates.CommitWrite()
	}
}
