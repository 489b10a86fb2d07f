// Package sequencer totally orders the ClientRequests read from many
// TCP sockets within a single order-gateway poll iteration by receive
// time, before handing them to the matching engine in that order. The
// receive time is the one the caller passes to Push; gateway.Server
// stamps it with time.Now once a frame's read completes, not with a
// kernel timestamp.
package sequencer

import (
	"sort"

	"github.com/luxfi/xchange/pkg/ring"
	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/wire"
)

type entry struct {
	rx  wire.ClientRequest
	seq int64
}

// FIFOSequencer collects one poll batch of requests and publishes them,
// sorted by receive timestamp, to the matching engine's inbound ring.
// It is not safe for concurrent use; gateway.Server serializes every
// Push and SequenceAndPublish call with its own mutex.
type FIFOSequencer struct {
	batch  []entry
	out    *ring.Ring[wire.ClientRequest]
	logger log.Logger
}

// New constructs a FIFOSequencer bounded to capacity pending requests per
// poll batch, publishing to out.
func New(capacity int, out *ring.Ring[wire.ClientRequest], logger log.Logger) *FIFOSequencer {
	return &FIFOSequencer{
		batch:  make([]entry, 0, capacity),
		out:    out,
		logger: logger,
	}
}

// Push appends request, received at timestamp rxTime, to the current
// batch.
func (s *FIFOSequencer) Push(request wire.ClientRequest, rxTime int64) {
	s.batch = append(s.batch, entry{rx: request, seq: rxTime})
}

// Pending reports how many requests are queued in the current batch.
func (s *FIFOSequencer) Pending() int {
	return len(s.batch)
}

// SequenceAndPublish sorts the batch by receive time ascending and
// publishes each request to the matching engine's inbound ring in that
// order, then resets the batch to empty. Called exactly once per
// gateway poll iteration.
func (s *FIFOSequencer) SequenceAndPublish() {
	if len(s.batch) == 0 {
		return
	}
	sort.SliceStable(s.batch, func(i, j int) bool {
		return s.batch[i].seq < s.batch[j].seq
	})
	for _, e := range s.batch {
		if s.out.Full() {
			s.logger.Fatal("sequencer: matching-engine inbound ring overflow")
			return
		}
		*s.out.NextWrite() = e.rx
		s.out.CommitWrite()
	}
	s.batch = s.batch[:0]
}
