// Package ring implements the fixed-capacity single-producer/single-consumer
// ring used on every inter-thread boundary in the exchange and client
// processes. It carries every hand-off between the main worker
// goroutines; the exceptions are gateway.Server, which guards its shared
// sequencer with a mutex, and the channels inside marketdata.Consumer
// and pkg/monitor.
//
// Head/tail counters are cache-line padded to avoid false sharing
// between the producer and consumer goroutines.
package ring

import "sync/atomic"

// Ring is a fixed-capacity SPSC ring of T. One goroutine may call
// NextWrite/CommitWrite; a different single goroutine may call
// NextRead/CommitRead. Capacity must be a power of two.
type Ring[T any] struct {
	mask uint64
	buf  []T

	// writeIdx is owned exclusively by the producer; it is a plain
	// wrapping counter because only one goroutine ever touches it.
	writeIdx uint64
	_        [56]byte // cache line padding, avoid false sharing with published

	// published is the synchronizing variable: the producer's release
	// store here happens-after every write to buf[slot], and the
	// consumer's acquire load happens-before every read of buf[slot].
	published atomic.Uint64
	_         [56]byte

	// readIdx is owned exclusively by the consumer.
	readIdx uint64
	_       [56]byte
}

// New allocates a ring with the given capacity, which must be a power of
// two and greater than zero. Panics otherwise — a mis-sized ring is a
// construction-time programmer error, not a runtime condition to
// recover from.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("ring: capacity must be a positive power of two")
	}
	return &Ring[T]{
		mask: uint64(capacity - 1),
		buf:  make([]T, capacity),
	}
}

// Cap returns the ring's fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Size returns the number of published, unread slots.
func (r *Ring[T]) Size() int {
	return int(r.published.Load())
}

// Full reports whether the ring has no free slot for the next write. The
// producer is responsible for checking this before overrunning — the
// ring itself does not block; an overrun is a bug the integration must
// prevent by sizing the ring to its burst depth.
func (r *Ring[T]) Full() bool {
	return r.Size() >= len(r.buf)
}

// NextWrite returns a pointer to the slot the producer may populate. The
// caller must follow with CommitWrite once the slot is filled in. Calling
// NextWrite when Full reports true silently overwrites the oldest
// unread entry — sizing the ring to the integration's burst depth is the
// caller's responsibility.
func (r *Ring[T]) NextWrite() *T {
	return &r.buf[r.writeIdx&r.mask]
}

// CommitWrite publishes the slot returned by the most recent NextWrite,
// advancing the write cursor and incrementing the published count with
// release ordering so a concurrent consumer observes a fully-written slot.
func (r *Ring[T]) CommitWrite() {
	r.writeIdx++
	r.published.Add(1)
}

// NextRead returns a pointer to the next unread slot, or nil if the ring
// is empty. The caller must follow with CommitRead once done with the
// slot's contents.
func (r *Ring[T]) NextRead() *T {
	if r.published.Load() == 0 {
		return nil
	}
	return &r.buf[r.readIdx&r.mask]
}

// CommitRead advances the read cursor and releases the slot back to the
// producer by decrementing the published count.
func (r *Ring[T]) CommitRead() {
	r.readIdx++
	r.published.Add(^uint64(0)) // -1
}
