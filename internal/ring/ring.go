// Package ring provides the lock-free single-producer/single-consumer
// buffers seaming the gateway to the shard worker. Capacity is a power of
// two so positions wrap with a mask instead of a modulo.
package ring

import "sync/atomic"

const cacheLineSize = 64

// SPSC is a bounded lock-free ring for exactly one producer goroutine and
// one consumer goroutine.
type SPSC[T any] struct {
	buffer []T
	mask   uint64

	// writePos and readPos sit on separate cache lines so the producer and
	// consumer cores do not invalidate each other's lines on every move.
	_pad1    [cacheLineSize - 8]byte
	writePos uint64
	_pad2    [cacheLineSize - 8]byte
	readPos  uint64
	_pad3    [cacheLineSize - 8]byte
}

// New allocates a ring of the given capacity, rounded up to a power of two.
func New[T any](capacity int) *SPSC[T] {
	size := uint64(1)
	for size < uint64(capacity) {
		size <<= 1
	}
	return &SPSC[T]{
		buffer: make([]T, size),
		mask:   size - 1,
	}
}

func (r *SPSC[T]) Cap() int {
	return len(r.buffer)
}

// TryPush appends v if there is space, reporting whether it did. Producer
// side only.
func (r *SPSC[T]) TryPush(v T) bool {
	write := atomic.LoadUint64(&r.writePos)
	read := atomic.LoadUint64(&r.readPos)
	if write-read >= uint64(len(r.buffer)) {
		return false
	}
	r.buffer[write&r.mask] = v
	atomic.StoreUint64(&r.writePos, write+1)
	return true
}

// Push appends v, spinning while the ring is full. Producer side only.
func (r *SPSC[T]) Push(v T) {
	for !r.TryPush(v) {
	}
}

// Drain copies up to len(out) elements into out and returns the count,
// zero when the ring is empty. Consumer side only.
func (r *SPSC[T]) Drain(out []T) int {
	write := atomic.LoadUint64(&r.writePos)
	read := atomic.LoadUint64(&r.readPos)

	available := write - read
	if available == 0 {
		return 0
	}

	count := min(available, uint64(len(out)))
	for i := uint64(0); i < count; i++ {
		out[i] = r.buffer[(read+i)&r.mask]
	}
	atomic.StoreUint64(&r.readPos, read+count)
	return int(count)
}

// Len is the number of queued elements at the instant of the call.
func (r *SPSC[T]) Len() int {
	return int(atomic.LoadUint64(&r.writePos) - atomic.LoadUint64(&r.readPos))
}
