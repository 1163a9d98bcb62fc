// Package boundedqueue implements the fixed-capacity, lock-free ring used as
// the receive queue between executors: single- or multi-producer, always
// single-consumer, with wait-free offer and a blocking publish governed by a
// pluggable wait strategy. Generalizes pkg/ringbuffer.RingBuffer with
// producer-kind selection, batched publish, a draining consumer with a single
// trailing flush, and an interrupt sentinel for teardown.
package boundedqueue

import (
	"context"
	"errors"
	"math"
	"runtime"
	"sync/atomic"

	"github.com/ibs-source/spout-executor/golang/pkg/waitstrategy"
)

const cacheLine = 64

type padding [cacheLine]byte

// ProducerKind selects the ring discipline. Single is faster but has
// undefined behaviour if more than one goroutine ever calls Publish or
// TryPublish concurrently — enforcing that is the caller's responsibility.
// Multi tolerates any number of concurrent producers.
type ProducerKind int

const (
	Single ProducerKind = iota
	Multi
)

// ErrCancelled is returned by a blocking Publish when its context is done
// before a slot becomes available.
var ErrCancelled = errors.New("boundedqueue: publish cancelled")

// Handler receives items drained by Consume. Flush is invoked at most once
// per Consume call, only when at least one item was accepted.
type Handler[T any] interface {
	Accept(item T)
	Flush()
}

// HandlerFunc adapts a pair of plain functions to the Handler interface.
type HandlerFunc[T any] struct {
	AcceptFn func(T)
	FlushFn  func()
}

// Accept satisfies Handler.
func (h HandlerFunc[T]) Accept(item T) { h.AcceptFn(item) }

// Flush satisfies Handler.
func (h HandlerFunc[T]) Flush() {
	if h.FlushFn != nil {
		h.FlushFn()
	}
}

// BoundedQueue is a fixed-capacity ring of opaque references with
// back-pressure and interrupt support.
type BoundedQueue[T any] struct {
	_              padding
	capacity       uint32
	mask           uint32
	kind           ProducerKind
	_              padding
	writePos       atomic.Uint64
	_              padding
	readPos        atomic.Uint64
	_              padding
	buffer         []atomic.Pointer[T]
	_              padding
	cachedWritePos atomic.Uint64
	_              padding
	cachedReadPos  atomic.Uint64
	_              padding

	arrivals       rateTracker
	insertFailures atomic.Uint64
	emptyConsumes  atomic.Uint64
}

// New creates a BoundedQueue with the given capacity, which must be a power
// of two, and the given producer discipline.
func New[T any](capacity uint32, kind ProducerKind) *BoundedQueue[T] {
	if capacity == 0 || (capacity&(capacity-1)) != 0 {
		panic("boundedqueue: capacity must be a power of 2")
	}

	q := &BoundedQueue[T]{
		capacity: capacity,
		mask:     capacity - 1,
		kind:     kind,
		buffer:   make([]atomic.Pointer[T], capacity),
	}
	q.arrivals = newRateTracker()

	for i := range q.buffer {
		q.buffer[i].Store(nil)
	}

	return q
}

// TryPublish offers a single item. Wait-free; returns false iff full.
func (q *BoundedQueue[T]) TryPublish(item *T) bool {
	var writePos uint64
	if q.kind == Single {
		writePos = q.writePos.Load()
		if writePos-q.loadCachedRead() >= uint64(q.capacity) {
			return false
		}
		q.writePos.Store(writePos + 1)
	} else {
		for {
			writePos = q.writePos.Load()
			readPos := q.loadCachedRead()
			if writePos-readPos >= uint64(q.capacity) {
				return false
			}
			if q.writePos.CompareAndSwap(writePos, writePos+1) {
				break
			}
			runtime.Gosched()
		}
	}

	idx := writePos & uint64(q.mask)
	q.buffer[idx].Store(item)
	q.arrivals.add(1)
	return true
}

func (q *BoundedQueue[T]) loadCachedRead() uint64 {
	readPos := q.cachedReadPos.Load()
	writePos := q.writePos.Load()
	if writePos-readPos >= uint64(q.capacity) {
		q.cachedReadPos.Store(q.readPos.Load())
		readPos = q.cachedReadPos.Load()
	}
	return readPos
}

// TryPublishBatch offers items in order, stopping at the first rejection.
// Returns the number actually accepted.
func (q *BoundedQueue[T]) TryPublishBatch(items []*T) int {
	count := 0
	for _, it := range items {
		if !q.TryPublish(it) {
			q.insertFailures.Add(1)
			break
		}
		count++
	}
	return count
}

// Publish blocks until item is accepted or ctx is done, interleaving
// TryPublish attempts with ws.Idle(n).
func (q *BoundedQueue[T]) Publish(ctx context.Context, item *T, ws waitstrategy.Strategy) error {
	ws.Prepare()
	n := 0
	for {
		if q.TryPublish(item) {
			return nil
		}
		q.insertFailures.Add(1)

		select {
		case <-ctx.Done():
			return ErrCancelled
		default:
		}

		n = ws.Idle(n)
	}
}

// get removes and returns the oldest item, or nil if empty.
func (q *BoundedQueue[T]) get() *T {
	var readPos, writePos uint64

	for {
		readPos = q.readPos.Load()
		writePos = q.cachedWritePos.Load()

		if readPos >= writePos {
			q.cachedWritePos.Store(q.writePos.Load())
			writePos = q.cachedWritePos.Load()
			if readPos >= writePos {
				return nil
			}
		}

		if q.readPos.CompareAndSwap(readPos, readPos+1) {
			break
		}
		runtime.Gosched()
	}

	idx := readPos & uint64(q.mask)
	const maxRetries = 1000
	for i := 0; i < maxRetries; i++ {
		if it := q.buffer[idx].Swap(nil); it != nil {
			return it
		}
		runtime.Gosched()
	}
	return nil
}

// Consume drains every currently available item, invoking handler.Accept in
// FIFO order, then handler.Flush exactly once if at least one item was
// drained. Never blocks. Returns the count drained.
func (q *BoundedQueue[T]) Consume(handler Handler[T]) int {
	count := 0
	for {
		item := q.get()
		if item == nil {
			break
		}
		handler.Accept(*item)
		count++
	}
	if count > 0 {
		handler.Flush()
	} else {
		q.emptyConsumes.Add(1)
	}
	return count
}

// HaltWithInterrupt publishes v (conventionally a sentinel/interrupt value
// of T) on a best-effort basis so a blocked consumer observes shutdown. It
// never blocks.
func (q *BoundedQueue[T]) HaltWithInterrupt(v T) bool {
	return q.TryPublish(&v)
}

// Population returns the current, atomically-readable item count estimate.
func (q *BoundedQueue[T]) Population() int {
	writePos := q.writePos.Load()
	readPos := q.readPos.Load()
	u := writePos - readPos
	capU := uint64(q.capacity)
	if u > capU {
		u = capU
	}
	return safeUint64ToInt(u)
}

// Capacity returns the queue's fixed capacity.
func (q *BoundedQueue[T]) Capacity() int { return int(q.capacity) }

// IsEmpty reports whether the queue currently holds no items.
func (q *BoundedQueue[T]) IsEmpty() bool { return q.Population() == 0 }

// IsFull reports whether the queue is at capacity.
func (q *BoundedQueue[T]) IsFull() bool { return q.Population() >= int(q.capacity) }

func safeUint64ToInt(u uint64) int {
	maxU := uint64(math.MaxInt)
	if u > maxU {
		return math.MaxInt
	}
	return int(u)
}
