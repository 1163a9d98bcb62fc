package executor

import (
	"context"

	"github.com/ibs-source/spout-executor/golang/internal/domain"
	"github.com/ibs-source/spout-executor/golang/internal/ports"
)

// ProducerHandle is the per-(producer executor, destination queue) staging
// buffer spec.md §9 calls for instead of thread-local storage: each
// producing executor acquires one handle per destination queue at setup and
// holds the batch buffer inside the handle.
//
// When the configured batch size resolves to 1, batching is bypassed
// entirely and every Publish call goes straight through to the underlying
// queue (the "DirectInserter" of spec.md §4.2).
type ProducerHandle struct {
	queue   *ports.RecvQueue
	ws      ports.WaitStrategy
	batchSz int
	direct  bool
	batch   []*domain.QueueMsg
}

// NewProducerHandle builds a handle targeting queue, with
// producerBatchSz = max(1, min(configuredBatch, capacity/2)).
func NewProducerHandle(queue *ports.RecvQueue, configuredBatch int, ws ports.WaitStrategy) *ProducerHandle {
	half := queue.Capacity() / 2
	if half < 1 {
		half = 1
	}
	sz := configuredBatch
	if sz < 1 {
		sz = 1
	}
	if sz > half {
		sz = half
	}

	return &ProducerHandle{
		queue:   queue,
		ws:      ws,
		batchSz: sz,
		direct:  sz == 1,
	}
}

// Publish appends msg to the batch and, once the batch reaches
// producerBatchSz, flushes it. With a direct handle, it publishes msg
// immediately instead.
func (h *ProducerHandle) Publish(ctx context.Context, msg domain.QueueMsg) error {
	if h.direct {
		return h.publishOne(ctx, msg)
	}

	m := msg
	h.batch = append(h.batch, &m)
	if len(h.batch) >= h.batchSz {
		return h.Flush(ctx)
	}
	return nil
}

func (h *ProducerHandle) publishOne(ctx context.Context, msg domain.QueueMsg) error {
	m := msg
	if err := h.queue.Publish(ctx, &m, h.ws); err != nil {
		return Cancelled("producer handle direct publish")
	}
	return nil
}

// Flush repeatedly calls TryPublishBatch; whatever is accepted is removed
// from the batch head. If nothing is accepted, the configured back-pressure
// wait strategy governs the spin. Cancellation is propagated as a
// KindCancelled error.
func (h *ProducerHandle) Flush(ctx context.Context) error {
	if h.direct {
		return nil
	}

	h.ws.Prepare()
	n := 0
	for len(h.batch) > 0 {
		k := h.queue.TryPublishBatch(h.batch)
		if k > 0 {
			h.batch = h.batch[k:]
			n = 0
			continue
		}

		select {
		case <-ctx.Done():
			return Cancelled("producer handle flush")
		default:
		}

		n = h.ws.Idle(n)
	}
	return nil
}

// TryFlush is the non-blocking counterpart to Flush: it returns true if the
// batch is empty or at least one element was drained this call.
func (h *ProducerHandle) TryFlush() bool {
	if h.direct || len(h.batch) == 0 {
		return true
	}
	k := h.queue.TryPublishBatch(h.batch)
	if k > 0 {
		h.batch = h.batch[k:]
	}
	return k > 0
}

// Pending reports the number of items currently staged in the batch.
func (h *ProducerHandle) Pending() int {
	return len(h.batch)
}
