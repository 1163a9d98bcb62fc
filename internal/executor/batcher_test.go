package executor

import (
	"context"
	"testing"

	"github.com/ibs-source/spout-executor/golang/internal/domain"
	"github.com/ibs-source/spout-executor/golang/pkg/boundedqueue"
	"github.com/ibs-source/spout-executor/golang/pkg/waitstrategy"
)

func TestProducerHandleBatchSizeClamped(t *testing.T) {
	q := boundedqueue.New[domain.QueueMsg](4, boundedqueue.Multi)
	h := NewProducerHandle(q, 100, waitstrategy.NoOp{})
	if h.batchSz != 2 {
		t.Fatalf("batchSz = %d, want 2 (capacity/2)", h.batchSz)
	}
}

func TestProducerHandlePublishFlushesAtBatchSize(t *testing.T) {
	q := boundedqueue.New[domain.QueueMsg](8, boundedqueue.Multi)
	h := NewProducerHandle(q, 2, waitstrategy.NoOp{})

	ctx := context.Background()
	if err := h.Publish(ctx, domain.NewTickMsg()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Population() != 0 {
		t.Fatalf("queue should still be empty before batch fills, got population %d", q.Population())
	}

	if err := h.Publish(ctx, domain.NewTickMsg()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Population() != 2 {
		t.Fatalf("queue population = %d, want 2 after batch flush", q.Population())
	}
	if h.Pending() != 0 {
		t.Fatalf("batch should be empty after flush, got %d pending", h.Pending())
	}
}

func TestProducerHandleDirectBypassesBatch(t *testing.T) {
	q := boundedqueue.New[domain.QueueMsg](4, boundedqueue.Multi)
	h := NewProducerHandle(q, 1, waitstrategy.NoOp{})
	if !h.direct {
		t.Fatal("expected direct mode when configuredBatch == 1")
	}

	if err := h.Publish(context.Background(), domain.NewTickMsg()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Population() != 1 {
		t.Fatalf("population = %d, want 1", q.Population())
	}
}

func TestProducerHandleTryFlush(t *testing.T) {
	q := boundedqueue.New[domain.QueueMsg](4, boundedqueue.Multi)
	h := NewProducerHandle(q, 4, waitstrategy.NoOp{})

	if !h.TryFlush() {
		t.Fatal("TryFlush on empty batch must return true")
	}

	_ = h.Publish(context.Background(), domain.NewTickMsg())
	if !h.TryFlush() {
		t.Fatal("TryFlush should drain at least one element into a non-full queue")
	}
	if q.Population() != 1 {
		t.Fatalf("population = %d, want 1", q.Population())
	}
}

func TestProducerHandleFlushPropagatesCancellation(t *testing.T) {
	q := boundedqueue.New[domain.QueueMsg](4, boundedqueue.Multi)
	for !q.IsFull() {
		full := domain.NewTickMsg()
		if !q.TryPublish(&full) {
			t.Fatal("setup: expected to fill the queue")
		}
	}

	// batchSz 2: one staged item stays in the batch, so Flush has work to do
	// against the full queue.
	h := NewProducerHandle(q, 2, waitstrategy.NoOp{})
	if err := h.Publish(context.Background(), domain.NewTickMsg()); err != nil {
		t.Fatalf("unexpected error staging into the batch: %v", err)
	}
	if h.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1 staged item", h.Pending())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Flush(ctx)
	if !IsKind(err, KindCancelled) {
		t.Fatalf("expected KindCancelled, got %v", err)
	}
}
