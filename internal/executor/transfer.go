package executor

import (
	"context"
	"fmt"

	"github.com/ibs-source/spout-executor/golang/internal/domain"
	"github.com/ibs-source/spout-executor/golang/internal/ports"
)

// Transfer is the executor-to-executor transfer layer (C6): it routes each
// emitted tuple either to a local peer's BoundedQueue (via a lazily-acquired
// ProducerHandle) or stages it, serialized, into a per-destination remote
// batch flushed through the worker's remote sender.
//
// Transfer is only ever called from the owning executor's single thread
// (spec.md §5: the pending map, output collector, and per-spout state are
// all exclusively mutated by that one thread), so outboundQueues and
// remoteMap need no internal synchronization.
type Transfer struct {
	worker     ports.Worker
	serializer ports.TupleSerializer
	ws         ports.WaitStrategy
	breaker    ports.CircuitBreaker
	logger     ports.Logger

	producerBatchSz int
	remoteBatchSz   int
	currBatchSz     int

	outboundQueues map[int64]*ProducerHandle
	remoteMap      map[int64][][]byte

	ctx context.Context
}

// NewTransfer builds a Transfer. breaker may be nil, in which case remote
// flushes are sent without circuit-breaker protection.
func NewTransfer(
	worker ports.Worker,
	serializer ports.TupleSerializer,
	ws ports.WaitStrategy,
	producerBatchSz int,
	breaker ports.CircuitBreaker,
	logger ports.Logger,
) *Transfer {
	if producerBatchSz < 1 {
		producerBatchSz = 1
	}
	return &Transfer{
		worker:          worker,
		serializer:      serializer,
		ws:              ws,
		breaker:         breaker,
		logger:          logger,
		producerBatchSz: producerBatchSz,
		remoteBatchSz:   producerBatchSz,
		outboundQueues:  make(map[int64]*ProducerHandle),
		remoteMap:       make(map[int64][][]byte),
		ctx:             context.Background(),
	}
}

// SetContext updates the context blocking local publishes observe for
// cancellation. Called once per loop iteration by the owning executor.
func (t *Transfer) SetContext(ctx context.Context) {
	t.ctx = ctx
}

// Transfer routes at.Tuple to at.DestTaskID: locally if the worker reports
// the task as local, otherwise serialized once and staged for the remote
// sender. at is the spec's AddressedTuple (destTaskId, Tuple) pair, built by
// the collector at emit time and consumed here, its only consumer.
func (t *Transfer) Transfer(at domain.AddressedTuple) error {
	if t.worker.IsLocal(at.DestTaskID) {
		return t.transferLocal(at.DestTaskID, at.Tuple)
	}

	b, err := t.serializer.Serialize(at.Tuple)
	if err != nil {
		return UserError("serialize tuple", err)
	}

	t.remoteMap[at.DestTaskID] = append(t.remoteMap[at.DestTaskID], b)
	t.currBatchSz++
	if t.currBatchSz >= t.remoteBatchSz {
		return t.flushRemotes()
	}
	return nil
}

func (t *Transfer) transferLocal(destTaskID int64, tup domain.Tuple) error {
	handle, ok := t.outboundQueues[destTaskID]
	if !ok {
		q, ok2 := t.worker.GetLocalQueue(destTaskID)
		if !ok2 {
			return Invariant(fmt.Sprintf("transfer: no local queue registered for task %d", destTaskID))
		}
		handle = NewProducerHandle(q, t.producerBatchSz, t.ws)
		t.outboundQueues[destTaskID] = handle
	}

	// A local publish may park on back-pressure; staged remote batches go
	// out first so peers are not starved while this executor blocks.
	if t.currBatchSz > 0 {
		if err := t.flushRemotes(); err != nil && t.logger != nil {
			t.logger.Warn("remote flush before blocking publish failed",
				ports.Field{Key: "error", Value: err.Error()})
		}
	}

	return handle.Publish(t.ctx, domain.NewTupleMsg(tup))
}

// flushLocal flushes every producer handle in outboundQueues.
func (t *Transfer) flushLocal() error {
	for _, h := range t.outboundQueues {
		if err := h.Flush(t.ctx); err != nil {
			return err
		}
	}
	return nil
}

// flushRemotes hands the staging map to the worker's remote sender and
// clears it, optionally through a circuit breaker.
func (t *Transfer) flushRemotes() error {
	if len(t.remoteMap) == 0 {
		return nil
	}

	batches := t.remoteMap
	t.remoteMap = make(map[int64][][]byte)
	t.currBatchSz = 0

	send := func() error { return t.worker.SendRemote(t.ctx, batches) }

	if t.breaker == nil {
		return send()
	}

	if err := t.breaker.Execute(send); err != nil {
		if t.logger != nil {
			t.logger.Warn("remote flush failed", ports.Field{Key: "error", Value: err.Error()})
		}
		return err
	}
	return nil
}

// Flush performs flushLocal then flushRemotes. It runs on SYSTEM_FLUSH and
// at shutdown (Loop.Stop). A blocking local publish in transferLocal flushes
// only the staged remote batches first; batches staged in other local
// producer handles stay staged while it waits.
func (t *Transfer) Flush() error {
	if err := t.flushLocal(); err != nil {
		return err
	}
	return t.flushRemotes()
}
