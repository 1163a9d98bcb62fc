package executor

import (
	"context"
	"sync"
	"testing"

	"github.com/ibs-source/spout-executor/golang/internal/domain"
	"github.com/ibs-source/spout-executor/golang/internal/ports"
	"github.com/ibs-source/spout-executor/golang/pkg/boundedqueue"
	"github.com/ibs-source/spout-executor/golang/pkg/waitstrategy"
)

// fakeWorker routes every destination task to a local in-memory queue,
// mirroring the fake-collaborator style of internal/processor's tests.
type fakeWorker struct {
	mu       sync.Mutex
	queues   map[int64]*ports.RecvQueue
	remote   []map[int64][][]byte
	localSet map[int64]bool
}

func newFakeWorker(localTasks ...int64) *fakeWorker {
	w := &fakeWorker{
		queues:   make(map[int64]*ports.RecvQueue),
		localSet: make(map[int64]bool),
	}
	for _, t := range localTasks {
		w.localSet[t] = true
		w.queues[t] = boundedqueue.New[domain.QueueMsg](16, boundedqueue.Multi)
	}
	return w
}

func (w *fakeWorker) IsLocal(destTaskID int64) bool { return w.localSet[destTaskID] }

func (w *fakeWorker) GetLocalQueue(destTaskID int64) (*ports.RecvQueue, bool) {
	q, ok := w.queues[destTaskID]
	return q, ok
}

func (w *fakeWorker) SendRemote(ctx context.Context, batches map[int64][][]byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.remote = append(w.remote, batches)
	return nil
}

type fakeSerializer struct{}

func (fakeSerializer) Serialize(t domain.Tuple) ([]byte, error) { return []byte(t.StreamID), nil }

type fakeGrouping struct{ dests []int64 }

func (g fakeGrouping) TargetTasks(streamID string, values []interface{}) []int64 { return g.dests }

type fakePendingMap struct {
	mu   sync.Mutex
	puts []domain.TupleInfo
}

func (p *fakePendingMap) Put(k uint64, v domain.TupleInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.puts = append(p.puts, v)
}

func newTestTransfer(w *fakeWorker) *Transfer {
	return NewTransfer(w, fakeSerializer{}, waitstrategy.NoOp{}, 1, nil, nil)
}

func TestCollectorEmitUnanchoredNeverInsertsPending(t *testing.T) {
	w := newFakeWorker(2)
	tr := newTestTransfer(w)
	pending := &fakePendingMap{}
	metrics := domain.NewExecutorMetrics()

	c := NewCollector(1, fakeGrouping{dests: []int64{2}}, tr, pending, metrics, nil, 0, nil, nil)

	dests, err := c.Emit("default", []interface{}{"v"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dests) != 1 || dests[0] != 2 {
		t.Fatalf("dests = %v, want [2]", dests)
	}
	if len(pending.puts) != 0 {
		t.Fatalf("unanchored emit must never insert into pending, got %d puts", len(pending.puts))
	}
	if metrics.EmittedCount.Load() != 1 {
		t.Fatalf("EmittedCount = %d, want 1", metrics.EmittedCount.Load())
	}
}

func TestCollectorEmitAnchoredWithAckerInsertsPendingAndAckInit(t *testing.T) {
	const ackerTask = 99
	w := newFakeWorker(2, 3, ackerTask)
	tr := newTestTransfer(w)
	pending := &fakePendingMap{}
	metrics := domain.NewExecutorMetrics()

	ackCalled := false
	c := NewCollector(1, fakeGrouping{dests: []int64{2, 3}}, tr, pending, metrics, nil, ackerTask,
		func(string) { ackCalled = true }, nil)

	_, err := c.Emit("default", []interface{}{"v"}, "msg-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending.puts) != 1 {
		t.Fatalf("expected one pending insert, got %d", len(pending.puts))
	}
	if pending.puts[0].MessageID != "msg-1" {
		t.Fatalf("MessageID = %q, want msg-1", pending.puts[0].MessageID)
	}
	if ackCalled {
		t.Fatal("ack callback must not fire when an acker exists")
	}

	ackerQueue, _ := w.GetLocalQueue(ackerTask)
	var inits []domain.Tuple
	ackerQueue.Consume(boundedqueue.HandlerFunc[domain.QueueMsg]{
		AcceptFn: func(m domain.QueueMsg) { inits = append(inits, m.Tuple) },
	})
	if len(inits) != 1 {
		t.Fatalf("acker-init tuples = %d, want 1", len(inits))
	}
	if inits[0].StreamID != domain.StreamAckerInit {
		t.Fatalf("stream = %q, want %q", inits[0].StreamID, domain.StreamAckerInit)
	}
	// (rootId, xor of anchor ids, taskId): dests 2 and 3 xor to 1.
	if got := inits[0].Values[0].(uint64); got != pending.puts[0].RootID {
		t.Fatalf("root id = %d, want %d", got, pending.puts[0].RootID)
	}
	if got := inits[0].Values[1].(uint64); got != uint64(2^3) {
		t.Fatalf("anchor xor = %d, want %d", got, uint64(2^3))
	}
	if got := inits[0].Values[2].(int64); got != 1 {
		t.Fatalf("task id = %d, want 1", got)
	}
}

func TestCollectorEmitAnchoredWithoutAckerInvokesAckImmediately(t *testing.T) {
	w := newFakeWorker(2)
	tr := newTestTransfer(w)
	pending := &fakePendingMap{}
	metrics := domain.NewExecutorMetrics()

	var gotMessageID string
	c := NewCollector(1, fakeGrouping{dests: []int64{2}}, tr, pending, metrics, nil, 0,
		func(id string) { gotMessageID = id }, nil)

	_, err := c.Emit("default", []interface{}{"v"}, "msg-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending.puts) != 0 {
		t.Fatalf("no acker means no pending insert, got %d", len(pending.puts))
	}
	if gotMessageID != "msg-2" {
		t.Fatalf("ack callback messageID = %q, want msg-2", gotMessageID)
	}
}

func TestCollectorEmitDirect(t *testing.T) {
	w := newFakeWorker(5)
	tr := newTestTransfer(w)
	pending := &fakePendingMap{}
	metrics := domain.NewExecutorMetrics()

	c := NewCollector(1, fakeGrouping{}, tr, pending, metrics, nil, 0, nil, nil)

	if err := c.EmitDirect(5, "stream", []interface{}{1}, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q, _ := w.GetLocalQueue(5)
	if q.Population() != 1 {
		t.Fatalf("population = %d, want 1", q.Population())
	}
}

func TestCollectorReportErrorInvokesSink(t *testing.T) {
	w := newFakeWorker(1)
	tr := newTestTransfer(w)
	var gotErr error
	c := NewCollector(1, fakeGrouping{}, tr, &fakePendingMap{}, domain.NewExecutorMetrics(), nil, 0, nil,
		func(e error) { gotErr = e })

	c.ReportError(Invariant("boom"))
	if gotErr == nil {
		t.Fatal("expected error sink to be invoked")
	}
}
