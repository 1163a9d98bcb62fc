// Package topology provides the worker runtime collaborator spec.md §6
// leaves out of scope: local/remote task placement resolution and a
// stream-to-task grouping. Out of scope for the executor core itself, but
// the bundled example binary needs a concrete implementation of both ports
// to run end to end.
package topology

import (
	"context"
	"fmt"

	"github.com/ibs-source/spout-executor/golang/internal/ports"
)

// StaticWorker implements ports.Worker over a fixed task layout decided at
// construction time: every task id in localQueues lives in this process;
// every other task id is remote, routed through sender.
type StaticWorker struct {
	localQueues map[int64]*ports.RecvQueue
	sender      ports.RemoteSender
}

// NewStaticWorker builds a StaticWorker. sender may be nil if the topology
// has no remote tasks configured.
func NewStaticWorker(localQueues map[int64]*ports.RecvQueue, sender ports.RemoteSender) *StaticWorker {
	return &StaticWorker{localQueues: localQueues, sender: sender}
}

// IsLocal satisfies ports.Worker.
func (w *StaticWorker) IsLocal(destTaskID int64) bool {
	_, ok := w.localQueues[destTaskID]
	return ok
}

// GetLocalQueue satisfies ports.Worker.
func (w *StaticWorker) GetLocalQueue(destTaskID int64) (*ports.RecvQueue, bool) {
	q, ok := w.localQueues[destTaskID]
	return q, ok
}

// SendRemote satisfies ports.Worker, delegating to the configured
// ports.RemoteSender.
func (w *StaticWorker) SendRemote(ctx context.Context, batches map[int64][][]byte) error {
	if w.sender == nil {
		if len(batches) == 0 {
			return nil
		}
		return fmt.Errorf("topology: no remote sender configured but %d remote batches staged", len(batches))
	}
	return w.sender.SendRemote(ctx, batches)
}

// RoundRobinGrouping resolves every stream to the same fixed set of
// downstream task ids, cycling through them one emit at a time — the
// simplest grouping a topology can declare, standing in for the shuffle
// grouping spec.md's Grouping collaborator is left abstract for.
type RoundRobinGrouping struct {
	targets []int64
	next    uint64
}

// NewRoundRobinGrouping builds a RoundRobinGrouping over targets. An empty
// targets means every emit resolves to zero destinations.
func NewRoundRobinGrouping(targets []int64) *RoundRobinGrouping {
	cp := make([]int64, len(targets))
	copy(cp, targets)
	return &RoundRobinGrouping{targets: cp}
}

// TargetTasks satisfies executor.Grouping.
func (g *RoundRobinGrouping) TargetTasks(_ string, _ []interface{}) []int64 {
	if len(g.targets) == 0 {
		return nil
	}
	idx := g.next % uint64(len(g.targets))
	g.next++
	return []int64{g.targets[idx]}
}

// BroadcastGrouping resolves every stream to every configured task id.
type BroadcastGrouping struct {
	targets []int64
}

// NewBroadcastGrouping builds a BroadcastGrouping over targets.
func NewBroadcastGrouping(targets []int64) *BroadcastGrouping {
	cp := make([]int64, len(targets))
	copy(cp, targets)
	return &BroadcastGrouping{targets: cp}
}

// TargetTasks satisfies executor.Grouping.
func (g *BroadcastGrouping) TargetTasks(_ string, _ []interface{}) []int64 {
	return g.targets
}
