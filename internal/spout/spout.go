// Package spout provides the bundled example Spout the executor binary is
// wired against: a synthetic generator standing in for the
// concrete producer spec.md leaves abstract behind ports.Spout, the way the
// teacher's own wiring always has a concrete github.com/redis/go-redis/v9
// client behind its RedisClient port.
package spout

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ibs-source/spout-executor/golang/internal/ports"
)

// GeneratorStream is the stream synthetic tuples are emitted on.
const GeneratorStream = "generator"

// GeneratorSpout emits an unbounded sequence of two-value tuples (sequence
// number, then a task/sequence label), each
// anchored with a fresh UUID-derived message id so the executor's acking
// path (when a topology has ackers configured) has real traffic to track.
// Ack/Fail are no-ops beyond bookkeeping: there is no upstream source to
// replay or retire, mirroring a synthetic load generator rather than a
// real at-least-once source.
type GeneratorSpout struct {
	collector ports.OutputCollector
	taskID    int64
	active    atomic.Bool

	sequence atomic.Uint64
	acked    atomic.Uint64
	failed   atomic.Uint64
}

// NewGeneratorSpout builds a GeneratorSpout.
func NewGeneratorSpout() *GeneratorSpout {
	return &GeneratorSpout{}
}

// Open satisfies ports.Spout.
func (g *GeneratorSpout) Open(sctx ports.SpoutContext, collector ports.OutputCollector) error {
	g.collector = collector
	g.taskID = sctx.TaskID
	return nil
}

// Activate satisfies ports.Spout.
func (g *GeneratorSpout) Activate() { g.active.Store(true) }

// Deactivate satisfies ports.Spout.
func (g *GeneratorSpout) Deactivate() { g.active.Store(false) }

// NextTuple emits exactly one synthetic tuple per call, anchored with a
// fresh message id built from a UUID, the same way the teacher mints its
// Redis consumer name from uuid.New().
func (g *GeneratorSpout) NextTuple() {
	if !g.active.Load() {
		return
	}
	seq := g.sequence.Add(1)
	messageID := uuid.New().String()
	values := []interface{}{seq, fmt.Sprintf("task-%d-seq-%d", g.taskID, seq)}
	if _, err := g.collector.Emit(GeneratorStream, values, messageID); err != nil {
		g.collector.ReportError(err)
	}
}

// Ack satisfies ports.Spout.
func (g *GeneratorSpout) Ack(_ string) { g.acked.Add(1) }

// Fail satisfies ports.Spout.
func (g *GeneratorSpout) Fail(_ string) { g.failed.Add(1) }

// AckedCount reports the total number of Ack callbacks observed, exposed for
// health reporting and tests.
func (g *GeneratorSpout) AckedCount() uint64 { return g.acked.Load() }

// FailedCount reports the total number of Fail callbacks observed.
func (g *GeneratorSpout) FailedCount() uint64 { return g.failed.Load() }

// EmittedCount reports the total number of NextTuple emissions.
func (g *GeneratorSpout) EmittedCount() uint64 { return g.sequence.Load() }
