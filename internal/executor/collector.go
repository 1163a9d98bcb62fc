package executor

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"

	"github.com/ibs-source/spout-executor/golang/internal/domain"
	"github.com/ibs-source/spout-executor/golang/internal/ports"
)

// Grouping resolves a stream's configured grouping to the task ids a tuple
// emitted on that stream must be delivered to. Out of scope per spec.md §1
// ("topology definition" belongs to the collaborator); the executor only
// consumes the resolved list.
type Grouping interface {
	TargetTasks(streamID string, values []interface{}) []int64
}

// rootIDGenerator mints non-zero 64-bit root ids with a xorshift64 PRNG
// seeded once from a process-unique UUID, keeping the hot emit path
// allocation-free while still grounding uniqueness in more than
// time.Now().
type rootIDGenerator struct {
	state uint64
}

func newRootIDGenerator() *rootIDGenerator {
	seed := uuidSeed()
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15
	}
	return &rootIDGenerator{state: seed}
}

func uuidSeed() uint64 {
	id := uuid.New()
	return binary.BigEndian.Uint64(id[:8])
}

// next returns the next pseudo-random, non-zero 64-bit value.
func (g *rootIDGenerator) next() uint64 {
	x := g.state
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	if x == 0 {
		x = 0x2545F4914F6CDD1D
	}
	g.state = x
	return x
}

// Collector is the Spout Output Collector (C5): it turns a user spout's
// emit calls into routed tuples, allocates pending ids, and — when the
// topology has ackers and the emit is anchored — inserts pending-map
// bookkeeping and a tuple on the acker-init stream.
type Collector struct {
	taskID      int64
	grouping    Grouping
	transfer    *Transfer
	pending     PendingMap
	metrics     *domain.ExecutorMetrics
	rng         *rootIDGenerator
	logger      ports.Logger
	errorSink   func(error)
	ackCallback func(messageID string)

	ackerTaskID   int64
	ackingEnabled bool
}

// PendingMap is the subset of expirymap.Map[uint64, domain.TupleInfo] the
// collector needs: insertion only. Reads and removals belong to the
// executor loop (C7), the pending map's sole owner.
type PendingMap interface {
	Put(k uint64, v domain.TupleInfo)
}

// NewCollector builds a Collector. ackerTaskID == 0 means no acker exists
// in the topology; anchored emits then invoke ackCallback immediately
// instead of going through pending-map bookkeeping (spec.md §4.5's
// at-most-once best-effort mode).
func NewCollector(
	taskID int64,
	grouping Grouping,
	transfer *Transfer,
	pending PendingMap,
	metrics *domain.ExecutorMetrics,
	logger ports.Logger,
	ackerTaskID int64,
	ackCallback func(messageID string),
	errorSink func(error),
) *Collector {
	return &Collector{
		taskID:        taskID,
		grouping:      grouping,
		transfer:      transfer,
		pending:       pending,
		metrics:       metrics,
		rng:           newRootIDGenerator(),
		logger:        logger,
		errorSink:     errorSink,
		ackCallback:   ackCallback,
		ackerTaskID:   ackerTaskID,
		ackingEnabled: ackerTaskID != 0,
	}
}

// Emit resolves streamID's grouping, builds one tuple per destination task,
// anchors it if messageID is non-empty and ackers exist, routes each tuple
// through the transfer layer, and returns the resolved destination ids.
func (c *Collector) Emit(streamID string, values []interface{}, messageID string) ([]int64, error) {
	dests := c.grouping.TargetTasks(streamID, values)
	rootID := c.rng.next()

	for _, dest := range dests {
		tup := domain.Tuple{StreamID: streamID, TaskID: c.taskID, RootID: rootID, Values: values}
		at := domain.AddressedTuple{DestTaskID: dest, Tuple: tup}
		if err := c.transfer.Transfer(at); err != nil {
			c.ReportError(err)
			return nil, err
		}
	}

	c.anchor(rootID, streamID, messageID, dests)
	c.metrics.EmittedCount.Add(1)
	return dests, nil
}

// EmitDirect is Emit with an explicit destination task instead of a
// grouping lookup.
func (c *Collector) EmitDirect(taskID int64, streamID string, values []interface{}, messageID string) error {
	rootID := c.rng.next()
	tup := domain.Tuple{StreamID: streamID, TaskID: c.taskID, RootID: rootID, Values: values}

	if err := c.transfer.Transfer(domain.AddressedTuple{DestTaskID: taskID, Tuple: tup}); err != nil {
		c.ReportError(err)
		return err
	}

	c.anchor(rootID, streamID, messageID, []int64{taskID})
	c.metrics.EmittedCount.Add(1)
	return nil
}

// anchor implements the anchored-emit bookkeeping: messageID == "" never
// inserts into pending; otherwise, with ackers present, insert TupleInfo and
// emit the acker-init tuple carrying (rootId, xor of anchor ids, taskId);
// without ackers, invoke the user ack callback immediately.
func (c *Collector) anchor(rootID uint64, streamID, messageID string, dests []int64) {
	if messageID == "" {
		return
	}

	if !c.ackingEnabled {
		if c.ackCallback != nil {
			c.ackCallback(messageID)
		}
		return
	}

	info := domain.TupleInfo{
		RootID:          rootID,
		MessageID:       messageID,
		TaskID:          c.taskID,
		StreamID:        streamID,
		TimestampMillis: time.Now().UnixMilli(),
	}
	c.pending.Put(rootID, info)

	var anchorXor uint64
	for _, d := range dests {
		anchorXor ^= uint64(d)
	}
	ackInit := domain.Tuple{
		StreamID: domain.StreamAckerInit,
		TaskID:   c.taskID,
		Values:   []interface{}{rootID, anchorXor, c.taskID},
	}
	if err := c.transfer.Transfer(domain.AddressedTuple{DestTaskID: c.ackerTaskID, Tuple: ackInit}); err != nil {
		c.ReportError(err)
	}
}

// Flush delegates to the transfer layer's Flush.
func (c *Collector) Flush() {
	if err := c.transfer.Flush(); err != nil {
		c.ReportError(err)
	}
}

// ReportError logs e and, if a sink was configured, forwards it — the path
// user spout/transfer errors take on their way to the executor's error
// handler.
func (c *Collector) ReportError(e error) {
	if c.logger != nil {
		c.logger.Error("collector error", ports.Field{Key: "error", Value: e.Error()})
	}
	if c.errorSink != nil {
		c.errorSink(e)
	}
}
