// Package ports defines the service interfaces (ports) used by the
// application to decouple the executor core from its external
// collaborators: the worker runtime, tuple serialization, the user spout,
// the wait strategy, and the remote transport/metrics sinks.
package ports

import (
	"context"
	"time"

	"github.com/ibs-source/spout-executor/golang/internal/domain"
	"github.com/ibs-source/spout-executor/golang/pkg/boundedqueue"
)

// Logger defines the interface for structured logging.
type Logger interface {
	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

// Field represents a logging field.
type Field struct {
	Key   string
	Value interface{}
}

// CircuitBreaker defines the interface for the circuit breaker pattern.
type CircuitBreaker interface {
	Execute(fn func() error) error
	GetState() string
	GetStats() CircuitBreakerStats
}

// CircuitBreakerStats represents circuit breaker statistics.
type CircuitBreakerStats struct {
	Requests            uint64
	TotalSuccess        uint64
	TotalFailure        uint64
	ConsecutiveFailures uint64
	State               string
}

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

// BackoffStrategy defines the backoff strategy for retries.
type BackoffStrategy interface {
	NextInterval(attempt int) time.Duration
}

// WaitStrategy is the pluggable idle-loop policy consumed by the executor
// loop (empty-emit) and the transfer layer / batcher (back-pressure).
// pkg/waitstrategy.Strategy satisfies this by construction.
type WaitStrategy interface {
	Prepare()
	Idle(n int) int
}

// RecvQueue is the concrete receive-queue type every executor owns and every
// peer executor holds a producer handle to.
type RecvQueue = boundedqueue.BoundedQueue[domain.QueueMsg]

// Worker is the out-of-scope collaborator that knows the topology's task
// placement: which destination tasks live in this process (and therefore
// have a local BoundedQueue to publish into directly) versus which are
// remote (and must be serialized and handed to SendRemote instead).
type Worker interface {
	IsLocal(destTaskID int64) bool
	GetLocalQueue(destTaskID int64) (*RecvQueue, bool)
	SendRemote(ctx context.Context, batches map[int64][][]byte) error
}

// TupleSerializer is the opaque byte encoder the transfer layer calls
// exactly once per remote-bound tuple before staging it into a RemoteBatch.
type TupleSerializer interface {
	Serialize(t domain.Tuple) ([]byte, error)
}

// SpoutContext carries the static configuration a spout is opened with.
type SpoutContext struct {
	TaskID int64
	Conf   map[string]string
}

// OutputCollector is what a user Spout calls from inside NextTuple to emit
// tuples. Implemented by internal/executor's Collector.
type OutputCollector interface {
	Emit(streamID string, values []interface{}, messageID string) ([]int64, error)
	EmitDirect(taskID int64, streamID string, values []interface{}, messageID string) error
	Flush()
	ReportError(err error)
}

// Spout is the user-supplied source operator the executor drives.
type Spout interface {
	Open(sctx SpoutContext, collector OutputCollector) error
	Activate()
	Deactivate()
	NextTuple()
	Ack(messageID string)
	Fail(messageID string)
}

// RemoteSender is the transport-layer port backing Worker.SendRemote: an
// inter-process sink for batched, serialized tuples, one batch per
// destination task.
type RemoteSender interface {
	SendRemote(ctx context.Context, batches map[int64][][]byte) error
	Close() error
}

// MetricsPublisher is the transport-layer port publishing METRICS_TICK
// snapshots to an external reporting collaborator (out of scope per
// spec.md, given one concrete implementation in internal/transport).
type MetricsPublisher interface {
	PublishMetrics(ctx context.Context, snapshot domain.ExecutorMetricsSnapshot) error
	Close() error
}
