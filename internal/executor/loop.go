// Package executor implements the spout executor core: the output
// collector (C5), the executor-to-executor transfer layer (C6), and the
// run loop driving activation, throttling, and ack/fail/timeout dispatch
// (C7), plus the per-producer batching handle (C2) they share.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/ibs-source/spout-executor/golang/internal/domain"
	"github.com/ibs-source/spout-executor/golang/internal/ports"
	"github.com/ibs-source/spout-executor/golang/pkg/boundedqueue"
	"github.com/ibs-source/spout-executor/golang/pkg/expirymap"
	"github.com/ibs-source/spout-executor/golang/pkg/waitstrategy"
)

// CredentialReceiver is an optional extension a Spout implements to opt in
// to CREDENTIALS_CHANGED redelivery.
type CredentialReceiver interface {
	ReceiveCredentials(creds map[string]string)
}

// Config carries the loop's tuning knobs, all sourced from spec.md §6's
// configuration keys.
type Config struct {
	MaxSpoutPending   int // per-task; scaled by len(spouts) to get effectiveMax
	DrainCadence      int // drain the receive queue every Nth iteration; 1 means every iteration
	InactiveSleep     time.Duration
	NumBuckets        int // pending-map bucket count (typically 2)
	EmptyEmitStrategy ports.WaitStrategy
}

// Loop is the Spout Executor Loop (C7). It owns the receive queue, the
// pending map, the output collector, and per-spout activation state — the
// only component permitted to mutate any of them (spec.md §5).
type Loop struct {
	recvQueue *ports.RecvQueue
	state     *State
	pending   *expirymap.Map[uint64, domain.TupleInfo]

	collector *Collector
	transfer  *Transfer

	spouts    []ports.Spout
	taskIDs   []int64
	taskIndex map[int64]int

	metrics *domain.ExecutorMetrics
	logger  ports.Logger

	metricsPublisher ports.MetricsPublisher
	errorHandler     func(error)

	cfg          Config
	effectiveMax int
	iteration    uint64

	ctx context.Context
}

// NewLoop builds a Loop. spouts and taskIDs must be parallel slices: the
// task id owning spouts[i] is taskIDs[i]. ackerTaskID == 0 disables acker
// bookkeeping (see NewCollector).
func NewLoop(
	recvQueue *ports.RecvQueue,
	spouts []ports.Spout,
	taskIDs []int64,
	grouping Grouping,
	transfer *Transfer,
	logger ports.Logger,
	metricsPublisher ports.MetricsPublisher,
	ackerTaskID int64,
	cfg Config,
	errorHandler func(error),
) *Loop {
	if cfg.NumBuckets < 1 {
		cfg.NumBuckets = 2
	}
	if cfg.DrainCadence < 1 {
		cfg.DrainCadence = 8
	}
	if cfg.InactiveSleep <= 0 {
		cfg.InactiveSleep = 100 * time.Millisecond
	}
	if cfg.EmptyEmitStrategy == nil {
		cfg.EmptyEmitStrategy = waitstrategy.NoOp{}
	}

	metrics := domain.NewExecutorMetrics()
	pending := expirymap.New[uint64, domain.TupleInfo](cfg.NumBuckets)

	index := make(map[int64]int, len(taskIDs))
	for i, id := range taskIDs {
		index[id] = i
	}

	l := &Loop{
		recvQueue:        recvQueue,
		state:            &State{},
		pending:          pending,
		transfer:         transfer,
		spouts:           spouts,
		taskIDs:          taskIDs,
		taskIndex:        index,
		metrics:          metrics,
		logger:           logger,
		metricsPublisher: metricsPublisher,
		errorHandler:     errorHandler,
		cfg:              cfg,
		ctx:              context.Background(),
	}

	primaryTask := int64(0)
	if len(taskIDs) > 0 {
		primaryTask = taskIDs[0]
	}
	l.collector = NewCollector(primaryTask, grouping, transfer, pending, metrics, logger, ackerTaskID,
		l.ackImmediately, l.reportCollectorError)

	if cfg.MaxSpoutPending > 0 {
		l.effectiveMax = cfg.MaxSpoutPending * len(spouts)
	}

	return l
}

// Collector exposes the output collector spouts are opened with.
func (l *Loop) Collector() *Collector { return l.collector }

// Metrics exposes the executor's metrics for external readers (health
// endpoint, metrics tick).
func (l *Loop) Metrics() *domain.ExecutorMetrics { return l.metrics }

// SetActive toggles the externally-controlled desired activation state.
func (l *Loop) SetActive(active bool) { l.state.SetActive(active) }

// Open calls spout.Open(sctx, collector) once per spout. Must be called
// before the first Iterate.
func (l *Loop) Open(confs []map[string]string) error {
	for i, s := range l.spouts {
		var conf map[string]string
		if i < len(confs) {
			conf = confs[i]
		}
		sctx := ports.SpoutContext{TaskID: l.taskIDs[i], Conf: conf}
		if err := l.safeOpen(s, sctx); err != nil {
			return err
		}
	}
	l.state.markOpened()
	return nil
}

func (l *Loop) safeOpen(s ports.Spout, sctx ports.SpoutContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = UserError("spout open panic", fmt.Errorf("%v", r))
		}
	}()
	if e := s.Open(sctx, l.collector); e != nil {
		return UserError("spout open failed", e)
	}
	return nil
}

// Iterate runs exactly one unit of work: drain-on-cadence, throttle check,
// activation transition, nextTuple scan (or deactivate+sleep), and
// empty-emit streak bookkeeping. Returns a non-nil *Error only for a fatal
// KindInvariant condition; all other user-callback failures are routed to
// errorHandler and do not stop the loop.
func (l *Loop) Iterate(ctx context.Context) error {
	l.ctx = ctx
	l.transfer.SetContext(ctx)
	l.iteration++

	if l.iteration%uint64(l.cfg.DrainCadence) == 0 {
		if err := l.drainReceiveQueue(); err != nil {
			return err
		}
	}

	currEmitted := l.metrics.EmittedCount.Load()
	reachedMax := l.effectiveMax > 0 && uint64(l.pending.Size()) >= uint64(l.effectiveMax)

	becameActive, becameInactive := l.state.observeTransition()

	if l.state.IsActive() {
		if becameActive {
			for _, s := range l.spouts {
				l.safeActivate(s)
			}
		}
		if !reachedMax {
			for _, s := range l.spouts {
				l.callNextTuple(s)
			}
		}
	} else {
		if becameInactive {
			for _, s := range l.spouts {
				l.safeDeactivate(s)
			}
		}
		time.Sleep(l.cfg.InactiveSleep)
		l.metrics.SkippedInactive.Add(1)
	}

	if l.metrics.EmittedCount.Load() == currEmitted && l.state.IsActive() {
		streak := l.metrics.EmptyEmitStreak.Add(1)
		if streak == 1 {
			l.cfg.EmptyEmitStrategy.Prepare()
		}
		l.cfg.EmptyEmitStrategy.Idle(int(streak))
	} else {
		l.metrics.EmptyEmitStreak.Store(0)
	}

	return nil
}

// Run calls Iterate until ctx is done or a fatal error is returned. Open
// must have completed first.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.wasOpened() {
		return Invariant("executor run before spouts were opened")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := l.Iterate(ctx); err != nil {
			return err
		}
	}
}

// Stop performs the orderly shutdown sequence after Run has returned:
// deactivate every spout (if still active), flush the collector, then drain
// remaining ack/fail/timeout traffic from the receive queue until it is
// empty or ctx's deadline passes. Must be called from the consumer side —
// never concurrently with Run.
func (l *Loop) Stop(ctx context.Context) error {
	l.ctx = ctx
	l.transfer.SetContext(ctx)

	l.state.SetActive(false)
	if _, becameInactive := l.state.observeTransition(); becameInactive {
		for _, s := range l.spouts {
			l.safeDeactivate(s)
		}
	}
	l.collector.Flush()

	for !l.recvQueue.IsEmpty() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := l.drainReceiveQueue(); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) drainReceiveQueue() error {
	var fatal error
	l.recvQueue.Consume(boundedqueue.HandlerFunc[domain.QueueMsg]{
		AcceptFn: func(msg domain.QueueMsg) {
			if fatal != nil {
				return
			}
			if err := l.dispatch(msg); err != nil {
				if IsKind(err, KindInvariant) {
					fatal = err
				} else {
					l.handleUserError(err)
				}
			}
		},
	})
	return fatal
}

func (l *Loop) dispatch(msg domain.QueueMsg) error {
	switch msg.Kind {
	case domain.KindFlush:
		l.collector.Flush()
	case domain.KindTick:
		l.pending.Rotate(l.onExpire)
	case domain.KindMetricsTick:
		l.publishMetrics()
	case domain.KindCredsChanged:
		l.dispatchCreds(msg.Creds)
	case domain.KindResetTimeout:
		l.handleResetTimeout(msg.RootID)
	case domain.KindAck:
		return l.handleAck(msg)
	case domain.KindFail:
		l.handleFail(msg)
	case domain.KindTuple, domain.KindInterrupt:
		// A spout executor's receive queue only carries control traffic;
		// a stray data tuple or interrupt sentinel here is a no-op.
	}
	return nil
}

func (l *Loop) onExpire(rootID uint64, info domain.TupleInfo) {
	if info.MessageID == "" {
		return
	}
	spout := l.spoutForTask(info.TaskID)
	if spout != nil {
		l.safeCall(func() { spout.Fail(info.MessageID) })
	}
	l.metrics.TimedOutCount.Add(1)
}

func (l *Loop) handleAck(msg domain.QueueMsg) error {
	info, ok := l.pending.Remove(msg.RootID)
	if !ok {
		return nil
	}
	if info.MessageID == "" {
		return nil
	}
	if msg.TaskID != info.TaskID {
		return Invariant(fmt.Sprintf("ack task mismatch: addressed task %d, pending entry belongs to task %d",
			msg.TaskID, info.TaskID))
	}

	if spout := l.spoutForTask(info.TaskID); spout != nil {
		l.safeCall(func() { spout.Ack(info.MessageID) })
	}
	l.metrics.AckedCount.Add(1)
	l.metrics.RecordAckLatency(time.Since(info.EmittedAt()))
	return nil
}

func (l *Loop) handleFail(msg domain.QueueMsg) {
	info, ok := l.pending.Remove(msg.RootID)
	if !ok || info.MessageID == "" {
		return
	}
	if spout := l.spoutForTask(info.TaskID); spout != nil {
		l.safeCall(func() { spout.Fail(info.MessageID) })
	}
	l.metrics.FailedCount.Add(1)
}

func (l *Loop) handleResetTimeout(rootID uint64) {
	if info, ok := l.pending.Get(rootID); ok {
		l.pending.Put(rootID, info)
	}
}

func (l *Loop) dispatchCreds(creds map[string]string) {
	for _, s := range l.spouts {
		if cr, ok := s.(CredentialReceiver); ok {
			l.safeCall(func() { cr.ReceiveCredentials(creds) })
		}
	}
}

func (l *Loop) publishMetrics() {
	if l.metricsPublisher == nil {
		return
	}
	snap := l.metrics.Snapshot()
	qs := l.recvQueue.Snapshot()
	snap.RecvQueue = domain.QueueMetricsSnapshot{
		Capacity:        qs.Capacity,
		Population:      qs.Population,
		PctFull:         qs.PctFull,
		ArrivalRateSecs: qs.ArrivalRateSecs,
		SojournTimeMs:   qs.SojournTimeMs,
		InsertFailures:  qs.InsertFailures,
	}
	if err := l.metricsPublisher.PublishMetrics(l.ctx, snap); err != nil {
		l.handleUserError(UserError("publish metrics", err))
	}
}

func (l *Loop) spoutForTask(taskID int64) ports.Spout {
	idx, ok := l.taskIndex[taskID]
	if !ok {
		return nil
	}
	return l.spouts[idx]
}

func (l *Loop) ackImmediately(messageID string) {
	if spout := l.spoutForTask(l.collector.taskID); spout != nil {
		l.safeCall(func() { spout.Ack(messageID) })
	}
	l.metrics.AckedCount.Add(1)
}

func (l *Loop) reportCollectorError(err error) {
	l.handleUserError(err)
}

func (l *Loop) callNextTuple(s ports.Spout) {
	defer func() {
		if r := recover(); r != nil {
			l.handleUserError(UserError("nextTuple panic", fmt.Errorf("%v", r)))
		}
	}()
	s.NextTuple()
}

func (l *Loop) safeActivate(s ports.Spout) {
	defer func() {
		if r := recover(); r != nil {
			l.handleUserError(UserError("activate panic", fmt.Errorf("%v", r)))
		}
	}()
	s.Activate()
}

func (l *Loop) safeDeactivate(s ports.Spout) {
	defer func() {
		if r := recover(); r != nil {
			l.handleUserError(UserError("deactivate panic", fmt.Errorf("%v", r)))
		}
	}()
	s.Deactivate()
}

func (l *Loop) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.handleUserError(UserError("spout callback panic", fmt.Errorf("%v", r)))
		}
	}()
	fn()
}

func (l *Loop) handleUserError(err error) {
	if l.logger != nil {
		l.logger.Error("executor user-callback error", ports.Field{Key: "error", Value: err.Error()})
	}
	if l.errorHandler != nil {
		l.errorHandler(err)
	}
}

// PendingSize exposes the current pending-map size for tests and health
// reporting.
func (l *Loop) PendingSize() int { return l.pending.Size() }
