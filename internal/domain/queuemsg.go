package domain

// Stream-id constants recognised on an executor's receive queue. Wire-stable:
// external producers (the acker, the topology master, peer executors) address
// control messages by these names.
const (
	StreamSystemFlush        = "__system_flush"
	StreamSystemTick         = "__system_tick"
	StreamMetricsTick        = "__metrics_tick"
	StreamCredentialsChanged = "__credentials_changed"
	StreamAckerAck           = "__ack_ack"
	StreamAckerFail          = "__ack_fail"
	StreamAckerResetTimeout  = "__ack_reset_timeout"

	// StreamAckerInit is the stream the collector emits its bookkeeping
	// tuple to on an anchored emit: (rootId, xor-of-anchors, taskId).
	StreamAckerInit = "__ack_init"
)

// QueueMsgKind tags the variant carried by a QueueMsg, replacing a dynamic
// payload with a closed, total set of cases so the executor loop's dispatch
// never needs a runtime type assertion or a "default: panic" catch-all.
type QueueMsgKind int

const (
	KindTuple QueueMsgKind = iota
	KindAck
	KindFail
	KindResetTimeout
	KindTick
	KindFlush
	KindMetricsTick
	KindCredsChanged
	KindInterrupt
)

// QueueMsg is the single item type flowing through every BoundedQueue in
// this system. Exactly one of its payload fields is meaningful, selected by
// Kind.
type QueueMsg struct {
	Kind QueueMsgKind

	// valid when Kind == KindTuple: a tuple routed to this queue's owner.
	Tuple Tuple

	// valid when Kind in {KindAck, KindFail, KindResetTimeout}.
	RootID uint64
	TaskID int64

	// valid when Kind == KindCredsChanged.
	Creds map[string]string
}

// NewTupleMsg wraps a tuple addressed to this queue's owner.
func NewTupleMsg(t Tuple) QueueMsg {
	return QueueMsg{Kind: KindTuple, Tuple: t}
}

// NewAckMsg builds an ACKER_ACK message: rootID is the tuple tree root,
// taskID is the task this ack is addressed to (checked against the pending
// entry's emitting task).
func NewAckMsg(rootID uint64, taskID int64) QueueMsg {
	return QueueMsg{Kind: KindAck, RootID: rootID, TaskID: taskID}
}

// NewFailMsg builds an ACKER_FAIL message.
func NewFailMsg(rootID uint64, taskID int64) QueueMsg {
	return QueueMsg{Kind: KindFail, RootID: rootID, TaskID: taskID}
}

// NewResetTimeoutMsg builds an ACKER_RESET_TIMEOUT message.
func NewResetTimeoutMsg(rootID uint64) QueueMsg {
	return QueueMsg{Kind: KindResetTimeout, RootID: rootID}
}

// NewTickMsg builds a SYSTEM_TICK message.
func NewTickMsg() QueueMsg { return QueueMsg{Kind: KindTick} }

// NewFlushMsg builds a SYSTEM_FLUSH message.
func NewFlushMsg() QueueMsg { return QueueMsg{Kind: KindFlush} }

// NewMetricsTickMsg builds a METRICS_TICK message.
func NewMetricsTickMsg() QueueMsg { return QueueMsg{Kind: KindMetricsTick} }

// NewCredsChangedMsg builds a CREDENTIALS_CHANGED message.
func NewCredsChangedMsg(creds map[string]string) QueueMsg {
	return QueueMsg{Kind: KindCredsChanged, Creds: creds}
}

// Interrupt is the sentinel value published by BoundedQueue.HaltWithInterrupt
// to wake a consumer that is being torn down.
var Interrupt = QueueMsg{Kind: KindInterrupt}

// StreamID returns the wire-stable stream-id constant for control-kind
// messages, or the tuple's own StreamID for KindTuple.
func (m QueueMsg) StreamID() string {
	switch m.Kind {
	case KindTuple:
		return m.Tuple.StreamID
	case KindAck:
		return StreamAckerAck
	case KindFail:
		return StreamAckerFail
	case KindResetTimeout:
		return StreamAckerResetTimeout
	case KindTick:
		return StreamSystemTick
	case KindFlush:
		return StreamSystemFlush
	case KindMetricsTick:
		return StreamMetricsTick
	case KindCredsChanged:
		return StreamCredentialsChanged
	default:
		return ""
	}
}
