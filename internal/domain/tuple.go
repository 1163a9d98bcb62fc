// Package domain contains the core message types shared between the spout
// output collector, the executor transfer layer, and the executor loop.
package domain

import "time"

// Tuple is an ordered, typed record flowing through the topology: a list of
// values tagged with the stream it was emitted on and the task that emitted
// it. Immutable once published — nothing downstream of emit mutates Values.
type Tuple struct {
	StreamID string
	TaskID   int64
	RootID   uint64 // 0 means untracked / unanchored
	Values   []interface{}
}

// AddressedTuple pairs a Tuple with the task id it is destined for. Built at
// emit time by the collector and consumed either by local delivery (C6's
// transferLocal) or by serialization into a remote batch.
type AddressedTuple struct {
	DestTaskID int64
	Tuple      Tuple
}

// TupleInfo is the metadata kept for one in-flight, anchored (messageId !=
// "") emitted message. Created on emit-with-ack, destroyed on ack, fail, or
// timeout.
type TupleInfo struct {
	RootID          uint64
	MessageID       string // user-supplied, empty means untracked
	TaskID          int64  // the emitting task
	StreamID        string
	TimestampMillis int64 // 0 means untracked
}

// EmittedAt returns TimestampMillis as a time.Time, for latency sampling.
func (ti TupleInfo) EmittedAt() time.Time {
	return time.UnixMilli(ti.TimestampMillis)
}
