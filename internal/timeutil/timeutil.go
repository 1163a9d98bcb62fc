// Package timeutil provides helpers for constructing time.Duration values
// from integer counts without performing duration-by-duration arithmetic,
// which is flagged by linters like durationcheck.
package timeutil

import "time"

// FromMillis converts a non-negative millisecond count to time.Duration
// without multiplying two durations (avoids durationcheck).
// Negative inputs return 0.
func FromMillis(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	// 1 millisecond = 1e6 nanoseconds. Avoid duration * duration.
	return time.Duration(ms * int64(time.Millisecond))
}

// SecondsOverBuckets divides a whole-second period into numBuckets equal
// spans, the tick-interval arithmetic cmd/executor's ticker goroutine needs
// to turn topology.message.timeout.secs into a per-bucket SYSTEM_TICK
// period. The division happens over plain int64 nanosecond counts, cast to
// time.Duration only once, the same trick FromMillis uses to keep two
// already-Duration-typed values (time.Second and another Duration) from
// ever being multiplied or divided together directly.
// numBuckets <= 0 is treated as 1; secs <= 0 returns 0.
func SecondsOverBuckets(secs, numBuckets int) time.Duration {
	if numBuckets < 1 {
		numBuckets = 1
	}
	if secs <= 0 {
		return 0
	}
	nanos := int64(secs) * int64(time.Second) / int64(numBuckets)
	return time.Duration(nanos)
}
