// Package waitstrategy implements pluggable idle-loop policies for empty-emit
// and back-pressure spins, the same spin/yield/park progression the ring
// buffer and worker pool use inline, pulled out into a reusable strategy.
package waitstrategy

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Strategy is the idle policy contract: Idle is called with the current
// idle-iteration count and returns the next count, usually n+1. Prepare is
// called once before a strategy starts governing a given spin site.
type Strategy interface {
	Prepare()
	Idle(n int) int
}

// NoOp returns immediately. Useful where a caller wants busy-polling with no
// backoff at all, e.g. in tests driving deterministic iteration counts.
type NoOp struct{}

// Prepare satisfies Strategy.
func (NoOp) Prepare() {}

// Idle satisfies Strategy; it never sleeps.
func (NoOp) Idle(n int) int { return n + 1 }

// ConstantSleep sleeps a fixed duration on every call.
type ConstantSleep struct {
	Delay time.Duration
}

// NewConstantSleep builds a ConstantSleep strategy with the given delay.
func NewConstantSleep(delay time.Duration) *ConstantSleep {
	return &ConstantSleep{Delay: delay}
}

// Prepare satisfies Strategy.
func (c *ConstantSleep) Prepare() {}

// Idle satisfies Strategy.
func (c *ConstantSleep) Idle(n int) int {
	time.Sleep(c.Delay)
	return n + 1
}

// ProgressivePark spins for the first SpinThreshold iterations, then calls
// runtime.Gosched() until YieldThreshold, then parks for growing durations
// capped at MaxPark. Mirrors the spin/Gosched backoff used inline by
// pkg/ringbuffer and the worker pool's runWorker loop, generalized into a
// standalone policy with a park phase added on top.
type ProgressivePark struct {
	SpinThreshold  int
	YieldThreshold int
	MinPark        time.Duration
	MaxPark        time.Duration

	parked atomic.Uint64
}

// NewProgressivePark builds a ProgressivePark with the given thresholds. A
// zero MinPark/MaxPark defaults to 50us/1ms, which is the range the teacher's
// backoff spins settle into under sustained contention.
func NewProgressivePark(spinThreshold, yieldThreshold int, minPark, maxPark time.Duration) *ProgressivePark {
	if minPark <= 0 {
		minPark = 50 * time.Microsecond
	}
	if maxPark <= 0 {
		maxPark = time.Millisecond
	}
	return &ProgressivePark{
		SpinThreshold:  spinThreshold,
		YieldThreshold: yieldThreshold,
		MinPark:        minPark,
		MaxPark:        maxPark,
	}
}

// Prepare satisfies Strategy.
func (p *ProgressivePark) Prepare() {
	p.parked.Store(0)
}

// Idle satisfies Strategy.
func (p *ProgressivePark) Idle(n int) int {
	switch {
	case n < p.SpinThreshold:
		// busy spin, no yield
	case n < p.YieldThreshold:
		runtime.Gosched()
	default:
		step := p.parked.Add(1)
		d := p.MinPark * time.Duration(step)
		if d > p.MaxPark {
			d = p.MaxPark
		}
		time.Sleep(d)
	}
	return n + 1
}

// ParkedCount reports how many times Idle has entered the park phase since
// the last Prepare. Exposed for tests asserting backoff actually escalates.
func (p *ProgressivePark) ParkedCount() uint64 {
	return p.parked.Load()
}

// Lookup resolves a configured strategy identifier (spec.md's
// "topology.*.wait.strategy" values) to a concrete Strategy. Unknown ids fall
// back to a conservative ProgressivePark rather than erroring, since wait
// strategy selection is an operational tuning knob, not a correctness gate.
func Lookup(id string) Strategy {
	switch id {
	case "no-op", "noop", "":
		return NoOp{}
	case "constant-sleep":
		return NewConstantSleep(time.Millisecond)
	case "progressive-park":
		return NewProgressivePark(100, 1000, 50*time.Microsecond, time.Millisecond)
	default:
		return NewProgressivePark(100, 1000, 50*time.Microsecond, time.Millisecond)
	}
}
