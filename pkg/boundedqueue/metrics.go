package boundedqueue

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	rateBuckets    = 5
	rateBucketSpan = time.Second
	rateEpsilon    = 1e-9
)

// rateTracker is a small bucketed counter used to derive a rolling
// items/sec rate without per-item timestamping. Same bucket-rotation
// arithmetic as pkg/circuitbreaker's sliding window, specialized to a single
// running count instead of request/success/failure triples.
type rateTracker struct {
	buckets      []atomic.Uint64
	bucketNanos  int64
	lastRotation atomic.Int64
	mu           sync.Mutex
}

func newRateTracker() rateTracker {
	return rateTracker{
		buckets:     make([]atomic.Uint64, rateBuckets),
		bucketNanos: int64(rateBucketSpan),
	}
}

func (r *rateTracker) add(n uint64) {
	r.currentBucket().Add(n)
}

func (r *rateTracker) currentBucket() *atomic.Uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UnixNano()
	r.rotate(now)
	idx := int((now / r.bucketNanos) % int64(len(r.buckets)))
	return &r.buckets[idx]
}

func (r *rateTracker) rotate(now int64) {
	last := r.lastRotation.Load()
	if last == 0 {
		r.lastRotation.Store(now)
		return
	}
	if now-last < r.bucketNanos {
		return
	}
	r.lastRotation.Store(now)

	numExpired := (now - last) / r.bucketNanos
	if numExpired >= int64(len(r.buckets)) {
		for i := range r.buckets {
			r.buckets[i].Store(0)
		}
		return
	}

	startIdx := int((last / r.bucketNanos) % int64(len(r.buckets)))
	for i := int64(1); i <= numExpired; i++ {
		idx := (startIdx + int(i)) % len(r.buckets)
		r.buckets[idx].Store(0)
	}
}

// perSecond returns the rolling rate averaged over the tracked window.
func (r *rateTracker) perSecond() float64 {
	r.mu.Lock()
	r.rotate(time.Now().UnixNano())
	var sum uint64
	for i := range r.buckets {
		sum += r.buckets[i].Load()
	}
	r.mu.Unlock()

	windowSecs := float64(len(r.buckets)) * rateBucketSpan.Seconds()
	return float64(sum) / windowSecs
}

// Metrics is a point-in-time snapshot of a queue's flow-control state.
type Metrics struct {
	Capacity         int
	Population       int
	PctFull          float64
	ArrivalRateSecs  float64
	SojournTimeMs    float64
	InsertFailures   uint64
	EmptyConsumes    uint64
}

// Snapshot computes the current metrics, including the derived sojourn-time
// estimate population / max(arrivalRate, epsilon) * 1000ms.
func (q *BoundedQueue[T]) Snapshot() Metrics {
	pop := q.Population()
	cap := q.Capacity()
	rate := q.arrivals.perSecond()

	pct := 0.0
	if cap > 0 {
		pct = float64(pop) / float64(cap)
	}

	denom := rate
	if denom < rateEpsilon {
		denom = rateEpsilon
	}

	return Metrics{
		Capacity:        cap,
		Population:      pop,
		PctFull:         pct,
		ArrivalRateSecs: rate,
		SojournTimeMs:   float64(pop) / denom * 1000,
		InsertFailures:  q.insertFailures.Load(),
		EmptyConsumes:   q.emptyConsumes.Load(),
	}
}
