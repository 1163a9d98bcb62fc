package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSinkDown = errors.New("remote sink down")

// failingSink stands in for the remote-flush call the executor transfer
// layer wraps in this breaker: it fails every call and counts how many
// actually got through, so tests can assert an open breaker short-circuits
// instead of calling the sink again.
type failingSink struct {
	calls int
}

func (s *failingSink) send() error {
	s.calls++
	return errSinkDown
}

func TestExecuteClosedState(t *testing.T) {
	t.Run("success passes through", func(t *testing.T) {
		cb := New("flush", 50.0, 2, time.Second, 10, 5)

		called := false
		err := cb.Execute(func() error { called = true; return nil })

		assert.NoError(t, err)
		assert.True(t, called)
		assert.Equal(t, "closed", cb.GetState())
	})

	t.Run("failure below volume threshold stays closed", func(t *testing.T) {
		cb := New("flush", 50.0, 2, time.Second, 10, 5)
		sink := &failingSink{}

		err := cb.Execute(sink.send)

		assert.ErrorIs(t, err, errSinkDown)
		assert.Equal(t, "closed", cb.GetState())
	})

	t.Run("nil function is rejected", func(t *testing.T) {
		cb := New("flush", 50.0, 2, time.Second, 10, 5)
		assert.Error(t, cb.Execute(nil))
	})
}

func TestOpensPastErrorThresholdAndShortCircuits(t *testing.T) {
	cb := New("flush", 50.0, 2, time.Hour, 10, 3)
	sink := &failingSink{}

	for i := 0; i < 3; i++ {
		_ = cb.Execute(sink.send)
	}
	require.Equal(t, "open", cb.GetState())
	require.Equal(t, 3, sink.calls)

	// An open breaker must not reach the sink again before its timeout.
	err := cb.Execute(sink.send)
	assert.ErrorIs(t, err, ErrOpenState)
	assert.Equal(t, 3, sink.calls)
}

func TestHalfOpenRecovery(t *testing.T) {
	t.Run("successes past the threshold close the breaker", func(t *testing.T) {
		cb := New("flush", 50.0, 2, 10*time.Millisecond, 10, 1)
		sink := &failingSink{}

		require.Error(t, cb.Execute(sink.send))
		require.Equal(t, "open", cb.GetState())

		time.Sleep(20 * time.Millisecond)

		// The first probe performs the open -> half-open transition; the
		// generation bump discards its own result, so the success
		// threshold of 2 is met by the two calls after it.
		assert.NoError(t, cb.Execute(func() error { return nil }))
		assert.Equal(t, "half-open", cb.GetState())
		assert.NoError(t, cb.Execute(func() error { return nil }))
		assert.Equal(t, "half-open", cb.GetState())
		assert.NoError(t, cb.Execute(func() error { return nil }))
		assert.Equal(t, "closed", cb.GetState())
	})

	t.Run("a failed call in half-open reopens", func(t *testing.T) {
		cb := New("flush", 50.0, 2, 10*time.Millisecond, 10, 1)
		sink := &failingSink{}

		require.Error(t, cb.Execute(sink.send))
		require.Equal(t, "open", cb.GetState())

		time.Sleep(20 * time.Millisecond)

		// Transition probe: its failure is discarded with its generation.
		assert.ErrorIs(t, cb.Execute(sink.send), errSinkDown)
		assert.Equal(t, "half-open", cb.GetState())

		// The next failure is observed in half-open and reopens.
		assert.ErrorIs(t, cb.Execute(sink.send), errSinkDown)
		assert.Equal(t, "open", cb.GetState())
	})
}

func TestConcurrentCallLimit(t *testing.T) {
	cb := New("flush", 50.0, 2, time.Second, 1, 100)

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cb.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrTooManyConcurrentRequests)

	close(release)
	wg.Wait()

	// With the slot free again the breaker admits the call.
	assert.NoError(t, cb.Execute(func() error { return nil }))
}

func TestPanicCountsAsFailure(t *testing.T) {
	cb := New("flush", 50.0, 2, time.Hour, 10, 1)

	err := cb.Execute(func() error { panic("sink blew up") })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
	assert.Equal(t, "open", cb.GetState())
}

func TestGetStatsAggregatesWindow(t *testing.T) {
	cb := New("flush", 99.0, 2, time.Second, 10, 100)
	sink := &failingSink{}

	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(sink.send)

	stats := cb.GetStats()
	assert.Equal(t, uint64(3), stats.Requests)
	assert.Equal(t, uint64(2), stats.TotalSuccess)
	assert.Equal(t, uint64(1), stats.TotalFailure)
	assert.Equal(t, uint64(1), stats.ConsecutiveFailures)
	assert.Equal(t, "closed", stats.State)
}

func TestConcurrentExecuteIsSafe(t *testing.T) {
	cb := New("flush", 50.0, 5, 50*time.Millisecond, 0, 10)
	sink := &failingSink{}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				err := cb.Execute(sink.send)
				if err != nil && !errors.Is(err, errSinkDown) && !errors.Is(err, ErrOpenState) {
					t.Errorf("unexpected error under concurrency: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	// Every call failed or was short-circuited; past the volume threshold
	// the breaker must have opened.
	assert.Equal(t, "open", cb.GetState())
}
