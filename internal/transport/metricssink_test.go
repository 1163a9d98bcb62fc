package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeToken is a minimal mqttlib.Token double: most MetricsSink/RedisBus
// behavior needs a live broker and is better exercised by integration tests
// (see the teacher's internal/mqtt and internal/redis packages), but
// waitForToken's polling/deadline logic is pure and worth covering directly.
type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error, readyAfter time.Duration) *fakeToken {
	tok := &fakeToken{done: make(chan struct{}), err: err}
	if readyAfter <= 0 {
		close(tok.done)
	} else {
		go func() {
			time.Sleep(readyAfter)
			close(tok.done)
		}()
	}
	return tok
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

func TestWaitForTokenSuccess(t *testing.T) {
	tok := newFakeToken(nil, 0)
	if err := waitForToken(context.Background(), tok, time.Second, "publish"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForTokenPropagatesTokenError(t *testing.T) {
	tok := newFakeToken(errors.New("boom"), 0)
	err := waitForToken(context.Background(), tok, time.Second, "publish")
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestWaitForTokenRespectsContextCancellation(t *testing.T) {
	tok := newFakeToken(nil, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := waitForToken(ctx, tok, time.Hour, "publish")
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestWaitForTokenTimesOut(t *testing.T) {
	tok := newFakeToken(nil, time.Hour)
	err := waitForToken(context.Background(), tok, 120*time.Millisecond, "publish")
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}
