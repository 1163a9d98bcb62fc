package spout

import (
	"errors"
	"testing"

	"github.com/ibs-source/spout-executor/golang/internal/ports"
)

type fakeCollector struct {
	emits       int
	lastStream  string
	lastValues  []interface{}
	lastMsgID   string
	emitErr     error
	reportedErr error
}

func (c *fakeCollector) Emit(streamID string, values []interface{}, messageID string) ([]int64, error) {
	c.emits++
	c.lastStream = streamID
	c.lastValues = values
	c.lastMsgID = messageID
	if c.emitErr != nil {
		return nil, c.emitErr
	}
	return []int64{1}, nil
}

func (c *fakeCollector) EmitDirect(int64, string, []interface{}, string) error { return nil }
func (c *fakeCollector) Flush()                                               {}
func (c *fakeCollector) ReportError(err error)                                 { c.reportedErr = err }

func TestGeneratorSpoutInactiveByDefault(t *testing.T) {
	g := NewGeneratorSpout()
	col := &fakeCollector{}
	if err := g.Open(ports.SpoutContext{TaskID: 1}, col); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g.NextTuple()
	if col.emits != 0 {
		t.Fatalf("emits = %d, want 0 before Activate", col.emits)
	}
}

func TestGeneratorSpoutEmitsWhenActive(t *testing.T) {
	g := NewGeneratorSpout()
	col := &fakeCollector{}
	if err := g.Open(ports.SpoutContext{TaskID: 7}, col); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g.Activate()

	g.NextTuple()
	g.NextTuple()

	if col.emits != 2 {
		t.Fatalf("emits = %d, want 2", col.emits)
	}
	if col.lastStream != GeneratorStream {
		t.Fatalf("stream = %q, want %q", col.lastStream, GeneratorStream)
	}
	if g.EmittedCount() != 2 {
		t.Fatalf("EmittedCount = %d, want 2", g.EmittedCount())
	}
	if col.lastMsgID == "" {
		t.Fatal("expected a non-empty message id")
	}
}

func TestGeneratorSpoutDeactivateStopsEmission(t *testing.T) {
	g := NewGeneratorSpout()
	col := &fakeCollector{}
	_ = g.Open(ports.SpoutContext{TaskID: 1}, col)
	g.Activate()
	g.NextTuple()
	g.Deactivate()
	g.NextTuple()

	if g.EmittedCount() != 1 {
		t.Fatalf("EmittedCount = %d, want 1", g.EmittedCount())
	}
}

func TestGeneratorSpoutReportsEmitError(t *testing.T) {
	g := NewGeneratorSpout()
	col := &fakeCollector{emitErr: errors.New("queue full")}
	_ = g.Open(ports.SpoutContext{TaskID: 1}, col)
	g.Activate()
	g.NextTuple()

	if col.reportedErr == nil {
		t.Fatal("expected ReportError to be invoked on Emit failure")
	}
}

func TestGeneratorSpoutAckFailCounters(t *testing.T) {
	g := NewGeneratorSpout()
	g.Ack("a")
	g.Ack("b")
	g.Fail("c")

	if g.AckedCount() != 2 {
		t.Fatalf("AckedCount = %d, want 2", g.AckedCount())
	}
	if g.FailedCount() != 1 {
		t.Fatalf("FailedCount = %d, want 1", g.FailedCount())
	}
}
