package jsonfast

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"
)

// decode round-trips the builder's output through encoding/json, the same
// check a remote peer effectively performs on a serialized tuple.
func decode(t *testing.T, b *Builder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(b.Bytes(), &m); err != nil {
		t.Fatalf("builder output is not valid JSON: %v, raw=%s", err, b.Bytes())
	}
	return m
}

func TestBuilderTupleShapedObject(t *testing.T) {
	// The field mix the tuple serializer emits: strings, ints, and a raw
	// numeric field for values outside int range.
	b := New(128)
	b.BeginObject()
	b.AddStringField("stream_id", "generator")
	b.AddIntField("task_id", 7)
	b.AddRawJSONField("root_id", strconv.AppendUint(nil, 1<<63, 10))
	b.AddStringField("v0", "task-7-seq-1")
	b.AddIntField("v1", -42)
	b.EndObject()

	m := decode(t, b)
	if m["stream_id"] != "generator" {
		t.Fatalf("stream_id = %v, want generator", m["stream_id"])
	}
	if m["task_id"] != float64(7) {
		t.Fatalf("task_id = %v, want 7", m["task_id"])
	}
	if m["v1"] != float64(-42) {
		t.Fatalf("v1 = %v, want -42", m["v1"])
	}

	var typed struct {
		RootID uint64 `json:"root_id"`
	}
	if err := json.Unmarshal(b.Bytes(), &typed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typed.RootID != 1<<63 {
		t.Fatalf("root_id = %d, want %d", typed.RootID, uint64(1)<<63)
	}
}

func TestBuilderEscapesStringValues(t *testing.T) {
	cases := map[string]string{
		"quotes":    `say "ack"`,
		"backslash": `c:\tuples`,
		"newline":   "line1\nline2",
		"tab":       "a\tb",
		"control":   "nul\x01byte",
	}

	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			b := New(64)
			b.BeginObject()
			b.AddStringField("v", value)
			b.EndObject()

			m := decode(t, b)
			if m["v"] != value {
				t.Fatalf("round-trip = %q, want %q", m["v"], value)
			}
		})
	}
}

func TestBuilderResetReuse(t *testing.T) {
	b := New(64)
	b.BeginObject()
	b.AddStringField("stream_id", "first")
	b.EndObject()
	first := decode(t, b)
	if first["stream_id"] != "first" {
		t.Fatalf("stream_id = %v, want first", first["stream_id"])
	}

	b.Reset()
	if len(b.Bytes()) != 0 {
		t.Fatalf("buffer length after reset = %d, want 0", len(b.Bytes()))
	}

	b.BeginObject()
	b.AddIntField("task_id", 3)
	b.EndObject()
	second := decode(t, b)
	if _, stale := second["stream_id"]; stale {
		t.Fatal("reset must not leak fields from the previous object")
	}
	if second["task_id"] != float64(3) {
		t.Fatalf("task_id = %v, want 3", second["task_id"])
	}
}

func TestBuilderFirstFieldOpensObject(t *testing.T) {
	// sep() on an unopened builder begins the object implicitly.
	b := New(64)
	b.AddStringField("stream_id", "implicit")
	b.EndObject()

	m := decode(t, b)
	if m["stream_id"] != "implicit" {
		t.Fatalf("stream_id = %v, want implicit", m["stream_id"])
	}
}

func TestBuilderEmptyObject(t *testing.T) {
	b := New(16)
	b.BeginObject()
	b.EndObject()
	if string(b.Bytes()) != "{}" {
		t.Fatalf("empty object = %q, want {}", b.Bytes())
	}
}

func TestBuilderIntBoundaries(t *testing.T) {
	b := New(64)
	b.BeginObject()
	b.AddIntField("zero", 0)
	b.AddIntField("min_ish", -1 << 62)
	b.AddIntField("max_ish", 1<<62 - 1)
	b.EndObject()

	m := decode(t, b)
	if m["zero"] != float64(0) {
		t.Fatalf("zero = %v, want 0", m["zero"])
	}

	var typed struct {
		Min int64 `json:"min_ish"`
		Max int64 `json:"max_ish"`
	}
	if err := json.Unmarshal(b.Bytes(), &typed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typed.Min != -1<<62 || typed.Max != 1<<62-1 {
		t.Fatalf("boundaries = (%d, %d), want (%d, %d)", typed.Min, typed.Max, int64(-1)<<62, int64(1)<<62-1)
	}
}

func TestBuilderTimeRFC3339Field(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 30, 45, 0, time.UTC)

	b := New(64)
	b.BeginObject()
	b.AddTimeRFC3339Field("emitted_at", ts)
	b.EndObject()

	m := decode(t, b)
	got, ok := m["emitted_at"].(string)
	if !ok {
		t.Fatalf("emitted_at = %v, want a string", m["emitted_at"])
	}
	parsed, err := time.Parse(time.RFC3339, got)
	if err != nil {
		t.Fatalf("emitted_at %q does not parse as RFC3339: %v", got, err)
	}
	if !parsed.Equal(ts) {
		t.Fatalf("emitted_at = %v, want %v", parsed, ts)
	}
}

func TestBuilderNestedStringMapField(t *testing.T) {
	b := New(128)
	b.BeginObject()
	b.AddStringField("stream_id", "s")
	b.AddNestedStringMapField("meta", map[string]map[string]string{
		"origin": {"host": "worker-1", "pid": "42"},
	})
	b.EndObject()

	var typed struct {
		Meta map[string]map[string]string `json:"meta"`
	}
	if err := json.Unmarshal(b.Bytes(), &typed); err != nil {
		t.Fatalf("unexpected error: %v, raw=%s", err, b.Bytes())
	}
	if typed.Meta["origin"]["host"] != "worker-1" {
		t.Fatalf("meta = %v, want origin.host=worker-1", typed.Meta)
	}

	// An empty map is omitted entirely, not emitted as "meta":{}.
	b2 := New(64)
	b2.BeginObject()
	b2.AddStringField("stream_id", "s")
	b2.AddNestedStringMapField("meta", nil)
	b2.EndObject()
	m := decode(t, b2)
	if _, present := m["meta"]; present {
		t.Fatal("empty nested map must be omitted")
	}
}

func TestBuilderDefaultCapacity(t *testing.T) {
	for _, capacity := range []int{0, -5} {
		b := New(capacity)
		b.BeginObject()
		b.AddStringField("k", "v")
		b.EndObject()
		m := decode(t, b)
		if m["k"] != "v" {
			t.Fatalf("capacity %d: k = %v, want v", capacity, m["k"])
		}
	}
}
