// Package serializer provides the ports.TupleSerializer implementations the
// transfer layer uses to encode a domain.Tuple exactly once before staging it
// into a remote batch.
package serializer

import (
	"fmt"
	"strconv"

	"github.com/ibs-source/spout-executor/golang/internal/domain"
	"github.com/ibs-source/spout-executor/golang/pkg/jsonfast"
	"github.com/ibs-source/spout-executor/golang/pkg/jsonx"
)

// wireTuple is the JSON shape JSONSerializer writes for a domain.Tuple:
// StreamID, TaskID, RootID and Values round-trip through Redis unchanged so
// a remote consumer can rebuild an AddressedTuple without any side-channel
// schema. FastSerializer writes the same stream_id/task_id/root_id keys but
// one vN key per value instead of a values array.
type wireTuple struct {
	StreamID string        `json:"stream_id"`
	TaskID   int64         `json:"task_id"`
	RootID   uint64        `json:"root_id"`
	Values   []interface{} `json:"values"`
}

// JSONSerializer implements ports.TupleSerializer over encoding/json via
// pkg/jsonx, for tuples whose Values hold arbitrary or nested types.
type JSONSerializer struct{}

// NewJSONSerializer returns a JSONSerializer.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

// Serialize encodes t as a JSON object.
func (s *JSONSerializer) Serialize(t domain.Tuple) ([]byte, error) {
	out, err := jsonx.Marshal(wireTuple{
		StreamID: t.StreamID,
		TaskID:   t.TaskID,
		RootID:   t.RootID,
		Values:   t.Values,
	})
	if err != nil {
		return nil, fmt.Errorf("serializer: encode tuple: %w", err)
	}
	return out, nil
}

// FastSerializer implements ports.TupleSerializer with pkg/jsonfast's
// allocation-aware builder, for the common case where every value is a
// string, int, int64, uint64, float64 or bool. It falls back to
// JSONSerializer for any tuple carrying a value of another shape, since
// jsonfast has no general encoder for arbitrary types.
type FastSerializer struct {
	fallback *JSONSerializer
}

// NewFastSerializer returns a FastSerializer.
func NewFastSerializer() *FastSerializer {
	return &FastSerializer{fallback: NewJSONSerializer()}
}

// Serialize encodes t using the jsonfast builder when every value is a
// recognized scalar type, otherwise delegates to the JSON fallback.
func (s *FastSerializer) Serialize(t domain.Tuple) ([]byte, error) {
	b := jsonfast.New(128 + 16*len(t.Values))
	b.BeginObject()
	b.AddStringField("stream_id", t.StreamID)
	b.AddIntField("task_id", int(t.TaskID))
	// root ids use the full uint64 range; an int cast would flip the high
	// half negative on the wire.
	b.AddRawJSONField("root_id", strconv.AppendUint(nil, t.RootID, 10))

	for i, v := range t.Values {
		name := fmt.Sprintf("v%d", i)
		switch tv := v.(type) {
		case string:
			b.AddStringField(name, tv)
		case int:
			b.AddIntField(name, tv)
		case int64:
			b.AddIntField(name, int(tv))
		case uint64:
			b.AddRawJSONField(name, strconv.AppendUint(nil, tv, 10))
		case float64:
			b.AddRawJSONField(name, strconv.AppendFloat(nil, tv, 'g', -1, 64))
		case bool:
			raw := "false"
			if tv {
				raw = "true"
			}
			b.AddRawJSONField(name, []byte(raw))
		default:
			return s.fallback.Serialize(t)
		}
	}
	b.EndObject()

	out := make([]byte, len(b.Bytes()))
	copy(out, b.Bytes())
	return out, nil
}
