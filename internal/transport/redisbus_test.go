package transport

import (
	"errors"
	"testing"
)

func TestStreamForBuildsPrefixedKey(t *testing.T) {
	b := &RedisBus{cfg: RedisBusConfig{StreamPrefix: "executor:task:"}}
	if got := b.streamFor(7); got != "executor:task:7" {
		t.Fatalf("streamFor(7) = %q, want executor:task:7", got)
	}
}

func TestIsTransientRedisError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("dial tcp: i/o timeout"), true},
		{errors.New("dial tcp: connect: connection refused"), true},
		{errors.New("unexpected EOF"), true},
		{errors.New("LOADING Redis is loading the dataset in memory"), true},
		{errors.New("WRONGTYPE Operation against a key"), false},
	}
	for _, c := range cases {
		if got := isTransientRedisError(c.err); got != c.want {
			t.Fatalf("isTransientRedisError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
