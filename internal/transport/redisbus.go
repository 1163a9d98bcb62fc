// Package transport implements the concrete RemoteSender and MetricsPublisher
// ports the executor core is wired to: a Redis Streams bus carrying
// serialized tuples between executors living in different processes, and an
// MQTT sink publishing METRICS_TICK snapshots for external reporting.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ibs-source/spout-executor/golang/internal/ports"
)

// RedisBusConfig carries the go-redis UniversalClient tuning knobs, named and
// shaped after the teacher's RedisConfig.
type RedisBusConfig struct {
	Addresses    []string
	Username     string
	Password     string
	DB           int
	MasterName   string
	PoolSize     int
	MinIdleConns int

	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PoolTimeout     time.Duration

	// StreamPrefix is prepended to a destination task id to build its Redis
	// stream key, e.g. "executor:task:" + "7" = "executor:task:7".
	StreamPrefix string

	MaxRetries    int
	RetryInterval time.Duration
}

// RedisBus is a ports.RemoteSender backed by Redis Streams XADD, one stream
// per destination task. Grounded on the teacher's internal/redis client:
// same UniversalClient construction and the same transient-error retry loop.
type RedisBus struct {
	client goredis.UniversalClient
	cfg    RedisBusConfig
	logger ports.Logger
}

// NewRedisBus builds a RedisBus.
func NewRedisBus(cfg RedisBusConfig, logger ports.Logger) *RedisBus {
	c := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:           cfg.Addresses,
		Username:        cfg.Username,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		DialTimeout:     cfg.ConnectTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		MasterName:      cfg.MasterName,
	})

	return &RedisBus{
		client: c,
		cfg:    cfg,
		logger: logger.WithFields(ports.Field{Key: "component", Value: "redis-bus"}),
	}
}

// SendRemote XADDs every batch's payloads onto its destination task's stream,
// pipelined per destination, under the transient-error retry policy.
func (b *RedisBus) SendRemote(ctx context.Context, batches map[int64][][]byte) error {
	for destTaskID, payloads := range batches {
		if len(payloads) == 0 {
			continue
		}
		stream := b.streamFor(destTaskID)
		if err := b.executeWithRetry(ctx, "SendRemote", func(ctx context.Context) error {
			pipe := b.client.Pipeline()
			for _, payload := range payloads {
				pipe.XAdd(ctx, &goredis.XAddArgs{
					Stream: stream,
					Values: map[string]interface{}{"payload": payload},
				})
			}
			_, err := pipe.Exec(ctx)
			return err
		}); err != nil {
			return fmt.Errorf("redis bus: send to task %d: %w", destTaskID, err)
		}
	}
	return nil
}

func (b *RedisBus) streamFor(destTaskID int64) string {
	return fmt.Sprintf("%s%d", b.cfg.StreamPrefix, destTaskID)
}

// Close closes the underlying Redis client.
func (b *RedisBus) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

func (b *RedisBus) executeWithRetry(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	var attempt int
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		if !isTransientRedisError(err) || attempt >= b.cfg.MaxRetries {
			return err
		}
		attempt++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.cfg.RetryInterval):
		}
	}
}

func isTransientRedisError(err error) bool {
	if err == nil {
		return false
	}
	es := err.Error()
	return strings.Contains(es, "LOADING") ||
		strings.Contains(es, "connect: connection refused") ||
		strings.Contains(es, "i/o timeout") ||
		strings.Contains(es, "EOF") ||
		strings.Contains(es, "read: connection reset")
}
