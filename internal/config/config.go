// Package config loads, merges, and validates application configuration from defaults, environment, and flags.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all executor configuration.
type Config struct {
	App            AppConfig
	Topology       TopologyConfig
	Redis          RedisConfig
	MQTT           MQTTConfig
	Health         HealthConfig
	CircuitBreaker CircuitBreakerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name            string
	Environment     string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// TopologyConfig carries the spec's "topology.*" configuration keys (§6)
// plus the executor's own operational knobs.
type TopologyConfig struct {
	MaxSpoutPending          int // topology.max.spout.pending; 0 = unbounded
	ProducerBatchSize        int // topology.producer.batch.size
	SpoutWaitStrategy        string // topology.spout.wait.strategy
	BackPressureWaitStrategy string // topology.backpressure.wait.strategy
	Debug                    bool   // topology.debug
	MessageTimeoutSecs       int    // topology.message.timeout.secs; controls tick period
	NumBuckets               int    // rotating expiry map bucket count (C3)
	DrainCadence             int    // receive-queue drain cadence, in iterations
	InactiveSleep            time.Duration
	QueueCapacity            int // per-executor bounded queue capacity; must be a power of two
	PinExecutorThread        bool
	CPUAffinity              []int
}

// RedisConfig holds the Redis Streams transport configuration backing
// internal/transport.RedisBus (the spec's opaque sendRemote sink).
type RedisConfig struct {
	Addresses       []string
	Username        string
	Password        string
	DB              int
	MasterName      string
	PoolSize        int
	MinIdleConns    int
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PoolTimeout     time.Duration
	StreamPrefix    string
	MaxRetries      int
	RetryInterval   time.Duration
}

// MQTTConfig holds the MQTT configuration backing
// internal/transport.MetricsSink, the out-of-scope metrics reporting
// collaborator given one concrete implementation.
type MQTTConfig struct {
	Brokers           []string
	ClientID          string
	QoS               byte
	Topic             string
	CleanSession      bool
	ConnectTimeout    time.Duration
	WriteTimeout      time.Duration
	MaxReconnectDelay time.Duration
}

// HealthConfig holds health check server configuration.
type HealthConfig struct {
	Enabled      bool
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CircuitBreakerConfig holds the configuration for the breaker wrapping
// ExecutorTransfer.flushRemotes.
type CircuitBreakerConfig struct {
	Enabled                bool
	ErrorThreshold         float64
	SuccessThreshold       int
	Timeout                time.Duration
	MaxConcurrentCalls     int
	RequestVolumeThreshold int
}

// Load loads configuration from defaults, then environment variables, then
// command-line flags, in that precedence order, and validates the result.
func Load() (*Config, error) {
	RegisterFlags()

	cfg := GetDefaults()

	LoadFromEnvironment(cfg)

	ApplyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func generateClientID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("spout-executor-%s-%d", hostname, os.Getpid())
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
