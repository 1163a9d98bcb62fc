package config

import (
	"flag"
	"strconv"
	"strings"
	"time"
)

// RegisterFlags registers all command-line flags. Safe to call more than
// once (tests may call Load repeatedly): flags are only defined the first
// time.
func RegisterFlags() {
	if flag.Lookup("topology-max-spout-pending") != nil {
		return
	}

	flag.Int("topology-max-spout-pending", -1, "topology.max.spout.pending: 0 disables throttling")
	flag.Int("topology-producer-batch-size", -1, "topology.producer.batch.size")
	flag.String("topology-spout-wait-strategy", "", "topology.spout.wait.strategy (progressive-park|constant-sleep|noop)")
	flag.String("topology-backpressure-wait-strategy", "", "topology.backpressure.wait.strategy (progressive-park|constant-sleep|noop)")
	flag.Bool("topology-debug", false, "topology.debug")
	flag.Int("topology-message-timeout-secs", -1, "topology.message.timeout.secs")
	flag.Int("topology-num-buckets", -1, "rotating expiry map bucket count")
	flag.Int("topology-drain-cadence", -1, "receive-queue drain cadence, in iterations")
	flag.String("topology-inactive-sleep", "", "sleep duration between inactive-state iterations")
	flag.Int("topology-queue-capacity", -1, "per-executor bounded queue capacity (rounded up to a power of two)")
	flag.Bool("topology-pin-executor-thread", false, "lock the executor goroutine's OS thread and pin it to a CPU")

	flag.String("redis-addr", "", "comma-separated Redis addresses")
	flag.String("redis-password", "", "Redis password")
	flag.Int("redis-db", -1, "Redis database index")
	flag.String("redis-stream-prefix", "", "prefix prepended to a destination task id to build its Redis stream key")
	flag.Int("redis-max-retries", -1, "Redis transient-error retry attempts")

	flag.String("mqtt-brokers", "", "comma-separated MQTT broker addresses")
	flag.String("mqtt-client-id", "", "MQTT client id")
	flag.Int("mqtt-qos", -1, "MQTT publish QoS (0, 1, or 2)")
	flag.String("mqtt-metrics-topic", "", "MQTT topic metrics snapshots are published on")

	flag.String("log-level", "", "log level (trace|debug|info|warn|error)")
	flag.String("log-format", "", "log format (text|json)")

	flag.Bool("health-enabled", true, "enable the health/readiness HTTP server")
	flag.Int("health-port", -1, "health server port")

	flag.Bool("circuit-breaker-enabled", true, "enable the circuit breaker around remote flushes")
}

// ApplyFlags applies command-line flag values over cfg, parsing flags first
// if they have not already been parsed.
func ApplyFlags(cfg *Config) {
	if !flag.Parsed() {
		flag.Parse()
	}

	applyTopologyFlags(cfg)
	applyRedisFlags(cfg)
	applyMQTTFlags(cfg)
	applyAppFlags(cfg)
	applyHealthFlags(cfg)
	applyCircuitBreakerFlags(cfg)
}

func applyTopologyFlags(cfg *Config) {
	if v := flagInt("topology-max-spout-pending"); v >= 0 {
		cfg.Topology.MaxSpoutPending = v
	}
	if v := flagInt("topology-producer-batch-size"); v > 0 {
		cfg.Topology.ProducerBatchSize = v
	}
	if v := flagString("topology-spout-wait-strategy"); v != "" {
		cfg.Topology.SpoutWaitStrategy = v
	}
	if v := flagString("topology-backpressure-wait-strategy"); v != "" {
		cfg.Topology.BackPressureWaitStrategy = v
	}
	if v := flagBool("topology-debug"); v {
		cfg.Topology.Debug = v
	}
	if v := flagInt("topology-message-timeout-secs"); v > 0 {
		cfg.Topology.MessageTimeoutSecs = v
	}
	if v := flagInt("topology-num-buckets"); v > 0 {
		cfg.Topology.NumBuckets = v
	}
	if v := flagInt("topology-drain-cadence"); v > 0 {
		cfg.Topology.DrainCadence = v
	}
	if v := flagDuration("topology-inactive-sleep"); v > 0 {
		cfg.Topology.InactiveSleep = v
	}
	if v := flagInt("topology-queue-capacity"); v > 0 {
		cfg.Topology.QueueCapacity = nextPowerOf2(v)
	}
	if v := flagBool("topology-pin-executor-thread"); v {
		cfg.Topology.PinExecutorThread = v
	}
}

func applyRedisFlags(cfg *Config) {
	if v := flagStringSlice("redis-addr"); len(v) > 0 {
		cfg.Redis.Addresses = v
	}
	if v := flagString("redis-password"); v != "" {
		cfg.Redis.Password = v
	}
	if v := flagInt("redis-db"); v >= 0 {
		cfg.Redis.DB = v
	}
	if v := flagString("redis-stream-prefix"); v != "" {
		cfg.Redis.StreamPrefix = v
	}
	if v := flagInt("redis-max-retries"); v >= 0 {
		cfg.Redis.MaxRetries = v
	}
}

func applyMQTTFlags(cfg *Config) {
	if v := flagStringSlice("mqtt-brokers"); len(v) > 0 {
		cfg.MQTT.Brokers = v
	}
	if v := flagString("mqtt-client-id"); v != "" {
		cfg.MQTT.ClientID = v
	}
	if v := flagInt("mqtt-qos"); v >= 0 {
		cfg.MQTT.QoS = byte(v)
	}
	if v := flagString("mqtt-metrics-topic"); v != "" {
		cfg.MQTT.Topic = v
	}
}

func applyAppFlags(cfg *Config) {
	if v := flagString("log-level"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := flagString("log-format"); v != "" {
		cfg.App.LogFormat = v
	}
}

func applyHealthFlags(cfg *Config) {
	if flagWasSet("health-enabled") {
		cfg.Health.Enabled = flagBool("health-enabled")
	}
	if v := flagInt("health-port"); v > 0 {
		cfg.Health.Port = v
	}
}

func applyCircuitBreakerFlags(cfg *Config) {
	if flagWasSet("circuit-breaker-enabled") {
		cfg.CircuitBreaker.Enabled = flagBool("circuit-breaker-enabled")
	}
}

// --- flag-reading helpers: only act on flags that were actually set on the
// command line, leaving env-sourced values alone otherwise. ---

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func flagString(name string) string {
	if !flagWasSet(name) {
		return ""
	}
	if f := flag.Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}

func flagInt(name string) int {
	if !flagWasSet(name) {
		return -1
	}
	if f := flag.Lookup(name); f != nil {
		if n, err := strconv.Atoi(f.Value.String()); err == nil {
			return n
		}
	}
	return -1
}

func flagBool(name string) bool {
	if !flagWasSet(name) {
		return false
	}
	if f := flag.Lookup(name); f != nil {
		return f.Value.String() == "true"
	}
	return false
}

func flagDuration(name string) time.Duration {
	if !flagWasSet(name) {
		return 0
	}
	if f := flag.Lookup(name); f != nil {
		if d, err := time.ParseDuration(f.Value.String()); err == nil {
			return d
		}
	}
	return 0
}

func flagStringSlice(name string) []string {
	if !flagWasSet(name) {
		return nil
	}
	if f := flag.Lookup(name); f == nil {
		return nil
	} else if v := f.Value.String(); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}
