package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFromEnvironment overrides cfg's defaults with any matching environment
// variables.
func LoadFromEnvironment(cfg *Config) {
	applyAppEnv(cfg)
	applyTopologyEnv(cfg)
	applyRedisEnv(cfg)
	applyMQTTEnv(cfg)
	applyHealthEnv(cfg)
	applyCircuitBreakerEnv(cfg)
}

func applyAppEnv(cfg *Config) {
	if v := os.Getenv("APP_NAME"); v != "" {
		cfg.App.Name = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.App.LogFormat = v
	}
	if v := getDurationEnv2("APP_SHUTDOWN_TIMEOUT"); v > 0 {
		cfg.App.ShutdownTimeout = v
	}
}

func applyTopologyEnv(cfg *Config) {
	if v := getIntEnv2("TOPOLOGY_MAX_SPOUT_PENDING"); v >= 0 {
		cfg.Topology.MaxSpoutPending = v
	}
	if v := getIntEnv2("TOPOLOGY_PRODUCER_BATCH_SIZE"); v > 0 {
		cfg.Topology.ProducerBatchSize = v
	}
	if v := os.Getenv("TOPOLOGY_SPOUT_WAIT_STRATEGY"); v != "" {
		cfg.Topology.SpoutWaitStrategy = v
	}
	if v := os.Getenv("TOPOLOGY_BACKPRESSURE_WAIT_STRATEGY"); v != "" {
		cfg.Topology.BackPressureWaitStrategy = v
	}
	if v := os.Getenv("TOPOLOGY_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Topology.Debug = b
		}
	}
	if v := getIntEnv2("TOPOLOGY_MESSAGE_TIMEOUT_SECS"); v > 0 {
		cfg.Topology.MessageTimeoutSecs = v
	}
	if v := getIntEnv2("TOPOLOGY_NUM_BUCKETS"); v > 0 {
		cfg.Topology.NumBuckets = v
	}
	if v := getIntEnv2("TOPOLOGY_DRAIN_CADENCE"); v > 0 {
		cfg.Topology.DrainCadence = v
	}
	if v := getDurationEnv2("TOPOLOGY_INACTIVE_SLEEP"); v > 0 {
		cfg.Topology.InactiveSleep = v
	}
	if v := getIntEnv2("TOPOLOGY_QUEUE_CAPACITY"); v > 0 {
		cfg.Topology.QueueCapacity = nextPowerOf2(v)
	}
	if v := os.Getenv("TOPOLOGY_PIN_EXECUTOR_THREAD"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Topology.PinExecutorThread = b
		}
	}
	if v := getIntSliceEnv2("TOPOLOGY_CPU_AFFINITY"); len(v) > 0 {
		cfg.Topology.CPUAffinity = v
	}
}

func applyRedisEnv(cfg *Config) {
	if v := getStringSliceEnv2("REDIS_ADDRESSES"); len(v) > 0 {
		cfg.Redis.Addresses = v
	}
	if v := os.Getenv("REDIS_USERNAME"); v != "" {
		cfg.Redis.Username = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := getIntEnv2("REDIS_DB"); v >= 0 {
		cfg.Redis.DB = v
	}
	if v := os.Getenv("REDIS_MASTER_NAME"); v != "" {
		cfg.Redis.MasterName = v
	}
	if v := getIntEnv2("REDIS_POOL_SIZE"); v > 0 {
		cfg.Redis.PoolSize = v
	}
	if v := getIntEnv2("REDIS_MIN_IDLE_CONNS"); v > 0 {
		cfg.Redis.MinIdleConns = v
	}
	if v := getDurationEnv2("REDIS_CONNECT_TIMEOUT"); v > 0 {
		cfg.Redis.ConnectTimeout = v
	}
	if v := getDurationEnv2("REDIS_READ_TIMEOUT"); v > 0 {
		cfg.Redis.ReadTimeout = v
	}
	if v := getDurationEnv2("REDIS_WRITE_TIMEOUT"); v > 0 {
		cfg.Redis.WriteTimeout = v
	}
	if v := getDurationEnv2("REDIS_CONN_MAX_LIFETIME"); v > 0 {
		cfg.Redis.ConnMaxLifetime = v
	}
	if v := getDurationEnv2("REDIS_CONN_MAX_IDLE_TIME"); v > 0 {
		cfg.Redis.ConnMaxIdleTime = v
	}
	if v := getDurationEnv2("REDIS_POOL_TIMEOUT"); v > 0 {
		cfg.Redis.PoolTimeout = v
	}
	if v := os.Getenv("REDIS_STREAM_PREFIX"); v != "" {
		cfg.Redis.StreamPrefix = v
	}
	if v := getIntEnv2("REDIS_MAX_RETRIES"); v >= 0 {
		cfg.Redis.MaxRetries = v
	}
	if v := getDurationEnv2("REDIS_RETRY_INTERVAL"); v > 0 {
		cfg.Redis.RetryInterval = v
	}
}

func applyMQTTEnv(cfg *Config) {
	if v := getStringSliceEnv2("MQTT_BROKERS"); len(v) > 0 {
		cfg.MQTT.Brokers = v
	}
	if v := os.Getenv("MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.ClientID = v
	}
	if v := getIntEnv2("MQTT_QOS"); v >= 0 {
		cfg.MQTT.QoS = byte(v)
	}
	if v := os.Getenv("MQTT_METRICS_TOPIC"); v != "" {
		cfg.MQTT.Topic = v
	}
	if v := os.Getenv("MQTT_CLEAN_SESSION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MQTT.CleanSession = b
		}
	}
	if v := getDurationEnv2("MQTT_CONNECT_TIMEOUT"); v > 0 {
		cfg.MQTT.ConnectTimeout = v
	}
	if v := getDurationEnv2("MQTT_WRITE_TIMEOUT"); v > 0 {
		cfg.MQTT.WriteTimeout = v
	}
	if v := getDurationEnv2("MQTT_MAX_RECONNECT_DELAY"); v > 0 {
		cfg.MQTT.MaxReconnectDelay = v
	}
}

func applyHealthEnv(cfg *Config) {
	if v := os.Getenv("HEALTH_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Health.Enabled = b
		}
	}
	if v := getIntEnv2("HEALTH_PORT"); v > 0 {
		cfg.Health.Port = v
	}
	if v := getDurationEnv2("HEALTH_READ_TIMEOUT"); v > 0 {
		cfg.Health.ReadTimeout = v
	}
	if v := getDurationEnv2("HEALTH_WRITE_TIMEOUT"); v > 0 {
		cfg.Health.WriteTimeout = v
	}
}

func applyCircuitBreakerEnv(cfg *Config) {
	if v := os.Getenv("CIRCUIT_BREAKER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CircuitBreaker.Enabled = b
		}
	}
	if v := getFloatEnv2("CIRCUIT_BREAKER_ERROR_THRESHOLD"); v > 0 {
		cfg.CircuitBreaker.ErrorThreshold = v
	}
	if v := getIntEnv2("CIRCUIT_BREAKER_SUCCESS_THRESHOLD"); v > 0 {
		cfg.CircuitBreaker.SuccessThreshold = v
	}
	if v := getDurationEnv2("CIRCUIT_BREAKER_TIMEOUT"); v > 0 {
		cfg.CircuitBreaker.Timeout = v
	}
	if v := getIntEnv2("CIRCUIT_BREAKER_MAX_CONCURRENT"); v > 0 {
		cfg.CircuitBreaker.MaxConcurrentCalls = v
	}
	if v := getIntEnv2("CIRCUIT_BREAKER_REQUEST_VOLUME"); v > 0 {
		cfg.CircuitBreaker.RequestVolumeThreshold = v
	}
}

// --- helpers ---

func getIntEnv2(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

func getFloatEnv2(key string) float64 {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func getDurationEnv2(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func getStringSliceEnv2(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getIntSliceEnv2(key string) []int {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, n)
		}
	}
	return out
}
