package config

import "fmt"

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if err := validateApp(c); err != nil {
		return err
	}
	if err := validateTopology(c); err != nil {
		return err
	}
	if err := validateRedis(c); err != nil {
		return err
	}
	if err := validateMQTT(c); err != nil {
		return err
	}
	if err := validateHealth(c); err != nil {
		return err
	}
	if err := validateCircuitBreaker(c); err != nil {
		return err
	}
	return nil
}

// --- App ---

func validateApp(c *Config) error {
	if c.App.Name == "" {
		return fmt.Errorf("app name cannot be empty")
	}
	if !isValidLogLevel(c.App.LogLevel) {
		return fmt.Errorf("invalid log level: %s", c.App.LogLevel)
	}
	if !isValidLogFormat(c.App.LogFormat) {
		return fmt.Errorf("invalid log format: %s", c.App.LogFormat)
	}
	if c.App.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "json", "text":
		return true
	default:
		return false
	}
}

// --- Topology (spec.md §6's "topology.*" keys) ---

func validateTopology(c *Config) error {
	if c.Topology.MaxSpoutPending < 0 {
		return fmt.Errorf("topology.max.spout.pending must be non-negative (0 = unbounded)")
	}
	if c.Topology.ProducerBatchSize < 1 {
		return fmt.Errorf("topology.producer.batch.size must be at least 1")
	}
	if !isValidWaitStrategy(c.Topology.SpoutWaitStrategy) {
		return fmt.Errorf("invalid topology.spout.wait.strategy: %s", c.Topology.SpoutWaitStrategy)
	}
	if !isValidWaitStrategy(c.Topology.BackPressureWaitStrategy) {
		return fmt.Errorf("invalid topology.backpressure.wait.strategy: %s", c.Topology.BackPressureWaitStrategy)
	}
	if c.Topology.MessageTimeoutSecs <= 0 {
		return fmt.Errorf("topology.message.timeout.secs must be positive")
	}
	if c.Topology.NumBuckets < 1 {
		return fmt.Errorf("rotating expiry map bucket count must be at least 1")
	}
	if c.Topology.DrainCadence < 1 {
		return fmt.Errorf("drain cadence must be at least 1")
	}
	if c.Topology.InactiveSleep <= 0 {
		return fmt.Errorf("inactive sleep duration must be positive")
	}
	if !isPowerOfTwo(c.Topology.QueueCapacity) {
		return fmt.Errorf("queue capacity must be a power of 2")
	}
	return nil
}

func isValidWaitStrategy(id string) bool {
	switch id {
	case "progressive-park", "constant-sleep", "noop":
		return true
	default:
		return false
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// --- Redis ---

func validateRedis(c *Config) error {
	if len(c.Redis.Addresses) == 0 {
		return fmt.Errorf("at least one redis address is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis db must be non-negative")
	}
	if c.Redis.StreamPrefix == "" {
		return fmt.Errorf("redis stream prefix cannot be empty")
	}
	if c.Redis.MaxRetries < 0 {
		return fmt.Errorf("redis max retries must be non-negative")
	}
	if c.Redis.PoolSize <= 0 {
		return fmt.Errorf("redis pool size must be positive")
	}
	return nil
}

// --- MQTT ---

func validateMQTT(c *Config) error {
	if len(c.MQTT.Brokers) == 0 {
		return fmt.Errorf("at least one mqtt broker is required")
	}
	if c.MQTT.ClientID == "" {
		return fmt.Errorf("mqtt client id cannot be empty")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1, or 2")
	}
	if c.MQTT.Topic == "" {
		return fmt.Errorf("mqtt metrics topic cannot be empty")
	}
	return nil
}

// --- Health ---

func validateHealth(c *Config) error {
	if !c.Health.Enabled {
		return nil
	}
	if c.Health.Port <= 0 || c.Health.Port > 65535 {
		return fmt.Errorf("health port must be between 1 and 65535")
	}
	return nil
}

// --- Circuit Breaker ---

func validateCircuitBreaker(c *Config) error {
	if !c.CircuitBreaker.Enabled {
		return nil
	}
	if c.CircuitBreaker.ErrorThreshold <= 0 || c.CircuitBreaker.ErrorThreshold > 100 {
		return fmt.Errorf("circuit breaker error threshold must be between 0 and 100")
	}
	if c.CircuitBreaker.SuccessThreshold <= 0 {
		return fmt.Errorf("circuit breaker success threshold must be positive")
	}
	if c.CircuitBreaker.MaxConcurrentCalls <= 0 {
		return fmt.Errorf("circuit breaker max concurrent calls must be positive")
	}
	if c.CircuitBreaker.RequestVolumeThreshold <= 0 {
		return fmt.Errorf("circuit breaker request volume threshold must be positive")
	}
	return nil
}
