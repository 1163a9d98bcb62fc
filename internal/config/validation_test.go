package config

import "testing"

func TestGetDefaultsAndValidate_Succeeds(t *testing.T) {
	cfg := GetDefaults()
	if cfg == nil {
		t.Fatal("GetDefaults returned nil")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate, got error: %v", err)
	}
}

func TestValidate_AppErrors(t *testing.T) {
	cfg := GetDefaults()
	cfg.App.Name = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty app name")
	}

	cfg = GetDefaults()
	cfg.App.LogLevel = "bad"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid log level")
	}

	cfg = GetDefaults()
	cfg.App.LogFormat = "badfmt"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid log format")
	}

	cfg = GetDefaults()
	cfg.App.ShutdownTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive shutdown timeout")
	}
}

func TestValidate_TopologyErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative max pending", func(c *Config) { c.Topology.MaxSpoutPending = -1 }},
		{"zero batch size", func(c *Config) { c.Topology.ProducerBatchSize = 0 }},
		{"bad spout wait strategy", func(c *Config) { c.Topology.SpoutWaitStrategy = "bogus" }},
		{"bad backpressure wait strategy", func(c *Config) { c.Topology.BackPressureWaitStrategy = "bogus" }},
		{"zero message timeout", func(c *Config) { c.Topology.MessageTimeoutSecs = 0 }},
		{"zero buckets", func(c *Config) { c.Topology.NumBuckets = 0 }},
		{"zero drain cadence", func(c *Config) { c.Topology.DrainCadence = 0 }},
		{"zero inactive sleep", func(c *Config) { c.Topology.InactiveSleep = 0 }},
		{"non power of two capacity", func(c *Config) { c.Topology.QueueCapacity = 100 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := GetDefaults()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestValidate_RedisErrors(t *testing.T) {
	cfg := GetDefaults()
	cfg.Redis.Addresses = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty redis addresses")
	}

	cfg = GetDefaults()
	cfg.Redis.DB = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative redis db")
	}

	cfg = GetDefaults()
	cfg.Redis.StreamPrefix = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty stream prefix")
	}

	cfg = GetDefaults()
	cfg.Redis.PoolSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive pool size")
	}
}

func TestValidate_MQTTErrors(t *testing.T) {
	cfg := GetDefaults()
	cfg.MQTT.Brokers = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty brokers")
	}

	cfg = GetDefaults()
	cfg.MQTT.ClientID = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty client id")
	}

	cfg = GetDefaults()
	cfg.MQTT.QoS = 3
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid qos")
	}

	cfg = GetDefaults()
	cfg.MQTT.Topic = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty metrics topic")
	}
}

func TestValidate_HealthAndCircuitBreaker(t *testing.T) {
	cfg := GetDefaults()
	cfg.Health.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid health port")
	}

	cfg = GetDefaults()
	cfg.Health.Enabled = false
	cfg.Health.Port = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled health should skip port validation, got: %v", err)
	}

	cfg = GetDefaults()
	cfg.CircuitBreaker.ErrorThreshold = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid error threshold")
	}

	cfg = GetDefaults()
	cfg.CircuitBreaker.Enabled = false
	cfg.CircuitBreaker.ErrorThreshold = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled circuit breaker should skip threshold validation, got: %v", err)
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, n := range []int{1, 2, 4, 1024, 65536} {
		if !isPowerOfTwo(n) {
			t.Fatalf("expected %d to be a power of two", n)
		}
	}
	for _, n := range []int{0, -1, 3, 100, 1000} {
		if isPowerOfTwo(n) {
			t.Fatalf("expected %d to not be a power of two", n)
		}
	}
}
