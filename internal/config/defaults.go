package config

import (
	"time"
)

// GetDefaults returns a Config with all default values.
func GetDefaults() *Config {
	return &Config{
		App:            defaultApp(),
		Topology:       defaultTopology(),
		Redis:          defaultRedis(),
		MQTT:           defaultMQTT(),
		Health:         defaultHealth(),
		CircuitBreaker: defaultCircuitBreaker(),
	}
}

func defaultApp() AppConfig {
	return AppConfig{
		Name:            "spout-executor",
		Environment:     "production",
		LogLevel:        "info",
		LogFormat:       "text",
		ShutdownTimeout: 30 * time.Second,
	}
}

func defaultTopology() TopologyConfig {
	return TopologyConfig{
		MaxSpoutPending:          1000,
		ProducerBatchSize:        128,
		SpoutWaitStrategy:        "progressive-park",
		BackPressureWaitStrategy: "progressive-park",
		Debug:                    false,
		MessageTimeoutSecs:       30,
		NumBuckets:               2,
		DrainCadence:             8,
		InactiveSleep:            100 * time.Millisecond,
		QueueCapacity:            nextPowerOf2(16384),
		PinExecutorThread:        false,
		CPUAffinity:              []int{},
	}
}

func defaultRedis() RedisConfig {
	return RedisConfig{
		Addresses:       []string{"localhost:6379"},
		Password:        "",
		DB:              0,
		PoolSize:        8,
		MinIdleConns:    1,
		ConnectTimeout:  5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		PoolTimeout:     5 * time.Second,
		StreamPrefix:    "executor:task:",
		MaxRetries:      5,
		RetryInterval:   1 * time.Second,
	}
}

func defaultMQTT() MQTTConfig {
	return MQTTConfig{
		Brokers:           []string{"tcp://localhost:1883"},
		ClientID:          generateClientID(),
		QoS:               1,
		Topic:             "spout-executor/metrics",
		CleanSession:      true,
		ConnectTimeout:    10 * time.Second,
		WriteTimeout:      5 * time.Second,
		MaxReconnectDelay: 2 * time.Minute,
	}
}

func defaultHealth() HealthConfig {
	return HealthConfig{
		Enabled:      true,
		Port:         8080,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

func defaultCircuitBreaker() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:                true,
		ErrorThreshold:         50.0,
		SuccessThreshold:       5,
		Timeout:                30 * time.Second,
		MaxConcurrentCalls:     100,
		RequestVolumeThreshold: 20,
	}
}
