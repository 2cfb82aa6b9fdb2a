package config

import (
	"os"
	"strconv"
	"time"
)

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type ServerConfig struct {
	ServerAddr    string
	DatabasePath  string
	Redis         *RedisConfig
	AdminUsername string
	AdminPassword string

	SessionTTL       time.Duration
	AgentTokenTTL    time.Duration
	HeartbeatTimeout time.Duration
	SweepInterval    time.Duration

	DispatchMaxRetries        int
	DispatchInitialBackoff    time.Duration
	DispatchMaxBackoff        time.Duration
	DispatchBackoffMultiplier float64
}

type ClientConfig struct {
	APIKey         string
	GatewayURL     string
	RequestTimeout time.Duration
}

// LoadServerConfig reads server config from environment or returns defaults
func LoadServerConfig() (*ServerConfig, error) {
	var redis *RedisConfig
	if host := os.Getenv("REDIS_HOST"); host != "" {
		redis = &RedisConfig{
			Host:     host,
			Port:     envInt("REDIS_PORT", 6379),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		}
	}

	return &ServerConfig{
		ServerAddr:    envOrDefault("SERVER_ADDR", ":8080"),
		DatabasePath:  envOrDefault("DATABASE_PATH", "./data/fleet.db"),
		Redis:         redis,
		AdminUsername: envOrDefault("ADMIN_USER", "admin"),
		AdminPassword: envOrDefault("ADMIN_PASSWORD", "password"),

		SessionTTL:       envSeconds("SESSION_TTL", time.Hour),
		AgentTokenTTL:    envSeconds("AGENT_TOKEN_TTL", 15*time.Minute),
		HeartbeatTimeout: envSeconds("HEARTBEAT_TIMEOUT", 5*time.Minute),
		SweepInterval:    envSeconds("SWEEP_INTERVAL", 30*time.Second),

		DispatchMaxRetries:        envInt("DISPATCH_MAX_RETRIES", 2),
		DispatchInitialBackoff:    envSeconds("DISPATCH_INITIAL_BACKOFF", time.Second),
		DispatchMaxBackoff:        envSeconds("DISPATCH_MAX_BACKOFF", 30*time.Second),
		DispatchBackoffMultiplier: envFloat("DISPATCH_BACKOFF_MULTIPLIER", 2.0),
	}, nil
}

// LoadClientConfig reads client config from environment or returns defaults
func LoadClientConfig() (*ClientConfig, error) {
	return &ClientConfig{
		APIKey:         os.Getenv("API_KEY"),
		GatewayURL:     envOrDefault("GATEWAY_URL", "http://localhost:8080"),
		RequestTimeout: envSeconds("REQUEST_TIMEOUT", 10*time.Second),
	}, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envSeconds(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
