package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	LogLevel    string
	LogFormat   string

	// Websocket tuning
	MaxMessageSize    int64
	WriteTimeout      time.Duration
	PongTimeout       time.Duration
	SendBufferSize    int
	MaxRoomsPerClient int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),

		MaxMessageSize:    getEnvInt64("WS_MAX_MESSAGE_SIZE", 64*1024),
		WriteTimeout:      getEnvDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		PongTimeout:       getEnvDuration("WS_PONG_TIMEOUT", 60*time.Second),
		SendBufferSize:    getEnvInt("WS_SEND_BUFFER_SIZE", 256),
		MaxRoomsPerClient: getEnvInt("WS_MAX_ROOMS_PER_CLIENT", 32),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 16 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if cfg.PongTimeout <= cfg.WriteTimeout {
		return nil, fmt.Errorf("WS_PONG_TIMEOUT must be larger than WS_WRITE_TIMEOUT")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
