// Package config
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Address        string
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string

	StreamURL       string
	ReconnectDelay  time.Duration
	UnknownChannels string
	DefaultPID      string

	ProbePIDs     []string
	ProbeInterval time.Duration
}

const (
	UnknownChannelsCreate = "create"
	UnknownChannelsDrop   = "drop"
)

func Load() *Config {
	godotenv.Load()

	return &Config{
		Address:        getEnv("HTTP_ADDR", ":3000"),
		AllowedOrigins: getList("ALLOWED_ORIGINS"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),

		StreamURL:       getEnv("PROCWATCH_WS_URL", "ws://localhost:8765"),
		ReconnectDelay:  getDuration("PROCWATCH_RECONNECT_DELAY", 5*time.Second),
		UnknownChannels: getUnknownChannels(),
		DefaultPID:      getEnv("PROCWATCH_DEFAULT_PID", "840"),

		ProbePIDs:     getList("PROBE_PIDS"),
		ProbeInterval: getDuration("PROBE_INTERVAL", time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}

	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getUnknownChannels() string {
	switch strings.ToLower(os.Getenv("PROCWATCH_UNKNOWN_CHANNELS")) {
	case UnknownChannelsDrop:
		return UnknownChannelsDrop
	default:
		return UnknownChannelsCreate
	}
}
