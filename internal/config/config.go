package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

type Config struct {
	Port          string
	MQTTBrokerURL string
	LogLevel      string
	Postgres      DBConfig
	RedisAddr     string
	RedisPassword string

	// DevDir and SysfsDir point the verifier at the kernel's input
	// interfaces; overriding them is mainly for containers and tests.
	DevDir   string
	SysfsDir string

	// Oneshot runs a single scan+verify cycle and exits with the verdict,
	// skipping every backend.
	Oneshot bool
	// ScanInterval re-runs scan+verify periodically; zero disables it.
	ScanInterval time.Duration
	// HistoryRetention bounds how long scan and verification history is
	// kept in postgres; zero disables pruning.
	HistoryRetention time.Duration
}

type DBConfig struct {
	User     string
	Password string
	DBName   string
	Host     string
	Port     string
}

func Load() *Config {
	cfg := &Config{
		Port:             getEnv("VERIFIER_PORT", "8094"),
		MQTTBrokerURL:    getEnv("MQTT_BROKER_URL", "mqtt://mosquitto:1883"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DevDir:           getEnv("VERIFIER_DEV_DIR", "/dev/input"),
		SysfsDir:         getEnv("VERIFIER_SYSFS_DIR", "/sys/class/input"),
		Oneshot:          parseBool(os.Getenv("VERIFIER_ONESHOT")),
		ScanInterval:     parseDuration(getEnv("VERIFIER_SCAN_INTERVAL", "0")),
		HistoryRetention: parseDuration(getEnv("VERIFIER_HISTORY_RETENTION", "720h")),
		Postgres: DBConfig{
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   getEnv("POSTGRES_DB", "driververifier"),
			Host:     getEnv("POSTGRES_HOST", "postgres"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
		},
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}
	slog.Info("driver-verifier config loaded", "port", cfg.Port, "mqtt", cfg.MQTTBrokerURL, "dev_dir", cfg.DevDir, "oneshot", cfg.Oneshot)
	return cfg
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func parseBool(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func parseDuration(val string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil || d < 0 {
		return 0
	}
	return d
}
