// Package config loads service settings from environment variables, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	WorkerCount      int
	QueueSize        int
	DatasetRowCap    int
	ProductCacheSize int
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is merged in first and is
// entirely optional.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDurationVar("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	workerCount, err := parsePositiveIntVar("WORKER_COUNT", 4)
	if err != nil {
		return nil, err
	}
	queueSize, err := parsePositiveIntVar("QUEUE_SIZE", 64)
	if err != nil {
		return nil, err
	}
	rowCap, err := parsePositiveIntVar("DATASET_ROW_CAP", 10000)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveIntVar("PRODUCT_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled: envOrDefault("KAFKA_ENABLED", "false") == "true",
		KafkaBrokers: parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "measurement-rows"),
		KafkaGroupID: envOrDefault("KAFKA_GROUP_ID", "ocean-map-engine"),

		WorkerCount:      workerCount,
		QueueSize:        queueSize,
		DatasetRowCap:    rowCap,
		ProductCacheSize: cacheSize,
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDurationVar(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parsePositiveIntVar(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}
