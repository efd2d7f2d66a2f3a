package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendFile     = "file"
	BackendMemory   = "memory"
)

// Config captures runtime settings for the agent service.
type Config struct {
	Addr string

	StoreBackend string
	DatabaseURL  string
	FileStoreDir string

	TelemetryURL string

	JWTSecret    string
	AuthDisabled bool

	StreamerEnabled    bool
	KafkaBrokers       []string
	KafkaTopic         string
	S3Bucket           string
	S3Prefix           string
	StreamBatchSize    int
	StreamPollInterval time.Duration

	MaxConfigDepth     int
	ReflectionMinBatch int
	RequestTimeout     time.Duration
}

const (
	defaultAddr           = ":8071"
	defaultFileStoreDir   = "./decision-records"
	defaultKafkaTopic     = "decision-records"
	defaultBatchSize      = 10
	defaultPollInterval   = 3 * time.Second
	defaultMaxDepth       = 32
	defaultMinBatch       = 3
	defaultRequestTimeout = 30 * time.Second
)

// Load reads environment variables and returns a Config.
func Load() (Config, error) {
	cfg := Config{
		Addr:               getEnv("COPILOT_AGENTS_ADDR", defaultAddr),
		StoreBackend:       strings.ToLower(getEnv("COPILOT_AGENTS_STORE_BACKEND", "")),
		DatabaseURL:        firstNonEmpty(os.Getenv("COPILOT_AGENTS_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		FileStoreDir:       getEnv("COPILOT_AGENTS_FILE_STORE_DIR", defaultFileStoreDir),
		TelemetryURL:       os.Getenv("COPILOT_AGENTS_TELEMETRY_URL"),
		JWTSecret:          os.Getenv("COPILOT_AGENTS_JWT_SECRET"),
		AuthDisabled:       getBool("COPILOT_AGENTS_AUTH_DISABLED", false),
		StreamerEnabled:    getBool("COPILOT_AGENTS_STREAMER_ENABLED", false),
		KafkaBrokers:       splitList(os.Getenv("COPILOT_AGENTS_KAFKA_BROKERS")),
		KafkaTopic:         getEnv("COPILOT_AGENTS_KAFKA_TOPIC", defaultKafkaTopic),
		S3Bucket:           os.Getenv("COPILOT_AGENTS_S3_BUCKET"),
		S3Prefix:           getEnv("COPILOT_AGENTS_S3_PREFIX", "copilot-agents"),
		StreamBatchSize:    getInt("COPILOT_AGENTS_STREAM_BATCH_SIZE", defaultBatchSize),
		StreamPollInterval: getDuration("COPILOT_AGENTS_STREAM_POLL_INTERVAL", defaultPollInterval),
		MaxConfigDepth:     getInt("COPILOT_AGENTS_MAX_CONFIG_DEPTH", defaultMaxDepth),
		ReflectionMinBatch: getInt("COPILOT_AGENTS_REFLECTION_MIN_BATCH", defaultMinBatch),
		RequestTimeout:     getDuration("COPILOT_AGENTS_REQUEST_TIMEOUT", defaultRequestTimeout),
	}

	if cfg.StoreBackend == "" {
		cfg.StoreBackend = BackendMemory
		if cfg.DatabaseURL != "" {
			cfg.StoreBackend = BackendPostgres
		}
	}

	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL or COPILOT_AGENTS_DATABASE_URL is required for the postgres backend")
		}
	case BackendFile, BackendMemory:
	default:
		return Config{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if !cfg.AuthDisabled && cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("COPILOT_AGENTS_JWT_SECRET is required unless COPILOT_AGENTS_AUTH_DISABLED=true")
	}

	if cfg.StreamerEnabled {
		if cfg.StoreBackend != BackendPostgres {
			return Config{}, fmt.Errorf("the record streamer requires the postgres backend")
		}
		if len(cfg.KafkaBrokers) == 0 {
			return Config{}, fmt.Errorf("COPILOT_AGENTS_KAFKA_BROKERS is required when the streamer is enabled")
		}
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		ok, err := strconv.ParseBool(v)
		if err == nil {
			return ok
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
