package config

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

type Config struct {
	// Backend selects where archived objects are looked up: "local" or "s3".
	Backend    string
	ArchiveDir string

	ApiURL     string
	AccessKey  string
	SecretKey  string
	BucketName string
	Region     string
	// S3Prefix is prepended to every object name to form the object key.
	S3Prefix string

	Workers       int
	MaxBatches    int
	EntryCapacity int
	MaxBatchBytes int64
	ImportRate    float64
	VerifyMarker  bool
	MetricsFile   string

	LogFile      string
	LogLevel     string
	LogFormat    string
	LogMaxSizeMB int
	LogMaxFiles  int
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found, using environment variables only")
	}

	config := &Config{
		Backend:    strings.ToLower(getEnv("HSM_BACKEND", BackendLocal)),
		ArchiveDir: getEnv("HSM_ARCHIVE_DIR", ""),

		ApiURL:     getEnv("API_URL", ""),
		AccessKey:  getEnv("ACCESS_KEY", ""),
		SecretKey:  getEnv("SECRET_KEY", ""),
		BucketName: getEnv("BUCKET_NAME", ""),
		Region:     getEnv("REGION", ""),
		S3Prefix:   getEnv("HSM_S3_PREFIX", ""),

		VerifyMarker: getEnv("HSM_VERIFY_MARKER", "false") == "true",
		MetricsFile:  getEnv("HSM_METRICS_FILE", ""),

		LogFile:   getEnv("HSM_LOG_FILE", ""),
		LogLevel:  getEnv("HSM_LOG_LEVEL", "info"),
		LogFormat: getEnv("HSM_LOG_FORMAT", "text"),
	}

	var err error
	if config.Workers, err = getEnvInt("HSM_WORKERS", runtime.NumCPU()); err != nil {
		return nil, err
	}
	if config.MaxBatches, err = getEnvInt("HSM_MAX_BATCHES", 256); err != nil {
		return nil, err
	}
	if config.EntryCapacity, err = getEnvInt("HSM_ENTRY_CAPACITY", 4096); err != nil {
		return nil, err
	}
	if config.LogMaxSizeMB, err = getEnvInt("HSM_LOG_MAX_SIZE_MB", 100); err != nil {
		return nil, err
	}
	if config.LogMaxFiles, err = getEnvInt("HSM_LOG_MAX_FILES", 5); err != nil {
		return nil, err
	}

	maxBytes, err := getEnvInt("HSM_MAX_BATCH_BYTES", 1<<30)
	if err != nil {
		return nil, err
	}
	config.MaxBatchBytes = int64(maxBytes)

	if v := getEnv("HSM_IMPORT_RATE", ""); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid HSM_IMPORT_RATE %q: %w", v, err)
		}
		config.ImportRate = rate
	}

	return config, nil
}

// Validate checks that the selected backend has everything it needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.ArchiveDir == "" {
			return fmt.Errorf("HSM_ARCHIVE_DIR is required for the %s backend", BackendLocal)
		}
	case BackendS3:
		if c.BucketName == "" {
			return fmt.Errorf("BUCKET_NAME is required for the %s backend", BackendS3)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	if c.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0")
	}
	if c.MaxBatches < 0 {
		return fmt.Errorf("max batches must not be negative")
	}
	if c.EntryCapacity <= 0 {
		return fmt.Errorf("entry capacity must be greater than 0")
	}
	if c.ImportRate < 0 {
		return fmt.Errorf("import rate must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}
