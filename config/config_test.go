package config

import (
	"os"
	"runtime"
	"testing"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "test_value")

	result := getEnv("TEST_VAR", "default_value")
	if result != "test_value" {
		t.Errorf("getEnv() = %s, want %s", result, "test_value")
	}

	result = getEnv("NON_EXISTENT_VAR", "default_value")
	if result != "default_value" {
		t.Errorf("getEnv() = %s, want %s", result, "default_value")
	}

	t.Setenv("EMPTY_VAR", "")

	result = getEnv("EMPTY_VAR", "default_value")
	if result != "default_value" {
		t.Errorf("getEnv() = %s, want %s", result, "default_value")
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")

	v, err := getEnvInt("TEST_INT", 1)
	if err != nil {
		t.Fatalf("getEnvInt() error = %v", err)
	}
	if v != 42 {
		t.Errorf("getEnvInt() = %d, want %d", v, 42)
	}

	t.Setenv("TEST_INT", "forty-two")
	if _, err := getEnvInt("TEST_INT", 1); err == nil {
		t.Errorf("getEnvInt() with invalid value should return error")
	}

	v, err = getEnvInt("NON_EXISTENT_INT", 7)
	if err != nil || v != 7 {
		t.Errorf("getEnvInt() = %d, %v, want %d, nil", v, err, 7)
	}
}

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t, "HSM_BACKEND", "HSM_ARCHIVE_DIR", "HSM_WORKERS", "HSM_MAX_BATCHES",
		"HSM_ENTRY_CAPACITY", "HSM_MAX_BATCH_BYTES", "HSM_IMPORT_RATE", "HSM_VERIFY_MARKER",
		"BUCKET_NAME", "REGION", "API_URL", "ACCESS_KEY", "SECRET_KEY")

	config, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Backend != BackendLocal {
		t.Errorf("config.Backend = %s, want %s", config.Backend, BackendLocal)
	}
	if config.Workers != runtime.NumCPU() {
		t.Errorf("config.Workers = %d, want %d", config.Workers, runtime.NumCPU())
	}
	if config.MaxBatches != 256 {
		t.Errorf("config.MaxBatches = %d, want %d", config.MaxBatches, 256)
	}
	if config.EntryCapacity != 4096 {
		t.Errorf("config.EntryCapacity = %d, want %d", config.EntryCapacity, 4096)
	}
	if config.VerifyMarker {
		t.Errorf("config.VerifyMarker = true, want false")
	}

	t.Setenv("HSM_BACKEND", "S3")
	t.Setenv("BUCKET_NAME", "archive")
	t.Setenv("HSM_WORKERS", "3")
	t.Setenv("HSM_IMPORT_RATE", "12.5")
	t.Setenv("HSM_VERIFY_MARKER", "true")

	config, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Backend != BackendS3 {
		t.Errorf("config.Backend = %s, want %s", config.Backend, BackendS3)
	}
	if config.BucketName != "archive" {
		t.Errorf("config.BucketName = %s, want %s", config.BucketName, "archive")
	}
	if config.Workers != 3 {
		t.Errorf("config.Workers = %d, want %d", config.Workers, 3)
	}
	if config.ImportRate != 12.5 {
		t.Errorf("config.ImportRate = %v, want %v", config.ImportRate, 12.5)
	}
	if !config.VerifyMarker {
		t.Errorf("config.VerifyMarker = false, want true")
	}

	t.Setenv("HSM_MAX_BATCHES", "lots")
	if _, err := Load(); err == nil {
		t.Errorf("Load() with invalid HSM_MAX_BATCHES should return error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{"Local with archive dir", Config{Backend: BackendLocal, ArchiveDir: "/archive", Workers: 1, EntryCapacity: 16}, false},
		{"Local without archive dir", Config{Backend: BackendLocal, Workers: 1, EntryCapacity: 16}, true},
		{"S3 with bucket", Config{Backend: BackendS3, BucketName: "b", Workers: 1, EntryCapacity: 16}, false},
		{"S3 without bucket", Config{Backend: BackendS3, Workers: 1, EntryCapacity: 16}, true},
		{"Unknown backend", Config{Backend: "tape", Workers: 1, EntryCapacity: 16}, true},
		{"Zero workers", Config{Backend: BackendLocal, ArchiveDir: "/a", EntryCapacity: 16}, true},
		{"Negative max batches", Config{Backend: BackendLocal, ArchiveDir: "/a", Workers: 1, MaxBatches: -1, EntryCapacity: 16}, true},
		{"Negative rate", Config{Backend: BackendLocal, ArchiveDir: "/a", Workers: 1, EntryCapacity: 16, ImportRate: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.expectError {
				t.Errorf("Validate() error = %v, expectError %v", err, tt.expectError)
			}
		})
	}
}
