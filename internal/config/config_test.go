package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Set required env vars for all subtests
	cleanup := setEnvs(t, map[string]string{
		"DATABASE_URL": "postgres://localhost/test",
	})
	defer cleanup()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":8080" {
			t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.AcousticPolicy != "volume" {
			t.Errorf("AcousticPolicy = %q, want volume", cfg.AcousticPolicy)
		}
		if cfg.SilenceThreshold != 45 {
			t.Errorf("SilenceThreshold = %v, want 45", cfg.SilenceThreshold)
		}
		if cfg.TranscriptionPollInterval != 3*time.Second {
			t.Errorf("TranscriptionPollInterval = %v, want 3s", cfg.TranscriptionPollInterval)
		}
		if cfg.TranscriptionMaxAttempts != 20 {
			t.Errorf("TranscriptionMaxAttempts = %d, want 20", cfg.TranscriptionMaxAttempts)
		}
		if cfg.TempDir != os.TempDir() {
			t.Errorf("TempDir = %q, want %q", cfg.TempDir, os.TempDir())
		}
		if cfg.MQTTClientID != "speakscore" {
			t.Errorf("MQTTClientID = %q, want speakscore", cfg.MQTTClientID)
		}
		if cfg.DBMaxConns != 16 || cfg.DBMinConns != 2 {
			t.Errorf("DB pool = %d/%d, want 16/2", cfg.DBMaxConns, cfg.DBMinConns)
		}
		if cfg.S3.Enabled() {
			t.Error("S3.Enabled() = true, want false without credentials")
		}
		// 30s fetch + 15s submit + 20 polls of (3s wait + 15s request) + 30s slack
		if cfg.WriteTimeout != 435*time.Second {
			t.Errorf("WriteTimeout = %v, want 7m15s", cfg.WriteTimeout)
		}
		if cfg.WriteTimeout <= cfg.EvaluationBudget() {
			t.Errorf("WriteTimeout %v does not exceed EvaluationBudget %v", cfg.WriteTimeout, cfg.EvaluationBudget())
		}
	})

	t.Run("explicit_write_timeout_and_zero_threshold", func(t *testing.T) {
		restore := setEnvs(t, map[string]string{
			"HTTP_WRITE_TIMEOUT": "90s",
			"SILENCE_THRESHOLD":  "0",
		})
		defer restore()

		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.WriteTimeout != 90*time.Second {
			t.Errorf("WriteTimeout = %v, want 90s", cfg.WriteTimeout)
		}
		if cfg.SilenceThreshold != 0 {
			t.Errorf("SilenceThreshold = %v, want 0", cfg.SilenceThreshold)
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		cfg, err := Load(Overrides{
			EnvFile:        "nonexistent.env",
			HTTPAddr:       ":9090",
			LogLevel:       "debug",
			DatabaseURL:    "postgres://override/db",
			AcousticPolicy: "features",
			TempDir:        "/tmp/speakscore",
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.DatabaseURL != "postgres://override/db" {
			t.Errorf("DatabaseURL = %q, want override", cfg.DatabaseURL)
		}
		if cfg.AcousticPolicy != "features" {
			t.Errorf("AcousticPolicy = %q, want features", cfg.AcousticPolicy)
		}
		if cfg.TempDir != "/tmp/speakscore" {
			t.Errorf("TempDir = %q, want /tmp/speakscore", cfg.TempDir)
		}
	})

	t.Run("env_vars_read", func(t *testing.T) {
		restore := setEnvs(t, map[string]string{
			"SILENCE_THRESHOLD":           "30",
			"TRANSCRIPTION_POLL_INTERVAL": "500ms",
			"S3_ACCESS_KEY":               "key",
			"S3_SECRET_KEY":               "secret",
		})
		defer restore()

		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.DatabaseURL != "postgres://localhost/test" {
			t.Errorf("DatabaseURL = %q, want postgres://localhost/test", cfg.DatabaseURL)
		}
		if cfg.SilenceThreshold != 30 {
			t.Errorf("SilenceThreshold = %v, want 30", cfg.SilenceThreshold)
		}
		if cfg.TranscriptionPollInterval != 500*time.Millisecond {
			t.Errorf("TranscriptionPollInterval = %v, want 500ms", cfg.TranscriptionPollInterval)
		}
		if !cfg.S3.Enabled() {
			t.Error("S3.Enabled() = false, want true")
		}
	})

	t.Run("empty_overrides_use_env", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		// Empty override fields should not overwrite env values
		if cfg.DatabaseURL != "postgres://localhost/test" {
			t.Errorf("DatabaseURL = %q, want env value", cfg.DatabaseURL)
		}
	})
}

func TestLoadMissingRequired(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"DATABASE_URL": "",
	})
	defer cleanup()
	os.Unsetenv("DATABASE_URL")

	_, err := Load(Overrides{EnvFile: "nonexistent.env"})
	if err == nil {
		t.Error("expected error when required env vars are missing")
	}
}

// setEnvs sets environment variables and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	originals := make(map[string]string)
	unset := make([]string, 0)

	for k, v := range envs {
		if orig, ok := os.LookupEnv(k); ok {
			originals[k] = orig
		} else {
			unset = append(unset, k)
		}
		os.Setenv(k, v)
	}

	return func() {
		for k, v := range originals {
			os.Setenv(k, v)
		}
		for _, k := range unset {
			os.Unsetenv(k)
		}
	}
}
