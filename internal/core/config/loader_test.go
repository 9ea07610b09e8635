package config

import (
	"os"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoad_EnvSubstitution(t *testing.T) {
	os.Setenv("TEST_GITLAB_TOKEN", "glpat-secret")
	defer os.Unsetenv("TEST_GITLAB_TOKEN")

	path := writeTempConfig(t, `
sources:
  gitlab:
    url: https://gitlab.example.com
    token: ${TEST_GITLAB_TOKEN}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Sources.GitLab == nil {
		t.Fatal("gitlab source not parsed")
	}
	if cfg.Sources.GitLab.Token != "glpat-secret" {
		t.Errorf("Token = %q, want glpat-secret", cfg.Sources.GitLab.Token)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeTempConfig(t, `
sources:
  github:
    token: ghp_x
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Fetch.Concurrency != 5 {
		t.Errorf("Concurrency = %d, want 5", cfg.Fetch.Concurrency)
	}
	if cfg.Fetch.Retry.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Fetch.Retry.MaxAttempts)
	}
	if cfg.Fetch.Breaker.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cfg.Fetch.Breaker.FailureThreshold)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Sources.GitLab != nil {
		t.Error("gitlab should stay disabled when absent")
	}
}

func TestLoad_ConservativeProfile(t *testing.T) {
	path := writeTempConfig(t, `
fetch:
  conservative: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Fetch.Retry.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.Fetch.Retry.MaxAttempts)
	}
	if cfg.Fetch.Retry.BaseDelay != 2*time.Second {
		t.Errorf("BaseDelay = %v, want 2s", cfg.Fetch.Retry.BaseDelay)
	}
}

func TestLoad_ExplicitOverridesBeatDefaults(t *testing.T) {
	path := writeTempConfig(t, `
fetch:
  concurrency: 10
  retry:
    max_attempts: 7
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Fetch.Concurrency != 10 {
		t.Errorf("Concurrency = %d, want 10", cfg.Fetch.Concurrency)
	}
	if cfg.Fetch.Retry.MaxAttempts != 7 {
		t.Errorf("MaxAttempts = %d, want 7", cfg.Fetch.Retry.MaxAttempts)
	}
}

func TestLoad_JitterIndependentOfMultiplier(t *testing.T) {
	path := writeTempConfig(t, `
fetch:
  retry:
    multiplier: 3.0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	policy := cfg.Fetch.Retry.Policy()
	if policy.Multiplier != 3.0 {
		t.Errorf("Multiplier = %v, want 3.0", policy.Multiplier)
	}
	if !policy.Jitter {
		t.Error("jitter defaulted off when multiplier set explicitly")
	}
}

func TestLoad_ExplicitJitterFalseSurvives(t *testing.T) {
	path := writeTempConfig(t, `
fetch:
  retry:
    multiplier: 2.0
    jitter: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Fetch.Retry.Policy().Jitter {
		t.Error("explicit jitter: false was overridden by defaults")
	}
}
