// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allEnv = []string{
	EnvConfigFile, envListenAddr, envBusAPIKey, envBusBaseURL, envMetraAPIKey,
	envMetraAPISecret, envMetraBaseURL, envAllowedOrigin, envRequestTimeout, envLogLevel,
	envServerReadTimeout, envServerWriteTimeout, envServerIdleTimeout, envGracefulShutdown,
}

// clearEnv blanks every variable Load consults and points dotenv lookups at an
// empty directory so the developer's environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allEnv {
		t.Setenv(k, "")
	}
	orig := DotEnvFiles
	DotEnvFiles = []string{filepath.Join(t.TempDir(), ".env")}
	t.Cleanup(func() { DotEnvFiles = orig })
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != defaultListenAddr {
		t.Errorf("listen addr: got %q", cfg.ListenAddr)
	}
	if got := cfg.BusBaseURL.String(); got != defaultBusBaseURL {
		t.Errorf("bus base url: got %q", got)
	}
	if got := cfg.MetraBaseURL.String(); got != defaultMetraBaseURL {
		t.Errorf("metra base url: got %q", got)
	}
	if cfg.BusAPIKey != "" {
		t.Errorf("expected empty bus api key, got %q", cfg.BusAPIKey)
	}
	if cfg.AllowedOrigin != defaultAllowedOrigin {
		t.Errorf("allowed origin: got %q", cfg.AllowedOrigin)
	}
	if cfg.RequestTimeout != defaultRequestTimeout {
		t.Errorf("request timeout: got %s", cfg.RequestTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level: got %q", cfg.LogLevel)
	}
	if cfg.MetraConfigured() {
		t.Error("metra should not be configured without credentials")
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(envListenAddr, ":9090")
	t.Setenv(envBusAPIKey, "bus-key")
	t.Setenv(envBusBaseURL, "https://bus.example.com/api/v2/")
	t.Setenv(envMetraAPIKey, "metra-key")
	t.Setenv(envMetraAPISecret, "metra-secret")
	t.Setenv(envRequestTimeout, "3s")
	t.Setenv(envLogLevel, "DEBUG")
	t.Setenv(envAllowedOrigin, "https://app.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("listen addr: got %q", cfg.ListenAddr)
	}
	if cfg.BusAPIKey != "bus-key" {
		t.Errorf("bus api key: got %q", cfg.BusAPIKey)
	}
	if got := cfg.BusBaseURL.String(); got != "https://bus.example.com/api/v2" {
		t.Errorf("trailing slash should be trimmed, got %q", got)
	}
	if !cfg.MetraConfigured() {
		t.Error("expected metra credentials to be configured")
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("request timeout: got %s", cfg.RequestTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level should be lower-cased, got %q", cfg.LogLevel)
	}
	if cfg.AllowedOrigin != "https://app.example.com" {
		t.Errorf("allowed origin: got %q", cfg.AllowedOrigin)
	}
}

func TestLoadInvalidDurationFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv(envRequestTimeout, "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RequestTimeout != defaultRequestTimeout {
		t.Fatalf("expected default timeout, got %s", cfg.RequestTimeout)
	}
}

func TestLoadRejectsRelativeBaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv(envBusBaseURL, "/bustime/api/v2")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for relative base url")
	}
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv(envLogLevel, "chatty")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadYAMLFileWithEnvPrecedence(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "transit.yml")
	content := `
listenAddr: ":7000"
logLevel: warn
requestTimeout: 2s
bus:
  apiKey: file-key
metra:
  apiKey: file-metra
  apiSecret: file-secret
server:
  gracefulShutdown: 1s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvConfigFile, path)
	t.Setenv(envBusAPIKey, "env-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":7000" {
		t.Errorf("listen addr: got %q", cfg.ListenAddr)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log level: got %q", cfg.LogLevel)
	}
	if cfg.RequestTimeout != 2*time.Second {
		t.Errorf("request timeout: got %s", cfg.RequestTimeout)
	}
	if cfg.GracefulShutdownTimeout != time.Second {
		t.Errorf("graceful shutdown: got %s", cfg.GracefulShutdownTimeout)
	}
	if cfg.BusAPIKey != "env-key" {
		t.Errorf("environment should win over file, got %q", cfg.BusAPIKey)
	}
	if cfg.MetraAPIKey != "file-metra" || cfg.MetraAPISecret != "file-secret" {
		t.Errorf("metra credentials from file: got %q/%q", cfg.MetraAPIKey, cfg.MetraAPISecret)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "transit.yml")
	if err := os.WriteFile(path, []byte("invalid: yaml: content: [[["), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvConfigFile, path)

	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "absent.yml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("METRA_API_KEY=from-dotenv\nMETRA_API_SECRET=dotenv-secret\n"), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	DotEnvFiles = []string{path}
	t.Setenv(envMetraAPIKey, "from-env")
	// godotenv only fills unset variables; t.Setenv("") above leaves the
	// secret present but empty, so unset it explicitly.
	if err := os.Unsetenv(envMetraAPISecret); err != nil {
		t.Fatalf("unset: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv(envMetraAPISecret) })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MetraAPIKey != "from-env" {
		t.Errorf("expected environment value to win, got %q", cfg.MetraAPIKey)
	}
	if cfg.MetraAPISecret != "dotenv-secret" {
		t.Errorf("expected dotenv to fill unset value, got %q", cfg.MetraAPISecret)
	}
}
