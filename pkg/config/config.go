// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigFile names the variable pointing at an optional YAML config file.
const EnvConfigFile = "TRANSIT_CONFIG_FILE"

const (
	envListenAddr             = "TRANSIT_LISTEN_ADDR"
	envBusAPIKey              = "BUS_API_KEY"
	envBusBaseURL             = "CTA_BASE_URL"
	envMetraAPIKey            = "METRA_API_KEY"
	envMetraAPISecret         = "METRA_API_SECRET"
	envMetraBaseURL           = "METRA_BASE_URL"
	envAllowedOrigin          = "TRANSIT_ALLOWED_ORIGIN"
	envRequestTimeout         = "TRANSIT_REQUEST_TIMEOUT"
	envLogLevel               = "TRANSIT_LOG_LEVEL"
	envServerReadTimeout      = "TRANSIT_SERVER_READ_TIMEOUT"
	envServerWriteTimeout     = "TRANSIT_SERVER_WRITE_TIMEOUT"
	envServerIdleTimeout      = "TRANSIT_SERVER_IDLE_TIMEOUT"
	envGracefulShutdown       = "TRANSIT_GRACEFUL_SHUTDOWN"
	defaultListenAddr         = "127.0.0.1:8000"
	defaultBusBaseURL         = "http://www.ctabustracker.com/bustime/api/v2"
	defaultMetraBaseURL       = "https://gtfsapi.metrarail.com/gtfs"
	defaultAllowedOrigin      = "http://localhost:5173"
	defaultRequestTimeout     = 15 * time.Second
	defaultLogLevel           = "info"
	defaultServerReadTimeout  = 30 * time.Second
	defaultServerWriteTimeout = 30 * time.Second
	defaultServerIdleTimeout  = 120 * time.Second
	defaultGracefulShutdown   = 10 * time.Second
)

// DotEnvFiles lists the dotenv files consulted by Load. Missing files are ignored.
var DotEnvFiles = []string{".env"}

// Config captures runtime settings for the proxy. It is built once at start and
// shared read-only by every handler.
type Config struct {
	ListenAddr              string `validate:"required"`
	BusBaseURL              *url.URL
	BusAPIKey               string
	MetraBaseURL            *url.URL
	MetraAPIKey             string
	MetraAPISecret          string
	AllowedOrigin           string        `validate:"omitempty,url"`
	RequestTimeout          time.Duration `validate:"gte=0"`
	LogLevel                string        `validate:"oneof=trace debug info warn error fatal panic disabled"`
	ServerReadTimeout       time.Duration `validate:"gte=0"`
	ServerWriteTimeout      time.Duration `validate:"gte=0"`
	ServerIdleTimeout       time.Duration `validate:"gte=0"`
	GracefulShutdownTimeout time.Duration `validate:"gte=0"`
}

// MetraConfigured reports whether both halves of the Metra credential are set.
func (c Config) MetraConfigured() bool {
	return c.MetraAPIKey != "" && c.MetraAPISecret != ""
}

// fileConfig mirrors Config for the optional YAML file. Durations are kept as
// strings so they can be written the same way as the environment variables.
type fileConfig struct {
	ListenAddr     string `yaml:"listenAddr"`
	AllowedOrigin  string `yaml:"allowedOrigin"`
	LogLevel       string `yaml:"logLevel"`
	RequestTimeout string `yaml:"requestTimeout"`
	Bus            struct {
		BaseURL string `yaml:"baseURL"`
		APIKey  string `yaml:"apiKey"`
	} `yaml:"bus"`
	Metra struct {
		BaseURL   string `yaml:"baseURL"`
		APIKey    string `yaml:"apiKey"`
		APISecret string `yaml:"apiSecret"`
	} `yaml:"metra"`
	Server struct {
		ReadTimeout      string `yaml:"readTimeout"`
		WriteTimeout     string `yaml:"writeTimeout"`
		IdleTimeout      string `yaml:"idleTimeout"`
		GracefulShutdown string `yaml:"gracefulShutdown"`
	} `yaml:"server"`
}

// Load reads configuration from .env, an optional YAML file and environment
// variables, in increasing order of precedence, and validates the result.
//
// BUS_API_KEY is deliberately not required: an unset key is forwarded as-is
// and rejected by the upstream.
func Load() (Config, error) {
	if err := loadDotEnv(DotEnvFiles...); err != nil {
		return Config{}, err
	}

	var file fileConfig
	if path := strings.TrimSpace(os.Getenv(EnvConfigFile)); path != "" {
		var err error
		file, err = readFile(path)
		if err != nil {
			return Config{}, err
		}
	}

	busBase, err := parseBaseURL(envBusBaseURL, getString(envBusBaseURL, orDefault(file.Bus.BaseURL, defaultBusBaseURL)))
	if err != nil {
		return Config{}, err
	}
	metraBase, err := parseBaseURL(envMetraBaseURL, getString(envMetraBaseURL, orDefault(file.Metra.BaseURL, defaultMetraBaseURL)))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:              getString(envListenAddr, orDefault(file.ListenAddr, defaultListenAddr)),
		BusBaseURL:              busBase,
		BusAPIKey:               getString(envBusAPIKey, file.Bus.APIKey),
		MetraBaseURL:            metraBase,
		MetraAPIKey:             getString(envMetraAPIKey, file.Metra.APIKey),
		MetraAPISecret:          getString(envMetraAPISecret, file.Metra.APISecret),
		AllowedOrigin:           getString(envAllowedOrigin, orDefault(file.AllowedOrigin, defaultAllowedOrigin)),
		RequestTimeout:          getDuration(envRequestTimeout, fileDuration(file.RequestTimeout, defaultRequestTimeout)),
		LogLevel:                strings.ToLower(getString(envLogLevel, orDefault(file.LogLevel, defaultLogLevel))),
		ServerReadTimeout:       getDuration(envServerReadTimeout, fileDuration(file.Server.ReadTimeout, defaultServerReadTimeout)),
		ServerWriteTimeout:      getDuration(envServerWriteTimeout, fileDuration(file.Server.WriteTimeout, defaultServerWriteTimeout)),
		ServerIdleTimeout:       getDuration(envServerIdleTimeout, fileDuration(file.Server.IdleTimeout, defaultServerIdleTimeout)),
		GracefulShutdownTimeout: getDuration(envGracefulShutdown, fileDuration(file.Server.GracefulShutdown, defaultGracefulShutdown)),
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks field constraints on an assembled Config.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// loadDotEnv populates the process environment from dotenv files without
// overriding variables that are already set.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

func parseBaseURL(name, raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSuffix(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("%s must be absolute (scheme://host)", name)
	}
	return u, nil
}

func orDefault(val, fallback string) string {
	if v := strings.TrimSpace(val); v != "" {
		return v
	}
	return fallback
}

func fileDuration(val string, fallback time.Duration) time.Duration {
	val = strings.TrimSpace(val)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getString(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
