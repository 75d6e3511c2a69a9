// Package config loads the single configuration object memex's three
// binaries share (spec §6.4): capture interval, record directory,
// vector-index endpoint/collection, embedding dimension, log level, and
// the tool-service endpoint, plus the ambient telemetry/embedding
// settings the core needs to actually run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"
)

// TelemetryConfig controls optional OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// EmbeddingConfig describes the external embedding HTTP endpoint.
type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url"`
	Path      string `yaml:"path"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	APIHeader string `yaml:"api_header"`
	Timeout   int    `yaml:"timeout_seconds"`
}

// OCRConfig describes the external OCR HTTP endpoint used by the real
// capture daemon to extract text from a screenshot (spec §1: OCR is an
// external collaborator, supplied over HTTP like the embedding model).
type OCRConfig struct {
	BaseURL   string `yaml:"base_url"`
	Path      string `yaml:"path"`
	APIKey    string `yaml:"api_key"`
	APIHeader string `yaml:"api_header"`
	Timeout   int    `yaml:"timeout_seconds"`
}

// VectorConfig selects and configures the Vector Index (B) adapter.
type VectorConfig struct {
	// Backend is one of "qdrant", "chromem", or "memory".
	Backend    string `yaml:"backend"`
	Endpoint   string `yaml:"endpoint"`
	Collection string `yaml:"collection"`
	Metric     string `yaml:"metric"`
	Dimension  int    `yaml:"dimension"`
	// DataDir is where the chromem backend persists its collection.
	DataDir string `yaml:"data_dir"`
}

// Config is the single configuration object of spec §6.4.
type Config struct {
	CaptureIntervalSeconds int    `yaml:"capture_interval_seconds"`
	RecordDir              string `yaml:"record_dir"`
	ToolServiceEndpoint    string `yaml:"tool_service_endpoint"`
	LogLevel               string `yaml:"log_level"`
	LogPath                string `yaml:"log_path"`

	Vector    VectorConfig    `yaml:"vector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	OCR       OCRConfig       `yaml:"ocr"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// CaptureInterval returns the configured capture interval as a Duration.
func (c Config) CaptureInterval() time.Duration {
	return time.Duration(c.CaptureIntervalSeconds) * time.Second
}

// Load reads path (if present) as YAML, then layers environment variable
// overrides on top (after loading a local .env via godotenv, non-fatal if
// absent), then applies defaults, printing a notice when
// capture_interval_seconds, record_dir or vector.backend falls back to
// its default; the other defaults are applied without one. No other environment inputs alter behavior.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			pterm.Warning.Printfln("config file %s not found, using defaults/env", path)
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("MEMEX_CAPTURE_INTERVAL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CaptureIntervalSeconds = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MEMEX_RECORD_DIR")); v != "" {
		cfg.RecordDir = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMEX_TOOL_SERVICE_ENDPOINT")); v != "" {
		cfg.ToolServiceEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMEX_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMEX_LOG_PATH")); v != "" {
		cfg.LogPath = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMEX_VECTOR_BACKEND")); v != "" {
		cfg.Vector.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMEX_VECTOR_ENDPOINT")); v != "" {
		cfg.Vector.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMEX_VECTOR_COLLECTION")); v != "" {
		cfg.Vector.Collection = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMEX_VECTOR_DIMENSION")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vector.Dimension = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MEMEX_EMBEDDING_BASE_URL")); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMEX_EMBEDDING_API_KEY")); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMEX_OCR_BASE_URL")); v != "" {
		cfg.OCR.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMEX_OCR_API_KEY")); v != "" {
		cfg.OCR.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMEX_OTLP_ENDPOINT")); v != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Endpoint = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.CaptureIntervalSeconds <= 0 {
		cfg.CaptureIntervalSeconds = 60
		pterm.Info.Println("capture_interval_seconds not set, defaulting to 60")
	}
	if cfg.RecordDir == "" {
		home, _ := os.UserHomeDir()
		cfg.RecordDir = filepath.Join(home, ".memex", "records")
		pterm.Warning.Printfln("record_dir not set, defaulting to %s", cfg.RecordDir)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "memory"
		pterm.Warning.Println("vector.backend not set, defaulting to in-process memory index (not durable)")
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "memex_captures"
	}
	if cfg.Vector.Metric == "" {
		cfg.Vector.Metric = "cosine"
	}
	if cfg.Vector.Dimension <= 0 {
		cfg.Vector.Dimension = 256
	}
	if cfg.Vector.DataDir == "" {
		home, _ := os.UserHomeDir()
		cfg.Vector.DataDir = filepath.Join(home, ".memex", "vectors")
	}
	if cfg.Embedding.Path == "" {
		cfg.Embedding.Path = "/v1/embeddings"
	}
	if cfg.Embedding.APIHeader == "" {
		cfg.Embedding.APIHeader = "Authorization"
	}
	if cfg.Embedding.Timeout <= 0 {
		cfg.Embedding.Timeout = 30
	}
	if cfg.OCR.Path == "" {
		cfg.OCR.Path = "/v1/ocr"
	}
	if cfg.OCR.APIHeader == "" {
		cfg.OCR.APIHeader = "Authorization"
	}
	if cfg.OCR.Timeout <= 0 {
		cfg.OCR.Timeout = 30
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "memex"
	}
	if cfg.ToolServiceEndpoint == "" {
		cfg.ToolServiceEndpoint = "stdio"
	}
	pterm.Success.Println("configuration loaded")
}
