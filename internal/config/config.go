package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pipeline configuration.
type Config struct {
	ModelsDir    string         `yaml:"models_dir"`
	DatabasePath string         `yaml:"database_path"`
	Engine       EngineConfig   `yaml:"engine"`
	Download     DownloadConfig `yaml:"download"`
	Jobs         JobsConfig     `yaml:"jobs"`
	LogLevel     string         `yaml:"log_level"`
}

// EngineConfig holds inference engine settings.
type EngineConfig struct {
	// CloudAPIKey enables the cloud engine when non-empty.
	CloudAPIKey string `yaml:"cloud_api_key"`
	// FallbackLanguage is used when language identification fails or the
	// transcript is empty.
	FallbackLanguage string `yaml:"fallback_language"`
	// MinMemoryMB is the total-memory floor for the native tiny model.
	MinMemoryMB uint64 `yaml:"min_memory_mb"`
	// WhisperBin is the whisper.cpp CLI executable name or path.
	WhisperBin string `yaml:"whisper_bin"`
	// FFmpegBin is the ffmpeg executable used for compressed audio containers.
	FFmpegBin string `yaml:"ffmpeg_bin"`
	// FFprobeBin is the ffprobe executable used to read clip durations.
	FFprobeBin string `yaml:"ffprobe_bin"`
}

// DownloadConfig holds model download policy.
type DownloadConfig struct {
	// MinFreeStorageMB is the free-storage floor required before any
	// transfer starts, independent of the artifact's own size.
	MinFreeStorageMB uint64        `yaml:"min_free_storage_mb"`
	MaxAttempts      int           `yaml:"max_attempts"`
	Timeout          time.Duration `yaml:"timeout"`
}

// JobsConfig holds background worker settings.
type JobsConfig struct {
	Workers int `yaml:"workers"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "medivoice")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultModelsDir returns the default model artifact directory.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "medivoice", "models")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		ModelsDir:    DefaultModelsDir(),
		DatabasePath: filepath.Join(home, ".local", "share", "medivoice", "medivoice.db"),
		Engine: EngineConfig{
			FallbackLanguage: "en",
			MinMemoryMB:      1900,
			WhisperBin:       "whisper-cli",
			FFmpegBin:        "ffmpeg",
			FFprobeBin:       "ffprobe",
		},
		Download: DownloadConfig{
			MinFreeStorageMB: 100,
			MaxAttempts:      3,
			Timeout:          5 * time.Minute,
		},
		Jobs: JobsConfig{
			Workers: 2,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.ModelsDir = expandTilde(cfg.ModelsDir)
	cfg.DatabasePath = expandTilde(cfg.DatabasePath)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.ModelsDir == "" {
		return fmt.Errorf("models_dir must not be empty")
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}

	if c.Engine.FallbackLanguage == "" {
		return fmt.Errorf("engine.fallback_language must not be empty")
	}

	if c.Engine.MinMemoryMB == 0 {
		return fmt.Errorf("engine.min_memory_mb must be > 0")
	}

	if c.Download.MaxAttempts < 1 {
		return fmt.Errorf("download.max_attempts must be >= 1")
	}

	if c.Download.Timeout <= 0 {
		return fmt.Errorf("download.timeout must be > 0")
	}

	if c.Jobs.Workers < 1 {
		return fmt.Errorf("jobs.workers must be >= 1")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
