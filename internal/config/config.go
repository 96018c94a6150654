package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds runtime settings for the notes server. Values come from
// defaults, then an optional YAML file, then environment variables.
type Config struct {
	Port        string `yaml:"port"`
	DataDir     string `yaml:"data_dir"`
	GeminiModel string `yaml:"gemini_model"`

	// MaxUploadMB caps a single uploaded image.
	MaxUploadMB int `yaml:"max_upload_mb"`
	// MaxFilesPerSession caps images accepted in one upload.
	MaxFilesPerSession int `yaml:"max_files_per_session"`

	// TargetHeight is the pixel height of enhanced output images
	// (A4 at 100 DPI by default).
	TargetHeight int `yaml:"target_height"`

	GeminiAPIKey string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:               "8000",
		DataDir:            "data",
		GeminiModel:        "gemini-2.0-flash-exp",
		MaxUploadMB:        10,
		MaxFilesPerSession: 50,
		TargetHeight:       842,
	}
}

// Load builds a Config from defaults, the YAML file at path (if non-empty),
// and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if v := os.Getenv("NOTES_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("NOTES_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.GeminiModel = v
	}
	if v := os.Getenv("NOTES_MAX_UPLOAD_MB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTES_MAX_UPLOAD_MB %q: %w", v, err)
		}
		cfg.MaxUploadMB = n
	}
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	return cfg, nil
}

// MaxUploadBytes returns the per-file upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// DBPath returns the sqlite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "notes.db")
}

// SessionDir returns the directory holding a session's artifacts.
func (c *Config) SessionDir(sessionID string) string {
	return filepath.Join(c.DataDir, "sessions", sessionID)
}

// EnsureDirs creates the data directory tree.
func (c *Config) EnsureDirs() error {
	return os.MkdirAll(filepath.Join(c.DataDir, "sessions"), 0755)
}

// AllowedExtension reports whether ext (including the dot) is an accepted
// upload format.
func AllowedExtension(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
