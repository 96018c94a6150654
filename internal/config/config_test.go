package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Port != "8000" {
		t.Errorf("Expected default port 8000, got %s", cfg.Port)
	}
	if cfg.DataDir != "data" {
		t.Errorf("Expected default data dir, got %s", cfg.DataDir)
	}
	if cfg.MaxUploadMB != 10 {
		t.Errorf("Expected 10MB upload limit, got %d", cfg.MaxUploadMB)
	}
	if cfg.MaxFilesPerSession != 50 {
		t.Errorf("Expected 50 files per session, got %d", cfg.MaxFilesPerSession)
	}
	if cfg.TargetHeight != 842 {
		t.Errorf("Expected target height 842, got %d", cfg.TargetHeight)
	}
	if cfg.MaxUploadBytes() != 10*1024*1024 {
		t.Errorf("Expected 10485760 bytes, got %d", cfg.MaxUploadBytes())
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.yaml")
	content := "port: \"9000\"\ndata_dir: /tmp/notes\nmax_upload_mb: 5\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Expected port 9000, got %s", cfg.Port)
	}
	if cfg.DataDir != "/tmp/notes" {
		t.Errorf("Expected data dir /tmp/notes, got %s", cfg.DataDir)
	}
	if cfg.MaxUploadMB != 5 {
		t.Errorf("Expected 5MB upload limit, got %d", cfg.MaxUploadMB)
	}
	// Unset keys keep defaults.
	if cfg.GeminiModel != "gemini-2.0-flash-exp" {
		t.Errorf("Expected default model, got %s", cfg.GeminiModel)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Expected an error for a missing config file")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NOTES_PORT", "3000")
	t.Setenv("NOTES_DATA_DIR", "/srv/notes")
	t.Setenv("GEMINI_MODEL", "gemini-1.5-pro")
	t.Setenv("NOTES_MAX_UPLOAD_MB", "20")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Port != "3000" {
		t.Errorf("Expected port 3000, got %s", cfg.Port)
	}
	if cfg.DataDir != "/srv/notes" {
		t.Errorf("Expected data dir /srv/notes, got %s", cfg.DataDir)
	}
	if cfg.GeminiModel != "gemini-1.5-pro" {
		t.Errorf("Expected model override, got %s", cfg.GeminiModel)
	}
	if cfg.MaxUploadMB != 20 {
		t.Errorf("Expected 20MB upload limit, got %d", cfg.MaxUploadMB)
	}
	if cfg.GeminiAPIKey != "test-key" {
		t.Errorf("Expected API key from environment, got %q", cfg.GeminiAPIKey)
	}
}

func TestLoadInvalidUploadLimit(t *testing.T) {
	t.Setenv("NOTES_MAX_UPLOAD_MB", "lots")
	if _, err := Load(""); err == nil {
		t.Fatal("Expected an error for a non-numeric upload limit")
	}
}

func TestSessionDir(t *testing.T) {
	cfg := &Config{DataDir: "data"}
	got := cfg.SessionDir("abc123")
	want := filepath.Join("data", "sessions", "abc123")
	if got != want {
		t.Errorf("SessionDir() = %s, want %s", got, want)
	}
}

func TestAllowedExtension(t *testing.T) {
	tests := []struct {
		ext      string
		expected bool
	}{
		{".jpg", true},
		{".jpeg", true},
		{".png", true},
		{".gif", false},
		{".pdf", false},
		{".JPG", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := AllowedExtension(tt.ext); got != tt.expected {
			t.Errorf("AllowedExtension(%q) = %v, want %v", tt.ext, got, tt.expected)
		}
	}
}
