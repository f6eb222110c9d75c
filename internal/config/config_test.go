package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_URL", "UPLOAD_DIR", "MAX_UPLOAD_BYTES", "DEBUG"} {
		os.Unsetenv(k)
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("default port %s", cfg.Port)
	}
	if cfg.DatabaseURL != "neuroscan.db" {
		t.Fatalf("default database %s", cfg.DatabaseURL)
	}
	if cfg.MaxUploadBytes != 5<<20 {
		t.Fatalf("default upload cap %d", cfg.MaxUploadBytes)
	}
	if cfg.Debug {
		t.Fatal("debug should default off")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("DEBUG", "true")
	cfg := Load()
	if cfg.Port != "9999" || cfg.MaxUploadBytes != 1024 || !cfg.Debug {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestInitDirs(t *testing.T) {
	base := t.TempDir()
	cfg := &Config{
		UploadDir: filepath.Join(base, "uploads"),
		LogDir:    filepath.Join(base, "logs"),
		ModelPath: filepath.Join(base, "model", "m.onnx"),
	}
	if err := cfg.InitDirs(); err != nil {
		t.Fatalf("init dirs: %v", err)
	}
	for _, dir := range []string{cfg.UploadDir, cfg.LogDir, filepath.Dir(cfg.ModelPath)} {
		if st, err := os.Stat(dir); err != nil || !st.IsDir() {
			t.Fatalf("missing dir %s: %v", dir, err)
		}
	}
}
