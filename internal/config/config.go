package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DatabaseURL string

	UploadDir    string
	LogDir       string
	ModelPath    string
	MetadataPath string

	MaxUploadBytes int64
	Debug          bool
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvInt64(k string, def int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "True", "yes":
		return true
	}
	return false
}

func Load() *Config {
	// Missing .env is fine, environment variables still apply.
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    getEnv("DATABASE_URL", "neuroscan.db"),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		LogDir:         getEnv("LOG_DIR", "logs"),
		ModelPath:      getEnv("MODEL_PATH", filepath.Join("model", "alzheimer_model.onnx")),
		MetadataPath:   getEnv("MODEL_METADATA_PATH", filepath.Join("model", "metadata.json")),
		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 5<<20),
		Debug:          getEnvBool("DEBUG", false),
	}
}

// InitDirs creates the directories the service writes to.
func (c *Config) InitDirs() error {
	for _, dir := range []string{c.UploadDir, c.LogDir, filepath.Dir(c.ModelPath)} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
