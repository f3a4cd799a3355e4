package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	API       APIConfig
	Storage   StorageConfig
	Wiki      WikiConfig
	Email     EmailConfig
	Logging   LoggingConfig
	Denylist  string
	Partners  string
	Directory string
	Workers   int
}

type APIConfig struct {
	BaseURL string
	Key     string
}

type StorageConfig struct {
	Bucket string
}

type WikiConfig struct {
	APIURL   string
	Username string
	Password string
}

type EmailConfig struct {
	Enabled bool
	APIKey  string
	From    string
	To      []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (Config, error) {
	cfg := Config{
		API: APIConfig{
			BaseURL: getEnv("DPLA_API_URL", "https://api.dp.la/v2"),
			Key:     getEnv("DPLA_API_KEY", ""),
		},
		Storage: StorageConfig{
			Bucket: getEnv("S3_BUCKET", ""),
		},
		Wiki: WikiConfig{
			APIURL:   getEnv("WIKI_API_URL", "https://commons.wikimedia.org/w/api.php"),
			Username: getEnv("WIKI_USERNAME", ""),
			Password: getEnv("WIKI_PASSWORD", ""),
		},
		Email: EmailConfig{
			Enabled: getEnv("EMAIL_ENABLED", "false") == "true",
			APIKey:  getEnv("RESEND_API_KEY", ""),
			From:    getEnv("EMAIL_FROM", ""),
			To:      splitList(getEnv("EMAIL_TO", "")),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Denylist:  getEnv("DENYLIST_PATH", "configs/denylist.txt"),
		Partners:  getEnv("PARTNERS_PATH", "configs/partners.yaml"),
		Directory: getEnv("PROVIDER_DIRECTORY_URL", "https://raw.githubusercontent.com/dpla/ingestion3/master/institutions.json"),
		Workers:   getEnvInt("INGEST_WORKERS", 4),
	}

	if cfg.Storage.Bucket == "" {
		return Config{}, fmt.Errorf("S3_BUCKET is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
