package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	CatalogBackend string `envconfig:"CATALOG_BACKEND" default:"tmdb"`

	TMDBBaseURL         string `envconfig:"TMDB_BASE_URL" default:"https://api.themoviedb.org"`
	TMDBReadAccessToken string `envconfig:"TMDB_READ_ACCESS_TOKEN"`
	OriginURL           string `envconfig:"ORIGIN_URL"`

	PutioToken string `envconfig:"PUTIO_TOKEN"`

	DownloadDir       string        `envconfig:"DOWNLOAD_DIR" required:"true"`
	MaxRetries        int           `envconfig:"MAX_RETRIES" default:"3"`
	BaseBackoff       time.Duration `envconfig:"BASE_BACKOFF" default:"1s"`
	MaxChunkSize      int64         `envconfig:"MAX_CHUNK_SIZE" default:"1048576"`
	MaxParallel       int           `envconfig:"MAX_PARALLEL" default:"5"`
	TransferRetention time.Duration `envconfig:"TRANSFER_RETENTION" default:"1h"`
	KeepDownloadedFor time.Duration `envconfig:"KEEP_DOWNLOADED_FOR" default:"168h"`
	CleanupInterval   time.Duration `envconfig:"CLEANUP_INTERVAL" default:"10m"`
	DBPath            string        `envconfig:"DB_PATH" default:"artifacts.db"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"INFO"`

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:8080"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"0s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}

	Telemetry struct {
		Enabled      bool   `split_words:"true" default:"true"`
		ServiceName  string `split_words:"true" default:"streamvault"`
		OTLPEndpoint string `envconfig:"TELEMETRY_OTLP_ENDPOINT"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
