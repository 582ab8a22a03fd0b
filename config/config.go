// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the service. Capture pacing values are
// exposed so operators can shorten delays for kiosk setups without a rebuild.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":3002"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	StorageType      string `env:"STORAGE_TYPE"`
	LocalStoragePath string `env:"LOCAL_STORAGE_PATH" envDefault:"./data"`
	DataSourceName   string `env:"DATA_SOURCE_NAME" envDefault:"framebooth.db"`
	S3BucketName     string `env:"S3_BUCKET_NAME"`

	RemoveBGURL string `env:"REMOVEBG_URL"`

	CaptureCountdownFrom int           `env:"CAPTURE_COUNTDOWN_FROM" envDefault:"3"`
	CaptureTickInterval  time.Duration `env:"CAPTURE_TICK_INTERVAL" envDefault:"1s"`
	CaptureInterShotWait time.Duration `env:"CAPTURE_INTER_SHOT_WAIT" envDefault:"5s"`
	CaptureFrameTimeout  time.Duration `env:"CAPTURE_FRAME_TIMEOUT" envDefault:"4s"`
	CaptureMinimumShots  int           `env:"CAPTURE_MINIMUM_SHOTS" envDefault:"4"`
}

// Load reads a .env file when present, then parses the environment.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); !os.IsNotExist(err) {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}
