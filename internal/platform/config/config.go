package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	HealthPort  int    `env:"HTTP_PORT" envDefault:"8080"`

	// Scan orchestration
	ScanInterval        time.Duration `env:"SCAN_INTERVAL" envDefault:"6h"`
	CompetitionTopK     int           `env:"COMPETITION_TOP_K" envDefault:"20"`
	CompetitionCacheTTL time.Duration `env:"COMPETITION_CACHE_TTL" envDefault:"24h"`

	// Redis competition cache (disabled when empty)
	RedisAddr string `env:"REDIS_ADDR"`

	// Reddit
	RedditUserAgent string        `env:"REDDIT_USER_AGENT" envDefault:"nicheradar/1.0"`
	RedditRPS       float64       `env:"REDDIT_RPS" envDefault:"1"`
	RedditTimeout   time.Duration `env:"REDDIT_TIMEOUT" envDefault:"30s"`

	// Hacker News
	HNMinScore int           `env:"HN_MIN_SCORE" envDefault:"50"`
	HNLimit    int           `env:"HN_LIMIT" envDefault:"30"`
	HNRPS      float64       `env:"HN_RPS" envDefault:"5"`
	HNTimeout  time.Duration `env:"HN_TIMEOUT" envDefault:"30s"`

	// Google Trends
	TrendsRPS     float64       `env:"TRENDS_RPS" envDefault:"0.5"`
	TrendsTimeout time.Duration `env:"TRENDS_TIMEOUT" envDefault:"30s"`

	// YouTube competition checks (disabled when empty)
	YouTubeAPIKey  string        `env:"YOUTUBE_API_KEY"`
	YouTubeRPS     float64       `env:"YOUTUBE_RPS" envDefault:"2"`
	YouTubeTimeout time.Duration `env:"YOUTUBE_TIMEOUT" envDefault:"30s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	return cfg, nil
}
