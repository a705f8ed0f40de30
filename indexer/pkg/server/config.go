package server

import (
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/malbeclabs/airdrop/indexer/pkg/indexer"
)

const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultRequestTimeout    = 20 * time.Second
	DefaultRateLimit         = rate.Limit(10_000)
)

// VersionInfo contains build-time version information.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

type Config struct {
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	RequestTimeout    time.Duration
	VersionInfo       VersionInfo

	// RateLimit is requests per second across all clients, or per client IP
	// when RateLimitPerIP is set. RateBurst defaults to one second's worth.
	RateLimit      rate.Limit
	RateBurst      int
	RateLimitPerIP bool

	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string

	IndexerConfig indexer.Config
}

func (cfg *Config) Validate() error {
	if cfg.ListenAddr == "" {
		return errors.New("listen addr is required")
	}
	if cfg.RateLimit < 0 || cfg.RateBurst < 0 {
		return errors.New("rate limit and burst must not be negative")
	}
	if err := cfg.IndexerConfig.Validate(); err != nil {
		return err
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = max(1, int(cfg.RateLimit))
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return nil
}
