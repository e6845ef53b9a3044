package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/descilabs/desci-ledger/ledger/pkg/core"
	"github.com/descilabs/desci-ledger/ledger/pkg/store"
)

// VersionInfo contains build-time version information.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

type Config struct {
	Logger     *slog.Logger
	ListenAddr string
	// AllowedOrigins configures CORS for the dashboard frontend.
	AllowedOrigins    []string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	VersionInfo       VersionInfo

	Ledger *core.Ledger
	// Store is optional; when nil the ledger runs in memory only.
	Store *store.Store

	// RequestsPerMinute bounds per-IP request rates; 0 disables limiting.
	RequestsPerMinute int
	RateBurst         int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ListenAddr == "" {
		return errors.New("listen addr is required")
	}
	if cfg.Ledger == nil {
		return errors.New("ledger is required")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.RequestsPerMinute > 0 && cfg.RateBurst <= 0 {
		cfg.RateBurst = 20
	}
	return nil
}
