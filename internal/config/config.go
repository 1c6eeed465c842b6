// Package config gathers every TALESPIN_* environment variable into a
// single record built once at boot, per the "explicit config struct"
// design note: no process-wide mutable configuration singletons.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// YesNo parses the y/n environment variable convention used throughout
// this configuration surface.
type YesNo bool

func (y *YesNo) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "", "n", "no", "false":
		*y = false
	case "y", "yes", "true":
		*y = true
	default:
		return fmt.Errorf("invalid y/n value %q", string(b))
	}
	return nil
}

// DirList parses a newline-separated list of filesystem paths, expanding a
// leading ~ to the user's home directory.
type DirList []string

func (d *DirList) UnmarshalText(b []byte) error {
	var out DirList
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, expandHome(line))
	}
	*d = out
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Config is the fully resolved boot-time configuration for the process,
// covering the image pipeline (A/B), the room engine defaults (D), and the
// HTTP front (G).
type Config struct {
	// Image loader (component A). This repository ships no built-in card
	// art of its own, so cmd/talespin never sets LoadOptions.BuiltinDir and
	// DisableBuiltinImages is currently a reserved no-op: a deployment that
	// bundles its own art directory can wire BuiltinDir to it and this
	// toggle starts having an effect. At least one of TALESPIN_EXTRA_IMAGE_DIRS
	// or a wired BuiltinDir is required for Boot to find any source images.
	ExtraImageDirs           DirList `env:"TALESPIN_EXTRA_IMAGE_DIRS"`
	DisableBuiltinImages     YesNo   `env:"TALESPIN_DISABLE_BUILTIN_IMAGES_P"`
	SniffExtensionlessImages YesNo   `env:"TALESPIN_SNIFF_EXTENSIONLESS_IMAGES_P" envDefault:"y"`

	// Transcoder + cache (component B).
	CacheDir          string `env:"TALESPIN_CACHE_DIR"`
	CardAspectRatio   string `env:"TALESPIN_CARD_ASPECT_RATIO" envDefault:"2:3"`
	CardLongSide      int    `env:"TALESPIN_CARD_LONG_SIDE" envDefault:"1536"`
	CardCacheFormat   string `env:"TALESPIN_CARD_CACHE_FORMAT" envDefault:"avif"`
	CardAVIFEncoder   string `env:"TALESPIN_CARD_AVIF_ENCODER" envDefault:"aom"`
	CardAVIFThreads   int    `env:"TALESPIN_CARD_AVIF_THREADS" envDefault:"0"`
	CardQuality       int    `env:"TALESPIN_CARD_QUALITY" envDefault:"80"`
	CardEncodeSpeed   int    `env:"TALESPIN_CARD_ENCODE_SPEED" envDefault:"4"`
	ValidateCacheHits YesNo  `env:"TALESPIN_VALIDATE_CACHE_HITS_P" envDefault:"y"`

	// Room directory (component E).
	RoomIdleTimeoutMinutes int `env:"TALESPIN_ROOM_IDLE_TIMEOUT_MINUTES" envDefault:"60"`

	// Room engine defaults (component D).
	DefaultWinPoints int `env:"TALESPIN_DEFAULT_WIN_POINTS" envDefault:"10"`

	// HTTP/WS front (component G).
	ListenPort int    `env:"TALESPIN_LISTEN_PORT" envDefault:"8081"`
	BaseURL    string `env:"TALESPIN_BASE_URL"`

	// Log level, ambient to every component.
	LogLevel string `env:"TALESPIN_LOG_LEVEL" envDefault:"info"`
}

// Load parses the process environment into a Config, applying defaults and
// then filling in derived fields that env.Parse cannot express directly.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.CacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve default cache dir: %w", err)
		}
		cfg.CacheDir = filepath.Join(home, ".cache", "talespin")
	}
	return cfg, nil
}

// Addr returns the address the HTTP server should bind.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.ListenPort)
}
