// Command talespin runs the game server: it boots the card registry from
// disk, wires the room directory and connection hub together, and serves
// the HTTP/WS front described by component G.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/wyattkrebs/talespin-server/internal/cards"
	"github.com/wyattkrebs/talespin-server/internal/config"
	"github.com/wyattkrebs/talespin-server/internal/directory"
	"github.com/wyattkrebs/talespin-server/internal/httpapi"
	"github.com/wyattkrebs/talespin-server/internal/hub"
	"github.com/wyattkrebs/talespin-server/internal/logger"
)

const maintenanceInterval = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "talespin: "+err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.NewWithLevel(logger.ParseLevel(cfg.LogLevel))

	cache, err := cards.NewCache(cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("prepare card cache: %w", err)
	}

	// BuiltinDir is intentionally left unset: this repository ships no card
	// art of its own, so TALESPIN_EXTRA_IMAGE_DIRS is the only source of
	// images until a deployment wires a bundled art directory here.
	registry, err := cards.Boot(cards.PipelineOptions{
		Load: cards.LoadOptions{
			ExtraDirs:                cfg.ExtraImageDirs,
			DisableBuiltin:           bool(cfg.DisableBuiltinImages),
			SniffExtensionlessImages: bool(cfg.SniffExtensionlessImages),
		},
		Cache: cache,
		Spec: cards.TransformSpec{
			AspectRatio: cfg.CardAspectRatio,
			LongSide:    cfg.CardLongSide,
			Format:      cfg.CardCacheFormat,
			Encoder:     cfg.CardAVIFEncoder,
			Threads:     cfg.CardAVIFThreads,
			Quality:     cfg.CardQuality,
			Speed:       cfg.CardEncodeSpeed,
		},
		Validate: bool(cfg.ValidateCacheHits),
	}, log)
	if err != nil {
		return fmt.Errorf("boot card pipeline: %w", err)
	}
	log.Info("card registry ready", "cards", registry.Len())

	h := hub.New(log)
	idleTimeout := time.Duration(cfg.RoomIdleTimeoutMinutes) * time.Minute
	dir := directory.New(registry, h, log, idleTimeout)
	h.BindDirectory(dir)

	go runMaintenanceLoop(dir)

	handlers := &httpapi.Handlers{
		Directory: dir,
		Hub:       h,
		Cards:     registry,
		Log:       log,
		BaseURL:   cfg.BaseURL,
	}

	log.Info("server starting", "addr", cfg.Addr())
	return http.ListenAndServe(cfg.Addr(), handlers.Router())
}

func runMaintenanceLoop(dir *directory.Directory) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for range ticker.C {
		dir.MaintenanceTick()
	}
}
