// Command soundsrided is the vehicle-route-synchronized live audio
// mixing service: it loads a snippet library, serves the RPC surface
// of spec.md section 6, and streams each session's rendered mix over
// HTTP/WebRTC.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/soundsride/soundsrided/internal/audio"
	"github.com/soundsride/soundsrided/internal/config"
	"github.com/soundsride/soundsrided/internal/logging"
	"github.com/soundsride/soundsrided/internal/rpcapi"
	"github.com/soundsride/soundsrided/internal/session"
	"github.com/soundsride/soundsrided/internal/snippet"
	"github.com/soundsride/soundsrided/internal/vehicle"
	"github.com/soundsride/soundsrided/internal/workerpool"
)

func main() {
	logger := logging.New()

	cfg, err := config.Load(os.Getenv("SOUNDSRIDE_CONFIG"))
	if err != nil {
		logger.Fatal("load config", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	format := audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 16}

	lib, err := snippet.NewLibrary(cfg.LibraryDir, format)
	if err != nil {
		logger.Fatal("load snippet library", "err", err, "dir", cfg.LibraryDir)
	}
	logger.Info("snippet library loaded", "songs", len(lib.Songs()), "dir", cfg.LibraryDir)

	tunables := config.NewAtomic(cfg.Tunables)
	if path := os.Getenv("SOUNDSRIDE_CONFIG"); path != "" {
		if err := config.Watch(ctx, path, tunables, func(err error) {
			logger.Error("config reload", "err", err)
		}); err != nil {
			logger.Error("config watch", "err", err)
		}
	}

	workers := runtime.NumCPU()
	if workers < 3 {
		workers = 3
	}
	pool := workerpool.New(workers, 64)
	defer pool.Close()

	registry := session.NewRegistry(lib, tunables, pool, cfg.LogDir, vehicle.Unconfigured{}, logger)

	router := rpcapi.New(registry, logger).Router()
	server := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		server.Close()
	}()

	logger.Info("soundsrided listening", "addr", cfg.ListenAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("http server", "err", fmt.Errorf("listen %s: %w", cfg.ListenAddr, err))
	}
}
