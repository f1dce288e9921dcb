package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/maxpert/stride/admin"
	"github.com/maxpert/stride/cfg"
	"github.com/maxpert/stride/coordinator"
	"github.com/maxpert/stride/indexer"
	"github.com/maxpert/stride/notify"
	"github.com/maxpert/stride/store"
	"github.com/maxpert/stride/telemetry"
)

func main() {
	flag.Parse()

	// Load configuration
	err := cfg.Load(*cfg.ConfigPathFlag)
	if err != nil {
		panic(err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	// Setup logging
	var writer io.Writer = zerolog.NewConsoleWriter()
	if cfg.Config.Logging.Format == "json" {
		writer = os.Stdout
	}
	gLog := zerolog.New(writer).
		With().
		Timestamp().
		Logger()

	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}

	log.Info().Msg("Stride - Distributed Cursor-Indexing Scheduler")

	if cfg.Config.Prometheus.Enabled {
		log.Debug().Msg("Initializing telemetry")
		telemetry.InitializeTelemetry()
	}

	// Shared coordinator
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      cfg.Config.Redis.Addresses,
		MasterName: cfg.Config.Redis.MasterName,
		DB:         cfg.Config.Redis.DB,
		Password:   cfg.Config.Redis.Password,
	})
	defer client.Close()
	coord := coordinator.NewRedis(client)

	// Cursor store
	st, closeStore, err := openStore()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cursor store")
		return
	}
	defer closeStore()

	// Demo indexer: an int64 cursor advancing in batches of 100,
	// standing in for whatever domain the step function walks.
	registry := indexer.NewRegistry()
	initial := int64(0)
	demo, err := indexer.New(indexer.Options[int64]{
		Name:               "demo",
		Initial:            &initial,
		Concurrency:        4,
		RunningTimeout:     time.Duration(cfg.Config.Indexer.RunningTimeoutSeconds) * time.Second,
		RetryTimeout:       time.Duration(cfg.Config.Indexer.RetryTimeoutSeconds) * time.Second,
		ConcurrencyTimeout: time.Duration(cfg.Config.Indexer.ConcurrencyTimeoutSeconds) * time.Second,
		LockTTL:            time.Duration(cfg.Config.Indexer.LockTTLMS) * time.Millisecond,
	}, indexer.Hooks[int64]{
		Step: func(_ context.Context, c int64) (int64, error) {
			return c + 100, nil
		},
	}, coord, st)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build demo indexer")
		return
	}
	if err := registry.Register(demo); err != nil {
		log.Fatal().Err(err).Msg("Failed to register demo indexer")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := notify.NewHub()

	// Admin HTTP server
	var adminServer *http.Server
	if cfg.Config.Admin.Enabled {
		adminServer = &http.Server{
			Addr:    cfg.Config.Admin.Bind,
			Handler: admin.NewRouter(admin.NewAdminHandlers(registry, hub), cfg.Config.Admin.AuthToken),
		}
		go func() {
			log.Info().Str("bind", cfg.Config.Admin.Bind).Msg("Admin API listening")
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Admin server failed")
			}
		}()
	}

	// The engine makes no scheduling decisions: this loop is the caller,
	// driving consume ticks and periodic zombie scans.
	go consumeLoop(ctx, demo, hub)
	go cleanupLoop(ctx, registry)

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	if adminServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Admin server shutdown failed")
		}
	}
}

// openStore builds the configured cursor store and returns a close func.
func openStore() (store.Store, func(), error) {
	switch cfg.Config.Store.Type {
	case cfg.StoreMemory:
		log.Warn().Msg("Using in-memory cursor store, cursors reset on restart")
		return store.NewMemory(), func() {}, nil

	case cfg.StorePebble:
		p, err := store.OpenPebble(cfg.Config.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.Config.Store.Path).Msg("Opened Pebble cursor store")
		return p, func() {
			if err := p.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Pebble store")
			}
		}, nil

	case cfg.StoreNATS:
		n, err := store.NewNATS(cfg.Config.Store.NatsURL, cfg.Config.Store.NatsBucket)
		if err != nil {
			return nil, nil, err
		}
		log.Info().
			Str("url", cfg.Config.Store.NatsURL).
			Str("bucket", cfg.Config.Store.NatsBucket).
			Msg("Connected NATS cursor store")
		return n, func() {
			if err := n.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close NATS store")
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store type: %s", cfg.Config.Store.Type)
	}
}

func consumeLoop(ctx context.Context, ix *indexer.Indexer[int64], hub *notify.Hub) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var last notify.Event
			err := ix.Consume(ctx, func(_ context.Context, start, ended, epoch int64) error {
				log.Info().
					Int64("start", start).
					Int64("ended", ended).
					Int64("epoch", epoch).
					Msg("Processing interval")
				last = notify.Event{
					Indexer: ix.Name(),
					Start:   strconv.FormatInt(start, 10),
					Ended:   strconv.FormatInt(ended, 10),
					Epoch:   epoch,
				}
				return nil
			})
			if err != nil {
				log.Error().Err(err).Msg("Consume tick failed")
				last.Kind = notify.KindFailed
			} else {
				last.Kind = notify.KindProcessed
			}
			if last.Indexer != "" {
				hub.Publish(last)
			}
		}
	}
}

func cleanupLoop(ctx context.Context, registry *indexer.Registry) {
	interval := time.Duration(cfg.Config.Indexer.CleanupIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			registry.Range(func(h indexer.Handle) bool {
				if err := h.Cleanup(ctx); err != nil {
					log.Error().Err(err).Str("indexer", h.Name()).Msg("Cleanup failed")
				}
				return true
			})
		}
	}
}
