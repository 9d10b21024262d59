package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"meetprobe/internal/core/events"
	"meetprobe/internal/core/services"
	"meetprobe/internal/core/state"
	"meetprobe/internal/core/status"
	httphandlers "meetprobe/internal/handlers/http"
	"meetprobe/internal/handlers/room"
	"meetprobe/internal/infrastructure/livekit"
	"meetprobe/internal/infrastructure/monitoring"
	"meetprobe/internal/infrastructure/repositories"
	wsstream "meetprobe/internal/infrastructure/signal"
	"meetprobe/pkg/circuitbreaker"
	"meetprobe/pkg/config"
	"meetprobe/pkg/listeners"
	"meetprobe/pkg/logger"
	"meetprobe/pkg/tracing"
)

const eventQueueSize = 1024

func main() {
	cfg, err := loadConfig(
		os.Getenv("MEETPROBE_CONFIG"),
		"configs/config.yaml",
		"/etc/meetprobe/config.yaml",
		"config.yaml",
	)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	store := state.NewStore(state.NewWindow())

	baseLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	zapLogger := logger.WithConsoleCapture(baseLogger, store.Console.AddLog)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()
	if err != nil {
		log.Warnw("invalid config file, running with defaults", "error", err)
	}

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "meetprobe",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := monitoring.NewPrometheusCollector()

	bus := events.NewBus(eventQueueSize, log)
	go bus.Run(ctx)

	board := status.NewBoard()
	registry := events.NewRegistry(log)

	var tokens *livekit.TokenMinter
	if cfg.LiveKit.APIKey != "" {
		tokens, err = livekit.NewTokenMinter(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.TokenTTL)
		if err != nil {
			log.Fatalw("failed to create token minter", "error", err)
		}
	}

	connector := livekit.NewConnector(livekit.MediaConfig{
		FPS:    cfg.Media.FPS,
		Width:  cfg.Media.Width,
		Height: cfg.Media.Height,
	}, log)

	resub := services.NewResubscriber(services.ResubscribeConfigFrom(cfg), store, board, collector, log)
	deps := services.ClientDeps{
		Connector: connector,
		Store:     store,
		Board:     board,
		Bus:       bus,
		Registry:  registry,
		Metrics:   collector,
		Logger:    log,
	}
	// A nil *TokenMinter must not become a non-nil interface.
	if tokens != nil {
		deps.Tokens = tokens
	}
	client := services.NewMeetingClient(services.ClientConfigFrom(cfg), resub, deps)
	helpers := services.NewHelpers(client, store, collector, log)

	room.RegisterAll(registry, room.Deps{
		Store:        store,
		Board:        board,
		Client:       client,
		Resubscriber: resub,
		Metrics:      collector,
		Logger:       log,
	})

	repoFactory := repositories.NewRepositoryFactory(cfg, log)
	sink := repoFactory.CreateSnapshotSink()

	if cfg.Publish.Hydrate {
		restored, err := repositories.Hydrate(ctx, sink, store)
		if err != nil {
			log.Warnw("failed to hydrate state from snapshot sink", "error", err)
		} else if restored {
			log.Info("state hydrated from last published snapshot")
		}
	}

	// Process-lifetime window listeners; never cleaned up before exit.
	windowListeners := listeners.NewManager(log)
	mirror := repositories.NewSnapshotMirror(sink, 0, log)
	if err := mirror.Attach(store.Window(), windowListeners); err != nil {
		log.Fatalw("failed to attach snapshot mirror", "error", err)
	}
	mirror.Breaker().OnStateChange(func(from, to circuitbreaker.State) {
		log.Warnw("snapshot sink breaker changed state", "from", from.String(), "to", to.String())
	})
	go mirror.Run(ctx)
	if _, err := windowListeners.AddListener(store.Window(), state.EventSync, func(any) {
		collector.RecordSnapshotSync()
	}); err != nil {
		log.Fatalw("failed to attach sync metrics", "error", err)
	}

	health := monitoring.NewHealthChecker()
	health.AddSinkCheck(sink, 10*time.Second, 2*time.Second)
	health.AddCheck("snapshot_mirror", func(context.Context) (bool, error) {
		if st := mirror.Breaker().State(); st == circuitbreaker.StateOpen {
			return false, circuitbreaker.ErrOpen
		}
		return true, nil
	}, 10*time.Second, time.Second)
	if rc := repoFactory.RedisClient(); rc != nil {
		health.AddRedisCheck(rc, 10*time.Second, 2*time.Second)
	}
	health.StartBackgroundChecks(ctx, func(name string, healthy bool, err error) {
		if !healthy {
			log.Warnw("health check failed", "check", name, "error", err)
		}
	})

	stream := wsstream.NewWebSocketServer(store.Window(), log)
	stream.SetPingInterval(cfg.Stream.PingInterval)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httphandlers.NewRouter(ctx, httphandlers.RouterDeps{
		Config:  cfg,
		Client:  client,
		Helpers: helpers,
		Tokens:  tokens,
		Health:  health,
		Stream:  stream,
		Logger:  zapLogger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting meetprobe on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	if cfg.Session.AutoJoin {
		client.AutoJoin(ctx, cfg.SessionParams())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down meetprobe...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	client.Leave(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	cancel()
	windowListeners.Cleanup()
	bus.Close()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer", "error", err)
	}
	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("meetprobe stopped")
}

// loadConfig loads the first existing path. With none present, Load falls
// back to defaults plus environment overrides.
func loadConfig(paths ...string) (*config.Config, error) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return config.Load(path)
		}
	}
	return config.Load("")
}
