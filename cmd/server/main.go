package main

import (
	"context"
	"dm-chat/auth"
	"dm-chat/infrastructure/api"
	"dm-chat/internal"
	"dm-chat/observability"
	"dm-chat/repositories"
	"dm-chat/runtime"
	"dm-chat/runtime/workers"
	"dm-chat/services"
	"dm-chat/sink"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// Exit codes to provide meaningful status to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 5 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run owns every resource so deferred cleanups happen before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	users := repositories.NewUserRepository(db, logger)
	messages, err := repositories.NewMessageRepository(db, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = messages.Close() }()

	// No session survives a restart, online flags from the previous run are stale
	reset, err := users.ResetPresence()
	if err != nil {
		return exitRuntime, fmt.Errorf("presence reset failed: %w", err)
	}
	logger.Info("Presence reset", "users", reset)

	// 3. Supervision & Orchestration
	monitoring := observability.NewMonitoringManager(logger)
	supervisor := workers.NewSupervisor(logger, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(logger, supervisor, users, monitoring, runtime.Settings{
		BufferSize:      config.BufferSize,
		LaneBufferSize:  config.ConnectionBufferSize,
		DeliveryTimeout: config.DeliveryTimeout,
		LaneIdleTimeout: config.LaneIdleTimeout,
		SinkTimeout:     config.SinkTimeout,
		MetricInterval:  config.MetricInterval,
	})

	// 4. Optional presence fan-out to other services
	if config.NatsURL != "" {
		conn, err := nats.Connect(config.NatsURL, nats.Name("dm-chat"))
		if err != nil {
			return exitRuntime, fmt.Errorf("nats connection failed: %w", err)
		}
		defer conn.Drain()
		orchestrator.RegisterSinks(sink.NewNatsPresenceSink(logger, conn, config.NatsSubjectPrefix))
		logger.Info("Publishing presence on NATS", "url", config.NatsURL, "prefix", config.NatsSubjectPrefix)
	}
	if config.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
		defer func() { _ = client.Close() }()
		redisSink := sink.NewRedisPresenceSink(logger, client, orchestrator.Tracker(), config.RedisPresenceTTL)
		orchestrator.RegisterSinks(redisSink)
		orchestrator.RegisterWorkers(redisSink)
		logger.Info("Mirroring presence into Redis", "addr", config.RedisAddr, "ttl", config.RedisPresenceTTL)
	}

	// 5. Services & HTTP
	reconciler := services.NewReconciler(logger, messages, monitoring)
	chat := services.NewChatService(logger, messages, users, orchestrator.Distributor(), reconciler, monitoring, config.MaxContentLength)
	presence := services.NewPresenceService(logger, users, orchestrator.Tracker(), monitoring)
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)

	if logger.Enabled(context.Background(), slog.LevelDebug) {
		gin.SetMode(gin.DebugMode)
		debugServer := internal.StartDebugServer(db, config.DebugPort, "/inspect", nil, func() map[string]any {
			return monitoring.Snapshot().ToMap()
		})
		defer func() { _ = debugServer.Close() }()
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	server := api.NewServer(logger, chat, presence, tokens, monitoring, api.Settings{
		ConnectionBufferSize: config.ConnectionBufferSize,
		InternalAPIKey:       config.InternalAPIKey,
		WriteWait:            config.WriteWait,
		PongWait:             config.PongWait,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.HTTPPort),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orchestratorDone := make(chan struct{})
	go func() {
		defer close(orchestratorDone)
		_ = orchestrator.Start(ctx)
	}()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	// Shutdown leaves upgraded WebSockets alone, their sessions must end while badger is open
	orchestrator.CloseSessions()
	stop()
	orchestrator.Stop()
	<-orchestratorDone
	logger.Info("Program stopped cleanly")

	return code, runErr
}
