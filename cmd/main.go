package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"trenchsocial/internal"
	"trenchsocial/observability"
	"trenchsocial/projection"
	"trenchsocial/repositories"
	"trenchsocial/runtime"
	"trenchsocial/runtime/workers"
	"trenchsocial/server"
	"trenchsocial/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until shutdown, so all defers (the
// database close in particular) execute before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.NewLogger(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & Projections
	userRepository := repositories.NewUserRepository(db, log)
	chatRepository := repositories.NewChatRepository(db, log, config.ChatHistoryLimit)
	privateRepository := repositories.NewPrivateMessageRepository(db, log)
	postRepository := repositories.NewPostRepository(db, log)
	reportRepository := repositories.NewReportRepository(db, log)
	indexer := projection.NewConversationIndexer(privateRepository)

	// 4. Runtime
	stats := observability.NewHubStats()
	hub := runtime.NewBroadcastHub(
		log, chatRepository, userRepository,
		runtime.NewPresenceTracker(log), stats,
		config.ChatHistoryLimit, config.MaxContentLength, config.BufferSize,
	)
	messageService := services.NewMessageService(log, userRepository, privateRepository, indexer)

	httpServer := server.New(
		log, hub, messageService,
		userRepository, postRepository, reportRepository, stats,
		fmt.Sprintf("%s:%d", config.Host, config.Port),
		config.ConnectionBufferSize, config.ShutdownTimeout,
	)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Supervision: hub and HTTP server restart on panic, stop on ctx.
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(hub, httpServer)
	sup.Run(ctx)

	log.Info("Program stopped cleanly")
	return nil
}
