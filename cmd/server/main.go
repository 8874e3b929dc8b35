package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"

	"privchat/auth"
	"privchat/bus"
	"privchat/chat"
	"privchat/repositories"
	"privchat/runtime/workers"
	"privchat/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and blocks until shutdown. Keeping the
// logic out of main ensures deferred cleanup (database close) executes
// before the process exits.
func run() error {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	store := repositories.NewStore(db, log)
	groupBus := bus.New(log)
	hooks := defaultHooks{log: log}
	validator := chat.NewValidator(log, store, config.MaxTextLength)
	dispatcher := chat.NewDispatcher(log, store, groupBus, hooks)
	presence := chat.NewPresence(log, store, groupBus)
	authenticator := auth.NewTokenAuthenticator([]byte(config.TokenSecret), config.TokenTTL, store)

	chatServer := server.New(log, server.Config{
		Addr:                 fmt.Sprintf("%s:%d", config.Host, config.Port),
		ConnectionBufferSize: config.ConnectionBufferSize,
		AuthTimeout:          config.AuthTimeout,
		WriteTimeout:         config.WriteTimeout,
		MaxFrameBytes:        config.MaxFrameBytes,
	}, authenticator, groupBus, validator, dispatcher, presence)

	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		chatServer,
		workers.NewBadgerGCWorker(log, db, config.BadgerGCInterval),
		workers.NewTelemetryWorker(log, config.TelemetryInterval),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting chat server", "at", time.Now().UTC())
	sup.Run(ctx)
	log.Info("All workers stopped")
	return nil
}
