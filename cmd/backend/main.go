package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"socket-file-drop/internal/db"
	"socket-file-drop/internal/server"
	"socket-file-drop/internal/store"
)

func main() {
	cfg, err := server.LoadConfig(configPath(), os.Args[1:])
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "config_invalid", err)
		os.Exit(1)
	}
	logger := server.DefaultLogger
	cfg.Logger = logger
	server.WarnOnOptionalMissingConfig(cfg, logger)

	if err := os.MkdirAll(cfg.UploadRoot, 0o755); err != nil {
		log.Printf("service=backend msg=%q dir=%s err=%v", "upload_root_failed", cfg.UploadRoot, err)
		os.Exit(1)
	}

	// Audit trail (optional)
	if cfg.DatabaseURL != "" {
		dbConn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "db_connect_failed", err)
			os.Exit(1)
		}
		defer func() { _ = dbConn.Close() }()

		log.Printf("service=backend msg=%q", "running_migrations")
		if err := db.Migrate(dbConn); err != nil {
			log.Printf("service=backend msg=%q err=%v", "migration_failed", err)
			os.Exit(1)
		}
		log.Printf("service=backend msg=%q", "migrations_complete")
		cfg.Audit = db.NewRecorder(dbConn)
	}

	// Object mirror (optional)
	if cfg.MirrorConfig.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mirror, err := store.NewMinioMirror(ctx, cfg.MirrorConfig)
		cancel()
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "mirror_connect_failed", err)
			os.Exit(1)
		}
		cfg.Mirror = mirror
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "server_init_failed", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("service=backend msg=%q addr=%s url=http://%s debug=%t",
			"starting", cfg.Addr(), cfg.Addr(), cfg.Debug)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("service=backend msg=%q signal=%s", "shutting_down", sig.String())
		// The connection in hand gets 5 seconds to finish.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("service=backend msg=%q err=%v", "shutdown_error", err)
			os.Exit(1)
		}
		log.Printf("service=backend msg=%q", "shutdown_complete")
	case err := <-errCh:
		if err != nil && !errors.Is(err, server.ErrServerClosed) {
			log.Printf("service=backend msg=%q err=%v", "server_error", err)
			os.Exit(1)
		}
	}
}

// configPath is SFD_CONFIG, or the default settings file when it is unset.
func configPath() string {
	return getenvDefault("SFD_CONFIG", server.DefaultConfigPath)
}

// getenvDefault reads an environment variable and returns a default value if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
