package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"filedrop/internal/config"
	"filedrop/internal/db"
	"filedrop/internal/files"
	"filedrop/internal/logging"
	"filedrop/internal/server"
	"filedrop/internal/storage"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.Error(context.Background(), "exiting", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "filedrop",
		Short:         "File upload service backed by an object store and PostgreSQL",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml); FD_* env vars override it")

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}
			return migrate(cmd.Context(), cfg)
		},
	})

	return root
}

// loadConfig reads and validates the configuration, then sets up logging.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.Init(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Env:    cfg.Env,
	})
	return cfg, nil
}

func migrate(ctx context.Context, cfg *config.Config) error {
	logging.Info(ctx, "running migrations")
	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		return errors.Wrap(err, "migration failed")
	}
	logging.Info(ctx, "migrations complete")
	return nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Database
	dbConn, err := db.OpenDB(cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "db connect failed")
	}
	defer func() { _ = dbConn.Close() }()

	if err := migrate(ctx, cfg); err != nil {
		return err
	}
	repo := db.NewStore(dbConn)

	// Object store
	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return errors.Wrapf(err, "%s store init failed", cfg.Storage.Backend)
	}
	defer func() { _ = objects.Close() }()

	metrics := server.NewMetrics()
	svc := files.NewService(objects, repo,
		files.WithRecorder(metrics),
		files.WithMaxBytes(cfg.MaxUploadBytes),
	)

	cleanup, err := server.StartCleanupJob(server.CleanupConfig{
		Schedule:  cfg.CleanupSchedule,
		Retention: cfg.HealthRetention,
		Store:     repo,
	})
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer func() { <-cleanup.Stop().Done() }()
	}

	build := server.BuildInfo{Version: cfg.Version, Commit: cfg.Commit}
	srv := server.New(server.Config{
		Addr:    cfg.Addr,
		Build:   build,
		Files:   svc,
		Health:  repo,
		Metrics: metrics,
	})

	// Start the HTTP server in a background goroutine.
	// This allows us to listen for OS signals while the server runs.
	errCh := make(chan error, 1)
	go func() {
		logging.Info(ctx, "starting", logging.Fields{
			"addr":    cfg.Addr,
			"backend": cfg.Storage.Backend,
			"version": build.Version,
			"commit":  build.Commit,
		})
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// Block until either a shutdown signal is received or the server encounters an error.
	select {
	case sig := <-sigCh:
		logging.Info(ctx, "shutting down", logging.Fields{"signal": sig.String()})
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown error")
		}
		logging.Info(ctx, "shutdown complete")
		return nil
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "server error")
		}
		return nil
	}
}

