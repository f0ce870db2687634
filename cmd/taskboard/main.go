// @title			Taskboard API
// @version		1.0
// @description	Department task board with subtasks, comments, likes and attachments.
// @BasePath		/api/v1

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mtlprog/taskboard/internal/config"
	"github.com/mtlprog/taskboard/internal/database"
	"github.com/mtlprog/taskboard/internal/handler"
	"github.com/mtlprog/taskboard/internal/logger"
	"github.com/mtlprog/taskboard/internal/middleware"
	"github.com/rs/cors"
	"github.com/urfave/cli/v2"
)

func main() {
	envFile := os.Getenv("TASKBOARD_ENV_FILE")
	if envFile == "" {
		envFile = config.DefaultEnvFile
	}
	if err := config.LoadEnv(envFile); err != nil {
		slog.Error("failed to load env file", "path", envFile, "error", err)
		os.Exit(1)
	}

	app := &cli.App{
		Name:  "taskboard",
		Usage: "Department task board server and client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   string(logger.FormatJSON),
				Usage:   "Log format (json, text)",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Aliases: []string{"d"},
				Value:   config.DefaultDatabaseURL,
				Usage:   "PostgreSQL database URL (serve, migrate)",
				EnvVars: []string{"DATABASE_URL"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.SetupWith(os.Stdout, logger.ParseFormat(c.String("log-format")), logger.ParseLevel(c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the task service",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   config.DefaultPort,
						Usage:   "HTTP server port",
						EnvVars: []string{"PORT"},
					},
					&cli.StringSliceFlag{
						Name:    "allowed-origins",
						Usage:   "Origins allowed by CORS (default: any)",
						EnvVars: []string{"ALLOWED_ORIGINS"},
					},
					&cli.Int64Flag{
						Name:    "max-upload-bytes",
						Value:   config.DefaultMaxUploadBytes,
						Usage:   "Largest accepted attachment",
						EnvVars: []string{"MAX_UPLOAD_BYTES"},
					},
				},
				Action: runServe,
			},
			{
				Name:  "migrate",
				Usage: "Manage the database schema",
				Subcommands: []*cli.Command{
					{
						Name:   "up",
						Usage:  "Apply all pending migrations",
						Action: runMigrateUp,
					},
					{
						Name:   "down",
						Usage:  "Roll back the latest migration",
						Action: runMigrateDown,
					},
					{
						Name:   "status",
						Usage:  "Show applied and pending migrations",
						Action: runMigrateStatus,
					},
				},
			},
			boardCommand(),
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func connect(c *cli.Context) (*database.DB, error) {
	databaseURL := c.String("database-url")
	if databaseURL == "" {
		return nil, errors.New("database URL is required (--database-url or DATABASE_URL)")
	}

	db, err := database.New(c.Context, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func runServe(c *cli.Context) error {
	ctx := c.Context

	port := c.String("port")
	if port == "" {
		port = config.DefaultPort
	}

	db, err := connect(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	h := handler.New(db.Pool(), handler.Options{MaxUploadBytes: c.Int64("max-upload-bytes")})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           corsFor(c.StringSlice("allowed-origins")).Handler(middleware.RequestLogger(mux)),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "server_addr", "http://localhost:"+port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-done:
		slog.Info("shutting down server")
	}

	// Websocket connections are hijacked and not tracked by Shutdown.
	h.Hub().Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// corsFor allows any origin unless origins are listed.
func corsFor(origins []string) *cors.Cors {
	if len(origins) == 0 {
		return cors.AllowAll()
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", middleware.UserIDHeader},
	})
}

func runMigrateUp(c *cli.Context) error {
	db, err := connect(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(c.Context, db.Pool()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func runMigrateDown(c *cli.Context) error {
	db, err := connect(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RollbackMigration(c.Context, db.Pool()); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	return nil
}

func runMigrateStatus(c *cli.Context) error {
	db, err := connect(c)
	if err != nil {
		return err
	}
	defer db.Close()

	states, err := database.MigrationStatus(c.Context, db.Pool())
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	for _, s := range states {
		state := "pending"
		if s.Applied {
			state = "applied"
		}
		fmt.Fprintf(c.App.Writer, "%05d  %-8s %s\n", s.Version, state, s.Source)
	}
	return nil
}
