package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jo-hoe/bgremover/internal/backend"
	"github.com/jo-hoe/bgremover/internal/core"
	"github.com/jo-hoe/bgremover/internal/flash"
	"github.com/jo-hoe/bgremover/internal/frontend"
	"github.com/jo-hoe/bgremover/internal/segmentation"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional, real environment variables take precedence
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("main: failed to load .env file", "error", err)
	}

	if err := newApp().Run(os.Args); err != nil {
		slog.Error("main: exiting", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "bgremover",
		Usage: "web front-end that removes image backgrounds with an external model",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML or TOML configuration file",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the web server (default)",
				Action: serve,
			},
			{
				Name:   "sweep",
				Usage:  "delete results older than retention.maxAge once and exit",
				Action: sweep,
			},
		},
	}
}

func getConfigPath(c *cli.Context) (string, error) {
	if configPath := c.String("config"); configPath != "" {
		return configPath, nil
	}

	// Default to config.yaml in current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, "config.yaml"), nil
}

func loadConfig(c *cli.Context) (*core.ServiceConfig, error) {
	configPath, err := getConfigPath(c)
	if err != nil {
		return nil, err
	}
	config, err := core.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(os.Stderr, config.LogFormat, config.LogLevel))
	slog.Debug("main: configuration loaded", "path", configPath)
	return config, nil
}

func serve(c *cli.Context) error {
	config, err := loadConfig(c)
	if err != nil {
		return err
	}

	segmenter, err := segmentation.New(config.Model.SegmentationConfig())
	if err != nil {
		return err
	}

	coreService, err := core.NewCoreService(config, segmenter)
	if err != nil {
		return err
	}
	defer func() {
		if err := coreService.Close(); err != nil {
			slog.Error("main: core service close error", "error", err)
		}
	}()

	flashStore, closeFlashStore, err := newFlashStore(c.Context, config.Flash)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFlashStore(); err != nil {
			slog.Error("main: flash store close error", "error", err)
		}
	}()

	scheduler, err := core.StartRetention(coreService)
	if err != nil {
		return err
	}

	server := defineServer(config)
	backend.NewAPIService(coreService).SetRoutes(server)
	frontend.NewFrontendService(config, coreService, flash.NewManager(flashStore)).SetRoutes(server)

	portString := fmt.Sprintf(":%d", config.Port)

	// Start HTTP server in a goroutine to allow graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("main: starting server", "address", portString)
		if err := server.Start(portString); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		slog.Info("main: shutdown signal received")
	case err := <-serverErr:
		slog.Error("main: http server error", "error", err)
		scheduler.Stop(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("main: server shutdown error", "error", err)
	}
	scheduler.Stop(shutdownCtx)
	return nil
}

func sweep(c *cli.Context) error {
	config, err := loadConfig(c)
	if err != nil {
		return err
	}
	if config.Retention.MaxAgeDuration() <= 0 {
		slog.Info("main: retention.maxAge is not set, nothing to sweep")
		return nil
	}

	// the model is not needed to delete results
	coreService, err := core.NewCoreService(config, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = coreService.Close()
	}()

	removed, err := coreService.SweepResults(c.Context, time.Now())
	if err != nil {
		return fmt.Errorf("sweep failed after removing %d results: %w", removed, err)
	}
	return nil
}
