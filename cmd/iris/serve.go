package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"irisapi/artifact"
	"irisapi/config"
	"irisapi/db"
	irishttp "irisapi/http"
	"irisapi/monitoring"
	"irisapi/predict"
)

func serveCmd() *cobra.Command {
	var (
		port      int
		modelPath string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				cfg.Http.Port = port
			}
			if modelPath != "" {
				cfg.Model.Path = modelPath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 5000, "port to listen on")
	cmd.Flags().StringVar(&modelPath, "model-path", "", "model artifact path (overrides config)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	loader := artifact.NewLoader(cfg.Model.Path, logger)
	predictor, err := predict.NewHandler(loader, cfg.Model.CacheSize, logger)
	if err != nil {
		return fmt.Errorf("create predictor: %w", err)
	}

	if cfg.Database.Path != "" {
		if err := db.InitDB(cfg.Database.Path); err != nil {
			logger.Warn("training ledger unavailable", zap.String("path", cfg.Database.Path), zap.Error(err))
		} else {
			defer db.Close()
		}
	}

	if cfg.Model.EagerLoad {
		if _, err := loader.EnsureLoaded(); err != nil {
			logger.Error("model not loaded at startup", zap.Error(err))
		}
	}

	serverConfig := irishttp.DefaultServerConfig()
	serverConfig.Port = cfg.Http.Port
	serverConfig.Timeout = cfg.Http.Timeout
	serverConfig.MaxBodyBytes = cfg.Http.MaxBodyBytes

	handlers := irishttp.NewHandlers(predictor, loader, monitoring.NewMetricsCollector(), logger)
	server := irishttp.NewServer(serverConfig, handlers, logger)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gCtx.Done()
		return server.Stop()
	})
	if cfg.Model.Watch {
		if err := os.MkdirAll(filepath.Dir(cfg.Model.Path), 0o755); err != nil {
			logger.Warn("cannot create model dir", zap.Error(err))
		}
		g.Go(func() error {
			if err := loader.Watch(gCtx); err != nil {
				logger.Warn("artifact watcher stopped", zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}
