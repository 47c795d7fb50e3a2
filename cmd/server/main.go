package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/ingredient-vision/api"
	"github.com/nvr-ai/ingredient-vision/config"
	"github.com/nvr-ai/ingredient-vision/logging"
	"github.com/nvr-ai/ingredient-vision/pipeline"
	"github.com/nvr-ai/ingredient-vision/profiler"
	"github.com/nvr-ai/ingredient-vision/recipes"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML configuration file")
		envFile    = flag.String("env", ".env", "Dotenv file with INGREDIENTS_* overrides")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create logger")
	}
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}

func run(cfg config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	table, err := cfg.Labels.Table()
	if err != nil {
		return err
	}

	tracker := profiler.NewTracker(profiler.Options{})
	tracker.Run(logger)
	defer tracker.Stop()

	model := pipeline.NewModel(cfg.Detector,
		pipeline.WithModelLogger(logger),
		pipeline.WithModelTracker(tracker),
	)
	defer model.Close()

	// The service starts without a model so /v1/model/reload can recover from a bad load.
	if err := model.Load(ctx); err != nil {
		logger.WithError(err).Error("model unavailable, scans will fail until reloaded")
	}

	p, err := pipeline.NewBuilder().
		WithModel(model).
		WithLabels(table).
		WithConfig(cfg.Pipeline).
		WithLogger(logger).
		WithTracker(tracker).
		Build()
	if err != nil {
		return err
	}

	client, err := recipes.NewClient(cfg.Recipes, logger)
	if err != nil {
		return err
	}

	sessions := api.NewSessions(cfg.Selection.Limit, cfg.Server.SessionTTL)
	go sessions.RunSweeper(ctx, time.Minute, logger)

	server := api.NewServer(p, client, sessions, tracker, logger, api.Options{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		ScanTimeout:    cfg.Server.ScanTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    cfg.Server.Addr,
			"labels":  table.Len(),
			"recipes": cfg.Recipes.BaseURL,
		}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
