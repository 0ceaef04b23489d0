package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ewintr.nl/ytstats/config"
	"ewintr.nl/ytstats/fetcher"
	"ewintr.nl/ytstats/handler"
	"ewintr.nl/ytstats/metrics"
	"ewintr.nl/ytstats/process"
	"ewintr.nl/ytstats/storage"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/slog"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("invalid configuration", slog.String("err", err.Error()))
		os.Exit(1)
	}
	logger := setupLogger(cfg)
	if cfg.UpdateTitle && cfg.Fields.Title == "" {
		logger.Warn("title updates are on but no title field is configured, titles stay as they are")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notion := storage.NewNotion(storage.NotionInfo{
		Endpoint:   cfg.NotionEndpoint,
		Token:      cfg.NotionToken,
		DatabaseID: cfg.NotionDatabaseID,
		Timeout:    cfg.RequestTimeout,
	}, &http.Client{})

	ytOpts := []option.ClientOption{option.WithAPIKey(cfg.YoutubeAPIKey)}
	if cfg.YoutubeEndpoint != "" {
		ytOpts = append(ytOpts, option.WithEndpoint(cfg.YoutubeEndpoint))
	}
	ytClient, err := youtube.NewService(ctx, ytOpts...)
	if err != nil {
		logger.Error("unable to create youtube service", slog.String("err", err.Error()))
		os.Exit(1)
	}
	yt := fetcher.NewYoutube(ytClient, cfg.RequestTimeout)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	pipeline := process.NewPipeline(cfg, notion, yt, m, logger)

	if len(os.Args) > 1 && os.Args[1] == "serve" {
		if err := serve(ctx, cfg.APIPort, handler.NewServer(ctx, pipeline, registry, logger), logger); err != nil {
			logger.Error("http server failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		logger.Info("service stopped")
		return
	}

	result, runErr := pipeline.Run(ctx)
	if cfg.MetricsPushgateway != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		if err := metrics.Push(pushCtx, cfg.MetricsPushgateway, registry); err != nil {
			logger.Warn("could not push metrics", slog.String("err", err.Error()))
		}
		cancel()
	}
	if runErr != nil {
		logger.Error("sync failed", slog.String("err", runErr.Error()))
		os.Exit(1)
	}

	if err := json.NewEncoder(os.Stdout).Encode(result.Updated); err != nil {
		logger.Error("could not write result", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func serve(ctx context.Context, port int, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()
	logger.Info("http server started", slog.Int("port", port))

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// setupLogger writes to stderr, stdout carries the result of a one-shot
// run. With a log file configured the output is copied to a rotated file.
func setupLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0750); err != nil {
			slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("could not create log directory", slog.String("err", err.Error()))
		}
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    5,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		})
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With(slog.String("service", "ytstats"))
}
