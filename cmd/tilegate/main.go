package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cosmozoom/tilegate/internal/body"
	"github.com/cosmozoom/tilegate/internal/core/config"
	"github.com/cosmozoom/tilegate/internal/core/httpclient"
	"github.com/cosmozoom/tilegate/internal/core/observability"
	"github.com/cosmozoom/tilegate/internal/core/router"
	"github.com/cosmozoom/tilegate/internal/core/server"
	"github.com/cosmozoom/tilegate/internal/fetch"
	"github.com/cosmozoom/tilegate/internal/hotness/expdecay"
	"github.com/cosmozoom/tilegate/internal/hotness/metricswrap"
	"github.com/cosmozoom/tilegate/internal/logger"
	"github.com/cosmozoom/tilegate/internal/metrics"
	"github.com/cosmozoom/tilegate/internal/stats"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Component: "tilegate",
	}, os.Stdout)

	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting tile gateway",
		"addr", cfg.Addr,
		"version", Version,
		"gibs", cfg.GIBSBaseURL,
		"trek", cfg.TrekBaseURL,
		"mars_max_zoom", cfg.MarsMaxZoom)

	registry := body.New(cfg)
	fetcher := fetch.New(appLog, httpclient.NewOutbound(), cfg.UpstreamRPS)

	tracker := metricswrap.New(expdecay.New(cfg.HotHalfLife), "tiles")
	recorder, err := stats.New(cfg.StatsRecentSize, tracker)
	if err != nil {
		appLog.Error("stats recorder setup failed", "err", err)
		return 1
	}

	handler := router.New(appLog, registry, fetcher, recorder)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		p := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    cfg.Metrics.Addr,
			Path:    cfg.Metrics.Path,
			Build: metrics.BuildInfo{
				Version:   os.Getenv("BUILD_VERSION"),
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, p.Handler())

		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		go func() {
			log.Printf("metrics: listening on %s%s", cfg.Metrics.Addr, cfg.Metrics.Path)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("metrics server exited: %v", err)
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("metrics: shutdown error: %v", err)
			}
		}()
	}

	if err := server.Run(ctx, cfg, appLog, handler); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
