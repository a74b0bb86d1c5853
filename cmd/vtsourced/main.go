// Command vtsourced runs the video-source daemon: it loads a configuration,
// starts the TCP frame-serving protocol and a Prometheus metrics endpoint
// under one errgroup, and shuts both down on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/vtsourced/internal/config"
	"github.com/zsiec/vtsourced/internal/decode"
	"github.com/zsiec/vtsourced/internal/format"
	"github.com/zsiec/vtsourced/internal/metrics"
	"github.com/zsiec/vtsourced/internal/server"
	"github.com/zsiec/vtsourced/internal/videosource"

	"log/slog"
)

var version = "dev"

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if lvl, lerr := parseLevel(cfg.Logging.Level); lerr == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
		slog.SetDefault(log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	defaultStandard, err := format.ParseStandard(cfg.Media.DefaultStandard)
	if err != nil {
		log.Error("invalid default standard", "standard", cfg.Media.DefaultStandard, "error", err)
		os.Exit(1)
	}
	defaultColorspace, err := format.ParseColorspace(cfg.Media.DefaultColorspace)
	if err != nil {
		log.Error("invalid default colorspace", "colorspace", cfg.Media.DefaultColorspace, "error", err)
		os.Exit(1)
	}

	source := videosource.New(log, func() decode.Source {
		return decode.NewFFmpeg(decode.FFmpegConfig{
			FFmpegBinary:  cfg.Decoder.FFmpegBinary,
			FFprobeBinary: cfg.Decoder.FFprobeBinary,
		}, log)
	}, videosource.WithCacheCapacity(cfg.Cache.Capacity), videosource.WithMediaRoot(cfg.Media.Root))
	source.SetFormat(defaultStandard, defaultColorspace)

	log.Info("vtsourced starting",
		"version", version,
		"addr", cfg.Server.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"media_root", cfg.Media.Root,
	)

	g, ctx := errgroup.WithContext(ctx)

	srv := server.New(cfg.Server.Addr, source, log)
	srv.WithIdleTimeout(time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second)

	if cfg.Metrics.Enabled {
		m := metrics.New(source)
		source.SetMetrics(m)
		srv.WithMetrics(m)

		mux := http.NewServeMux()
		mux.Handle("/metrics", m.HTTPHandler())
		metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}

		g.Go(func() error {
			log.Info("metrics listening", "addr", cfg.Metrics.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		// srv.Run only returns once every in-flight connection has
		// finished, so closing the decoder here happens strictly after
		// the last session could have touched it.
		runErr := srv.Run(ctx)
		if closeErr := source.Close(); closeErr != nil && runErr == nil {
			return closeErr
		}
		return runErr
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func parseLevel(name string) (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(name))
	return lvl, err
}
