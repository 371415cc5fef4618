// Command radiowizardd runs the radio processing pipeline and serves its
// frame streams and metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/radiowizard/radiowizard/config"
	"github.com/radiowizard/radiowizard/observe"
	"github.com/radiowizard/radiowizard/pipeline"
	"github.com/radiowizard/radiowizard/pubsub"
	"github.com/radiowizard/radiowizard/pubsub/wshub"
	"github.com/radiowizard/radiowizard/source"
)

// version is stamped by the build; "dev" otherwise.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "radiowizardd: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.Slog(),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "radiowizard",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("metrics init failed", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(sctx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	srcCfg, err := cfg.SyntheticSource()
	if err != nil {
		slog.Error("source config invalid", "err", err)
		return 1
	}
	src, err := source.NewSynthetic(srcCfg)
	if err != nil {
		slog.Error("source init failed", "err", err)
		return 1
	}

	state, err := cfg.PipelineState()
	if err != nil {
		slog.Error("pipeline config invalid", "err", err)
		return 1
	}

	hub := wshub.New(logger)
	bus := pubsub.NewPublisher(cfg.Server.Node, hub)

	sup, err := pipeline.NewSupervisor(state, src, bus, logger)
	if err != nil {
		slog.Error("supervisor init failed", "err", err)
		return 1
	}

	reg, err := observe.RegisterPipeline(otel.GetMeterProvider(), sup.Telemetry)
	if err != nil {
		slog.Error("metrics registration failed", "err", err)
		return 1
	}
	defer reg.Unregister()

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := sup.Status()
		if status == pipeline.StatusFaulted {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintln(w, status.String())
	})

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: mux}

	slog.Info("radiowizardd starting",
		"version", version,
		"listen_addr", addr,
		"node", cfg.Server.Node,
		"sample_rate_hz", state.Source.SampleRateHz,
		"mode", state.Demod.Mode.String(),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sup.Run(ctx)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("shutdown complete")
	return 0
}
