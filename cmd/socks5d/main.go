// Command socks5d runs a SOCKS5 proxy server (RFC 1928, RFC 1929).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/socks5d/socks5d/internal/config"
	"github.com/socks5d/socks5d/internal/metrics"
	"github.com/socks5d/socks5d/internal/netutil"
	"github.com/socks5d/socks5d/internal/socks5"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to YAML configuration file")
	testConfig := flag.Bool("t", false, "test configuration and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "socks5d: %v\n", err)
		return 1
	}

	if *testConfig {
		fmt.Printf("configuration OK: listening on %s:%d, methods=%v\n", cfg.Listen.Host, cfg.Listen.Port, cfg.Auth.Methods)
		return 0
	}

	logger := newLogger(cfg.Log)

	enabled, err := config.EnabledMethods(cfg)
	if err != nil {
		logger.Error("invalid auth configuration", slog.Any("error", err))
		return 1
	}

	credentials, err := config.LoadCredentials(cfg.Auth.CredentialsFile)
	if err != nil {
		logger.Error("failed to load credentials", slog.Any("error", err))
		return 1
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverOpts := []socks5.ServerOption{
		socks5.WithServerLogger(logger),
		socks5.WithServerMetrics(collector),
		socks5.WithMaxSessions(int64(cfg.Server.MaxSessions)),
		socks5.WithServerHandshakeTimeout(cfg.Server.HandshakeTimeout),
		socks5.WithServerDialTimeout(cfg.Server.DialTimeout),
	}

	if cfg.Server.OutboundIP != "" {
		outboundIP, err := netutil.ParseOutboundIP(cfg.Server.OutboundIP)
		if err != nil {
			logger.Error("invalid outbound IP", slog.Any("error", err))
			return 1
		}

		if cfg.Server.Interface != "" {
			if err := netutil.EnsureAddress(ctx, logger, cfg.Server.Interface, outboundIP); err != nil {
				logger.Error("failed to provision outbound address", slog.Any("error", err))
				return 1
			}
		}

		serverOpts = append(serverOpts, socks5.WithOutboundIP(outboundIP))
	}

	srv := socks5.NewServer(cfg.Listen.Host, uint16(cfg.Listen.Port), enabled, credentials, serverOpts...)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Serve(gCtx)
	})

	if cfg.Metrics.Addr != "" {
		metricsSrv := &http.Server{
			Addr:    cfg.Metrics.Addr,
			Handler: newMetricsMux(cfg.Metrics.Path, reg),
		}
		g.Go(func() error {
			return runMetricsServer(gCtx, metricsSrv, logger)
		})
	}

	logger.Info("socks5d starting",
		slog.String("listen", fmt.Sprintf("%s:%d", cfg.Listen.Host, cfg.Listen.Port)),
		slog.Any("methods", cfg.Auth.Methods),
	)

	if err := g.Wait(); err != nil {
		logger.Error("socks5d exited with error", slog.Any("error", err))
		return 1
	}

	logger.Info("socks5d stopped")
	return 0
}

func newMetricsMux(path string, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

func runMetricsServer(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", slog.Any("error", err))
			return err
		}
		return nil
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := config.ParseLogLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
