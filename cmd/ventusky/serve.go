package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/roemer/goventusky"
	"github.com/roemer/goventusky/internal/config"
	"github.com/roemer/goventusky/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	shutdownTimeout     = 10 * time.Second
	readHeaderTimeout   = 5 * time.Second
	redisConnectTimeout = 5 * time.Second
)

func newServeCommand() *cobra.Command {
	var flagKeys map[string]string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Refresh the forecast on a schedule and serve it over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd, flagKeys)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
	flagKeys = positionFlags(cmd)
	cmd.Flags().String("address", "", "listen address (default from config)")
	flagKeys["server.address"] = "address"
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	service, err := newService(cfg, log)
	if err != nil {
		return err
	}

	closeRedis, err := addRedisCache(service, cfg)
	if err != nil {
		return err
	}
	defer closeRedis()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := ventusky.NewMetrics(registry)

	refresher, err := ventusky.NewRefresher(service, cfg.Location.Latitude, cfg.Location.Longitude, cfg.Refresh.Interval, log, metrics)
	if err != nil {
		return err
	}
	refresher.SetRefreshTimeout(cfg.Refresh.Timeout)
	refresher.SetResultCache(service)
	if err := refresher.Start(ctx); err != nil {
		return err
	}
	defer refresher.Stop()

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.NewRouter(refresher, registry, log),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening",
			zap.String("address", cfg.Server.Address),
			zap.String("location", cfg.Location.Name),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// addRedisCache adds a redis layer behind the memory and disk caches when configured.
func addRedisCache(service *ventusky.VentuskyService, cfg *config.Config) (func(), error) {
	if cfg.Cache.RedisAddress == "" {
		return func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddress})
	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	service.AddCache(&ventusky.RedisCache[ventusky.ForecastResult]{
		Client:    client,
		Retention: cfg.Cache.RedisRetention,
	})
	return func() { _ = client.Close() }, nil
}
