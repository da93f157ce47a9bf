// Spins up the command cache daemon: the expiring cache, the deletion cascade and a Redis protocol port to drive them.

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/nobletooth/cmdcache/pkg/cache"
	"github.com/nobletooth/cmdcache/pkg/cascade"
	"github.com/nobletooth/cmdcache/pkg/config"
	"github.com/nobletooth/cmdcache/pkg/port"
	"github.com/nobletooth/cmdcache/pkg/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	printVersion       = flag.Bool("print_version", false, "Print the version and exit.")
	cacheCapacity      = flag.Int("cache_capacity", 200, "Maximum number of commands kept in the cache; -1 disables the bound.")
	cachePurgeInterval = flag.Duration("cache_purge_interval", 30*time.Minute, "How often stale commands are swept.")
	cacheMaxAge        = flag.Duration("cache_max_age", 2*time.Hour, "Age after which a command is swept.")
	cascadeWorkers     = flag.Int("cascade_workers", 4, "Number of workers reaping deleted commands.")
	cascadeQueueSize   = flag.Int("cascade_queue_size", 256, "Buffered deletion notifications per cascade worker.")
	cascadeChannelName = flag.String("cascade_channel_name", "operator", "Name of the channel deleted items are logged under.")
	metricsAddress     = flag.String("metrics_address", ":9090", "The ip:port to serve Prometheus metrics on; empty disables it.")
)

// serveMetrics serves the Prometheus registry until `ctx` is done.
func serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: *metricsAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	config.InitFlags()
	utils.InitLogging()

	if *printVersion {
		slog.Info("Command cache build info.", utils.BuildAttrs()...)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)

	go func() { // Listen for OS interrupts in the background.
		select {
		case sig := <-signals:
			slog.Info("Received termination signal, cancelling server context.", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	associations, err := cache.NewExpiring(ctx, *cacheCapacity,
		cache.WithPurgeInterval(*cachePurgeInterval),
		cache.WithMaxAge(*cacheMaxAge),
		cache.WithLogger(slog.Default()))
	if err != nil {
		slog.Error("Failed to create the command cache.", "err", err)
		os.Exit(1)
	}
	defer associations.Close()

	dispatcher, err := cascade.NewDispatcher(cascade.NewReaper(associations, slog.Default()),
		*cascadeWorkers, *cascadeQueueSize)
	if err != nil {
		slog.Error("Failed to create the cascade dispatcher.", "err", err)
		os.Exit(1)
	}
	feed := make(chan cascade.Deletion, *cascadeQueueSize)

	var background sync.WaitGroup
	background.Add(1)
	go func() {
		defer background.Done()
		if err := dispatcher.Run(ctx, feed); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Cascade dispatcher stopped.", "err", err)
		}
	}()
	if *metricsAddress != "" {
		background.Add(1)
		go func() {
			defer background.Done()
			if err := serveMetrics(ctx); err != nil {
				slog.Error("Metrics server stopped.", "err", err)
			}
		}()
	}

	backend := port.Backend{
		Associations: associations,
		Deletions:    feed,
		Channel:      &cascade.LogChannel{Name: *cascadeChannelName, Logger: slog.Default()},
	}
	serverErr := port.RunRedisServer(ctx, backend)
	cancel()
	background.Wait()
	if serverErr != nil {
		slog.Error("Command cache server stopped.", "err", serverErr)
		associations.Close()
		os.Exit(1)
	}
	slog.Info("Command cache server stopped.", "uptime", time.Since(utils.StartTime))
}
