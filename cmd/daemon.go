/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/commtray/commtrayd/internal/audio"
	"github.com/commtray/commtrayd/internal/config"
	"github.com/commtray/commtrayd/internal/contacts"
	"github.com/commtray/commtrayd/internal/dispatch"
	"github.com/commtray/commtrayd/internal/eventstream"
	"github.com/commtray/commtrayd/internal/logging"
	"github.com/commtray/commtrayd/internal/metrics"
	"github.com/commtray/commtrayd/internal/notifier"
	"github.com/commtray/commtrayd/internal/ports"
	sinksqlite "github.com/commtray/commtrayd/internal/sink/sqlite"
	"github.com/commtray/commtrayd/internal/telephony"
)

// pruneInterval is how often empty groups are swept.
const pruneInterval = 5 * time.Minute

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the notification daemon",
	Long: `Run the notification daemon: serve the event stream socket,
maintain notification groups, and keep published notifications in sync
with contact and voicemail state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		return runDaemon(cfg)
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cfg config.Config) error {
	logger, err := logging.Init(logging.Config{
		Level: cfg.Logging.Level,
		File:  cfg.Logging.File,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Shutdown() }()

	for _, path := range []string{cfg.Storage.NotificationsDB, cfg.Storage.ContactsDB, cfg.Daemon.SocketPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("create directory for %s: %w", path, err)
		}
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	store, err := sinksqlite.New(cfg.Storage.NotificationsDB, m, logger)
	if err != nil {
		return fmt.Errorf("open notification store: %w", err)
	}
	defer func() { _ = store.Shutdown() }()

	directory, err := contacts.OpenDirectory(cfg.Storage.ContactsDB, logger)
	if err != nil {
		return fmt.Errorf("open contact directory: %w", err)
	}
	defer func() { _ = directory.Close() }()

	loop := dispatch.New(logger)
	player := audio.NewPlayer(audio.NewNopBackend(), logger)
	watcher := telephony.NewWatcher(store, logger)
	server, observed := eventstream.NewServer(loop, watcher, player, directory, store, logger)

	// The resolver delivers batches to the registry, which does not exist
	// yet when the resolver is built; bind it through the closure.
	var registry *notifier.Registry
	resolver := contacts.NewResolver(directory, loop.Post, func(resolutions []ports.Resolution) {
		registry.OnResolutionFinished(resolutions)
	}, logger)
	registry = notifier.NewRegistry(store, resolver, player, observed, m, logger)
	server.SetRegistry(registry)

	store.SetClosedHandler(func(id uint32, reason ports.CloseReason) {
		loop.Post(func() { registry.OnSinkClosed(id, reason) })
	})
	loop.SetTurnHook(registry.Flush)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := listenUnix(cfg.Daemon.SocketPath)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(cfg.Daemon.SocketPath) }()

	// Restore notification state before accepting signals.
	loop.Post(registry.SyncFromSink)

	errCh := make(chan error, 3)
	go func() { errCh <- loop.Run(ctx) }()
	go func() { errCh <- server.Serve(ctx, listener) }()
	go runMetricsServer(ctx, cfg.Daemon.MetricsListen, promReg, logger, errCh)
	go runPruneTicker(ctx, loop, registry)

	logger.Info("daemon started", "socket", cfg.Daemon.SocketPath)
	<-ctx.Done()
	logger.Info("daemon stopping")

	// Give the loop and server a moment to wind down.
	for i := 0; i < 2; i++ {
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("shutdown error", "error", err)
			}
		case <-time.After(2 * time.Second):
			return nil
		}
	}
	return nil
}

// listenUnix binds the event stream socket, clearing a stale socket file
// left by an unclean previous shutdown.
func listenUnix(path string) (net.Listener, error) {
	if _, err := os.Stat(path); err == nil {
		if _, err := net.Dial("unix", path); err == nil {
			return nil, fmt.Errorf("socket %s is already in use", path)
		}
		_ = os.Remove(path)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	return listener, nil
}

func runMetricsServer(ctx context.Context, addr string, reg *prometheus.Registry, logger logging.Logger, errCh chan<- error) {
	if addr == "" {
		errCh <- nil
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", addr)
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	errCh <- err
}

func runPruneTicker(ctx context.Context, loop *dispatch.Loop, registry *notifier.Registry) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			loop.Post(registry.Prune)
		}
	}
}
