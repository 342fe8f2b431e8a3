package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"integrationhub/internal/config"
	"integrationhub/pkg/logging"
)

// shutdownGrace bounds how long HTTPServer.Shutdown waits for
// in-flight requests to finish.
const shutdownGrace = 10 * time.Second

// runServer starts the HTTP edge and auxiliary components, blocks
// until ctx is canceled or SIGINT/SIGTERM arrives, then tears
// everything down in reverse start order.
func runServer(ctx context.Context, opts *Options, services *Services) error {
	logging.Info("Bootstrap", "starting HTTP edge on %s", opts.HTTPAddr)

	serveErrCh := make(chan error, 1)
	go func() {
		if err := services.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
			return
		}
		serveErrCh <- nil
	}()

	if services.Scanner != nil {
		services.Scanner.Start(ctx)
		logging.Info("Bootstrap", "auto-discovery scanner started")
	}

	var watcher *config.Watcher
	if opts.WatchConfig && opts.ConfigPath != "" {
		watcher = config.NewWatcher(opts.ConfigPath, func(cfg config.Config) {
			logging.Info("Bootstrap", "configuration changed on disk and was reloaded; running components keep the configuration they were started with")
		})
		if err := watcher.Start(); err != nil {
			logging.Warn("Bootstrap", "failed to start config watcher: %v", err)
			watcher = nil
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logging.Info("Bootstrap", "ready")

	select {
	case <-ctx.Done():
	case <-sigCh:
	case err := <-serveErrCh:
		if err != nil {
			logging.Error("Bootstrap", err, "HTTP edge failed")
		}
	}

	logging.Info("Bootstrap", "shutting down")

	if watcher != nil {
		watcher.Stop()
	}
	if services.Scanner != nil {
		services.Scanner.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := services.HTTPServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("Bootstrap", err, "HTTP edge shutdown")
		return err
	}
	return nil
}
