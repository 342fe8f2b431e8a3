package cmd

import (
	"context"
	"fmt"

	"integrationhub/internal/app"

	"github.com/spf13/cobra"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveConfigPath points at a directory containing config.yaml.
// When empty, the hub runs on compiled-in defaults.
var serveConfigPath string

// serveAddr is the address the HTTP edge listens on.
var serveAddr string

// serveWatch enables fsnotify-based watching of config.yaml. A change is
// reloaded and logged; running components keep their start-up values.
var serveWatch bool

// serveCmd starts the hub: Port Allocator, Event Bus, Health Prober,
// Registry, Webhook Deliverer, Deintegration Manager, Auto-Discovery
// Scanner and HTTP edge, then blocks until signaled to stop.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Integration Hub's HTTP edge and background components",
	Long: `Starts the Integration Hub: wires the registry, health prober,
event bus, webhook deliverer, deintegration manager and (if configured)
the auto-discovery scanner, then serves the HTTP edge until interrupted.

Configuration is loaded from config.yaml in --config-path, if given;
otherwise the hub runs on its compiled-in defaults (portRange
3000-9999, eventBus.maxHistorySize 1000, deintegrationPath
./data/deintegrations, autoDiscovery disabled, healthCheck defaults
30s/5s).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	opts := app.NewOptions(serveDebug, serveConfigPath)
	if serveAddr != "" {
		opts.HTTPAddr = serveAddr
	}
	opts.WatchConfig = serveWatch

	application, err := app.NewApplication(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "directory containing config.yaml")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address for the HTTP edge to listen on")
	serveCmd.Flags().BoolVar(&serveWatch, "watch-config", false, "watch config.yaml and log reloads on change")
}
