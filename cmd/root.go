// Package cmd implements the hub's command-line entry points.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, bootstrap failed).
	ExitCodeError = 1
)

// rootCmd is the base command; running it with no subcommand prints
// its help. The hub itself is started with `serve`.
var rootCmd = &cobra.Command{
	Use:   "hubctl",
	Short: "Integration Hub — register, monitor and deintegrate integrations",
	Long: `hubctl runs the Integration Hub: the registry, health prober, event
bus, webhook deliverer, deintegration manager and auto-discovery
scanner described in its design, served behind an HTTP edge.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command, injected at build time.
func SetVersion(v string) { rootCmd.Version = v }

// Execute is the entry point called from main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "hubctl version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
