package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// versionCheckTimeout bounds the HTTP edge reachability probe.
const versionCheckTimeout = 2 * time.Second

// newVersionCmd creates the command for displaying the CLI version and
// whether a hub instance is reachable on the default HTTP edge address.
func newVersionCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the hubctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hubctl version %s\n", rootCmd.Version)

			if err := probeEdge(addr); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "edge %s: not reachable (%v)\n", addr, err)
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "edge %s: reachable\n", addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "hub HTTP edge base URL")
	return cmd
}

// probeEdge checks whether a hub instance answers on its HTTP edge.
func probeEdge(addr string) error {
	client := &http.Client{Timeout: versionCheckTimeout}
	resp, err := client.Get(addr + "/integrations/")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
