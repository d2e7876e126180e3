package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aurascope",
	Short: "Aurascope - real-time audio engine telemetry",
	Long: `Aurascope captures audio engine state snapshots and streams them to
observer tools over WebSocket.

The serve command runs a telemetry server fed by a simulated engine,
useful for developing observers without a running game. The watch
command connects to any telemetry server and prints the stream.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}
