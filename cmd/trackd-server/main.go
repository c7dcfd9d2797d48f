// Trackd-server receives UDP traffic from body-motion trackers.
//
// It answers the tracker control protocol, keeps per-tracker state, and
// exposes metrics and a live packet feed over HTTP. The same binary replays
// packet captures through the parser, finds servers on the LAN and shows
// the live monitor.
//
// Usage:
//
//	trackd-server [command] [flags]
//
// See 'trackd-server --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/trackd/internal/config"
	"github.com/muurk/trackd/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "trackd-server",
	Short: "Body-motion tracker UDP server",
	Long: `A server for wireless body-motion trackers.

Trackers stream orientation, battery and sensor status over a compact binary
UDP protocol. trackd-server answers their handshakes, heartbeats and pings,
tracks each one's state, and publishes decoded packets to a websocket feed.

Run 'trackd-server server' to start listening, or 'trackd-server monitor' to
watch a running server.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.config/trackd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to $TRACKD_LOG_LEVEL")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(trackersCmd)
	rootCmd.AddCommand(kindsCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadRegistry loads the registry from --config or the default location.
func loadRegistry() (*config.Registry, error) {
	if configPath != "" {
		return config.LoadRegistryFrom(configPath)
	}
	return config.LoadRegistry()
}

// saveRegistry writes reg back to where loadRegistry found it.
func saveRegistry(reg *config.Registry) error {
	if configPath != "" {
		return reg.SaveTo(configPath)
	}
	return reg.Save()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "trackd-server %s (%s)\n", version.Full(), version.Platform())
	},
}
