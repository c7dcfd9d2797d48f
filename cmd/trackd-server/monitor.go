package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/muurk/trackd/internal/discovery"
	"github.com/muurk/trackd/internal/feed"
	"github.com/muurk/trackd/internal/logging"
	"github.com/muurk/trackd/internal/monitor"
)

var (
	monitorURL      string
	monitorInstance string
	monitorPlain    bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch live tracker activity",
	Long: `Connect to a running server's websocket feed and show live tracker state.

Without --url the monitor connects to the local server on the HTTP port from
the config file. --instance finds a server by its mDNS name instead.

When stdout is not a terminal use --plain to print one line per event.`,
	Example: `  # Local server
  trackd-server monitor

  # A server elsewhere on the LAN
  trackd-server monitor --instance "trackd on studio-pc"

  # Log events to a file
  trackd-server monitor --plain > events.log`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorURL, "url", "", "Feed URL (ws://host:port/feed)")
	monitorCmd.Flags().StringVar(&monitorInstance, "instance", "", "Find the server by mDNS instance name")
	monitorCmd.Flags().BoolVar(&monitorPlain, "plain", false, "Print events as lines instead of the full screen view")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	url, err := resolveFeedURL(cmd)
	if err != nil {
		return err
	}

	if !monitorPlain {
		return monitor.Run(ctx, url)
	}

	events, err := feed.Dial(ctx, url)
	if err != nil {
		return err
	}
	return monitor.Stream(ctx, events, cmd.OutOrStdout())
}

func resolveFeedURL(cmd *cobra.Command) (string, error) {
	if monitorURL != "" {
		return monitorURL, nil
	}

	if monitorInstance != "" {
		srv, err := discovery.NewScanner().WaitForServer(cmd.Context(), monitorInstance)
		if err != nil {
			return "", err
		}
		url := srv.FeedURL()
		if url == "" {
			return "", fmt.Errorf("%s does not serve a feed (HTTP disabled)", srv)
		}
		return url, nil
	}

	reg, err := loadRegistry()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if reg.Server.HTTPPort <= 0 {
		return "", fmt.Errorf("HTTP is disabled in the config file; pass --url")
	}
	return "ws://127.0.0.1:" + strconv.Itoa(reg.Server.HTTPPort) + "/feed", nil
}
