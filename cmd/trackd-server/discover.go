package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/trackd/internal/discovery"
	"github.com/muurk/trackd/internal/ui"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find trackd servers on the network",
	Long: `Browse mDNS for trackd servers on the local network.

Servers started with advertising enabled (the default) publish their UDP
port and, when HTTP is enabled, the port of their /feed and /metrics
endpoints.`,
	Example: `  # Scan for 5 seconds (default)
  trackd-server discover

  # Longer scan for busy networks
  trackd-server discover --timeout 15s`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", discovery.DefaultScanTimeout, "How long to listen for servers")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())
	p.Println(ui.MutedStyle.Render(fmt.Sprintf("  Scanning for trackd servers (timeout: %s)...", discoverTimeout)))
	p.Newline()

	scanner := discovery.NewScanner()
	scanner.Timeout = discoverTimeout

	servers, err := scanner.Scan(cmd.Context())
	if err != nil {
		p.PrintError("Discovery failed", err,
			"Check that multicast traffic is allowed on this network",
			"Firewalls often block UDP port 5353",
		)
		return err
	}

	if len(servers) == 0 {
		p.PrintWarning("No servers found",
			ui.Param{Key: "Service", Value: discovery.ServiceType},
			ui.Param{Key: "Timeout", Value: discoverTimeout.String()},
		)
		return nil
	}

	rows := make([][]string, 0, len(servers))
	for _, s := range servers {
		feed := s.FeedURL()
		if feed == "" {
			feed = "-"
		}
		version := s.GetMetadata(discovery.TxtVersion)
		if version == "" {
			version = "-"
		}
		rows = append(rows, []string{s.Instance, s.Addr(), feed, version})
	}
	p.PrintTable([]string{"INSTANCE", "UDP", "FEED", "VERSION"}, rows)
	p.Newline()
	p.Println(ui.MutedStyle.Render("  Found " + strconv.Itoa(len(servers)) + " server(s). Use 'trackd-server monitor --url <feed>' to watch one."))
	return nil
}
