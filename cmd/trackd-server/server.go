package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/trackd/internal/logging"
	"github.com/muurk/trackd/internal/server"
)

var (
	host           string
	udpPort        int
	httpPort       int
	timeout        time.Duration
	pingInterval   time.Duration
	analysisDir    string
	captureFile    string
	advertise      bool
	instance       string
	legacyGreeting bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the tracker server",
	Long: `Start the UDP server that trackers connect to.

Defaults for ports, timeouts and advertising come from the config file and
can be overridden with flags. Every tracker that completes a handshake is
recorded in the config file so it can be given a nickname with
'trackd-server trackers rename'.

To capture traffic for protocol analysis, use --analysis-dir to write JSON
Lines logs and --capture to write a pcap file for 'trackd-server replay'
or Wireshark.`,
	Example: `  # Start with config file defaults (UDP 6969, HTTP 8266)
  trackd-server server

  # Custom port with debug logging (hex dumps every datagram)
  trackd-server server --port 7000 --log-level debug

  # Record the session for later replay
  trackd-server server --capture session.pcap --analysis-dir ./captures

  # Older firmware that waits for the text greeting
  trackd-server server --legacy-greeting`,
	RunE: runServer,
}

func init() {
	f := serverCmd.Flags()
	f.StringVar(&host, "host", "", "Address to listen on (empty = all interfaces)")
	f.IntVar(&udpPort, "port", 0, "Tracker UDP port (default from config, 6969)")
	f.IntVar(&httpPort, "http-port", 0, "HTTP port for /metrics, /feed and /trackers, -1 to disable (default from config, 8266)")
	f.DurationVar(&timeout, "timeout", 0, "Drop trackers silent for this long (default from config, 5s)")
	f.DurationVar(&pingInterval, "ping-interval", 0, "How often to ping trackers (default from config, 1s)")
	f.StringVar(&analysisDir, "analysis-dir", "", "Directory to write datagram analysis logs")
	f.StringVar(&captureFile, "capture", "", "Write all traffic to this pcap file")
	f.BoolVar(&advertise, "advertise", true, "Advertise the server over mDNS")
	f.StringVar(&instance, "instance", "", "mDNS instance name (default \"trackd on <hostname>\")")
	f.BoolVar(&legacyGreeting, "legacy-greeting", false, "Send the legacy text greeting before each handshake response")
}

func runServer(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	prefs := reg.Server
	flags := cmd.Flags()

	cfg := &server.Config{
		Host:           host,
		Port:           prefs.UDPPort,
		HTTPPort:       prefs.HTTPPort,
		Timeout:        prefs.Timeout(),
		PingInterval:   prefs.PingInterval(),
		LogLevel:       logLevel,
		AnalysisDir:    prefs.AnalysisDir,
		Advertise:      prefs.Advertise,
		Instance:       instance,
		LegacyGreeting: prefs.LegacyGreeting,
		CaptureFile:    captureFile,
		Registry:       reg,
		RegistryPath:   configPath,
	}
	if flags.Changed("port") {
		cfg.Port = udpPort
	}
	if flags.Changed("http-port") {
		cfg.HTTPPort = httpPort
		if httpPort < 0 {
			cfg.HTTPPort = 0
		}
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("ping-interval") {
		cfg.PingInterval = pingInterval
	}
	if flags.Changed("analysis-dir") {
		cfg.AnalysisDir = analysisDir
	}
	if flags.Changed("advertise") {
		cfg.Advertise = advertise
	}
	if flags.Changed("legacy-greeting") {
		cfg.LegacyGreeting = legacyGreeting
	}
	if cfg.LogLevel == "" && os.Getenv(logging.LogLevelEnvVar) == "" {
		cfg.LogLevel = "info"
	}

	if cfg.PingInterval >= cfg.Timeout {
		return fmt.Errorf("ping interval (%s) must be shorter than the timeout (%s)", cfg.PingInterval, cfg.Timeout)
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
