// Trackd-sim runs simulated trackers against a trackd server.
//
// Each simulated tracker handshakes, announces its sensors and streams
// rotation, battery and heartbeat packets, answering the server's pings the
// way tracker firmware does. It is meant for load testing and for trying the
// monitor without hardware.
//
// Usage:
//
//	trackd-sim [flags]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/trackd/internal/discovery"
	"github.com/muurk/trackd/internal/logging"
	"github.com/muurk/trackd/internal/protocol"
	"github.com/muurk/trackd/internal/sim"
	"github.com/muurk/trackd/internal/ui"
	"github.com/muurk/trackd/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	serverAddr string
	instance   string
	macFlag    string
	count      int
	sensors    int
	rate       time.Duration
	duration   time.Duration
	firmware   string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "trackd-sim",
	Short: "Simulate body-motion trackers",
	Long: `Run one or more simulated trackers against a trackd server.

Without --server the simulator finds a server over mDNS. With --count above
one, each extra tracker gets the next MAC address.`,
	Example: `  # One tracker against the local server
  trackd-sim --server 127.0.0.1:6969

  # Ten two-sensor trackers found over mDNS, for one minute
  trackd-sim --count 10 --sensors 2 --duration 1m`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runSim,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&serverAddr, "server", "", "Server address host:port (default: discover over mDNS)")
	f.StringVar(&instance, "instance", "", "mDNS instance name to look for")
	f.StringVar(&macFlag, "mac", "DE:AD:BE:EF:00:01", "MAC address of the first tracker")
	f.IntVarP(&count, "count", "n", 1, "Number of trackers")
	f.IntVar(&sensors, "sensors", 1, "Sensors per tracker (1-8)")
	f.DurationVar(&rate, "rate", sim.DefaultRate, "Interval between rotation updates")
	f.DurationVar(&duration, "duration", 0, "Stop after this long (0 = until interrupted)")
	f.StringVar(&firmware, "firmware", sim.DefaultFirmware, "Firmware version to report")
	f.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to $TRACKD_LOG_LEVEL")
}

func runSim(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()

	if count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}
	base, err := protocol.ParseHardwareAddr(macFlag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	addr := serverAddr
	if addr == "" {
		srv, err := discovery.NewScanner().WaitForServer(ctx, instance)
		if err != nil {
			return err
		}
		addr = srv.Addr()
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Tracker Simulator", "trackd-sim",
		ui.Param{Key: "Server", Value: addr},
		ui.Param{Key: "Trackers", Value: strconv.Itoa(count)},
		ui.Param{Key: "Sensors", Value: strconv.Itoa(sensors)},
		ui.Param{Key: "Rate", Value: rate.String()},
	)

	trackers := make([]*sim.Tracker, count)
	for i := range trackers {
		t, err := sim.New(sim.Config{
			Server:   addr,
			MAC:      nthMAC(base, i),
			Sensors:  sensors,
			Rate:     rate,
			Firmware: firmware,
		})
		if err != nil {
			return err
		}
		trackers[i] = t
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range trackers {
		t := t
		g.Go(func() error { return t.Run(gctx) })
	}
	runErr := g.Wait()
	if runErr != nil {
		logging.Error("Simulation stopped", zap.Error(runErr))
	}

	rows := make([][]string, 0, count)
	for i, t := range trackers {
		st := t.Stats()
		status := ui.FailureMarker
		select {
		case <-t.Acked():
			status = ui.SuccessMarker
		default:
		}
		rows = append(rows, []string{
			status,
			nthMAC(base, i).String(),
			strconv.FormatUint(st.Sent, 10),
			strconv.FormatUint(st.Received, 10),
			strconv.FormatUint(st.PingsEchoed, 10),
		})
	}
	p.PrintTable([]string{"", "MAC", "SENT", "RECEIVED", "PINGS"}, rows)
	p.PrintSuccess("Simulation finished", ui.Param{Key: "Ran for", Value: time.Since(start).Round(time.Millisecond).String()})

	return runErr
}

// nthMAC offsets the low bytes of base by n.
func nthMAC(base protocol.HardwareAddr, n int) protocol.HardwareAddr {
	mac := base
	v := uint32(mac[3])<<16 | uint32(mac[4])<<8 | uint32(mac[5])
	v += uint32(n)
	mac[3], mac[4], mac[5] = byte(v>>16), byte(v>>8), byte(v)
	return mac
}
