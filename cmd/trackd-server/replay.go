package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/trackd/internal/logging"
	"github.com/muurk/trackd/internal/protocol"
	"github.com/muurk/trackd/internal/replay"
	"github.com/muurk/trackd/internal/ui"
)

var (
	replayPort    int
	replayVerbose bool
	replayJSON    bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture.pcap>",
	Short: "Parse tracker traffic from a packet capture",
	Long: `Run the UDP datagrams in a pcap or pcapng capture through the protocol
parser and summarise what was found.

Datagrams sent to --port are parsed as tracker traffic; datagrams sent from
it are server responses and only counted. Use --port 0 to parse everything.

Captures can come from 'trackd-server server --capture' or from tcpdump:

  tcpdump -i any -w session.pcap udp port 6969`,
	Example: `  # Summary of a recorded session
  trackd-server replay session.pcap

  # Print every decoded packet
  trackd-server replay session.pcap --verbose

  # Decoded packets as JSON Lines for scripting
  trackd-server replay session.pcap --json | jq .`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().IntVar(&replayPort, "port", 6969, "Server UDP port (0 = parse every datagram)")
	replayCmd.Flags().BoolVarP(&replayVerbose, "verbose", "v", false, "Print every decoded packet")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "Print decoded packets as JSON Lines instead of a summary")
}

// replayRecord is one --json output line.
type replayRecord struct {
	Time     time.Time       `json:"time"`
	Src      string          `json:"src"`
	Kind     protocol.Kind   `json:"kind"`
	KindName string          `json:"kind_name"`
	Packet   protocol.Packet `json:"packet"`
}

// jsonLines writes replayRecords and keeps the first write error. Later
// packets are skipped once a write has failed.
type jsonLines struct {
	enc *json.Encoder
	err error
}

func (j *jsonLines) write(dg replay.Datagram, pkt protocol.Packet) {
	if j.err != nil {
		return
	}
	err := j.enc.Encode(replayRecord{
		Time:     dg.Time,
		Src:      dg.Src.String(),
		Kind:     pkt.Kind(),
		KindName: pkt.Kind().String(),
		Packet:   pkt,
	})
	if err != nil {
		j.err = fmt.Errorf("failed to write packet: %w", err)
	}
}

func runReplay(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat capture: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	p := ui.NewPrinter(out)

	a := &replay.Analyzer{Port: replayPort, Parser: protocol.NewParser()}

	if replayJSON {
		jl := &jsonLines{enc: json.NewEncoder(out)}
		a.OnPacket = jl.write
		if _, err := a.Analyze(ctx, f); err != nil {
			return err
		}
		return jl.err
	}

	p.PrintHeader("Replay", "trackd-server replay "+path,
		ui.Param{Key: "Capture", Value: path},
		ui.Param{Key: "Size", Value: formatBytes(info.Size())},
		ui.Param{Key: "Server port", Value: portLabel(replayPort)},
	)

	var src io.Reader = f
	var packets atomic.Int64
	stopProgress := func() {}
	if replayVerbose {
		a.OnPacket = func(dg replay.Datagram, pkt protocol.Packet) {
			packets.Add(1)
			data, _ := json.Marshal(pkt)
			p.Println(fmt.Sprintf("  %s  %-21s %-20s %s",
				dg.Time.Format("15:04:05.000"), dg.Src, pkt.Kind(), data))
		}
	} else if ui.IsTerminal() {
		counter := &countingReader{r: f}
		src = counter
		a.OnPacket = func(replay.Datagram, protocol.Packet) { packets.Add(1) }
		stopProgress = showProgress(out, info.Size(), counter, &packets)
	}

	sum, err := a.Analyze(ctx, src)
	stopProgress()
	if err != nil && ctx.Err() == nil {
		p.PrintError("Replay failed", err,
			"Check the file is a pcap or pcapng capture",
			"Captures must contain Ethernet, raw IP or Linux cooked frames",
		)
		return err
	}

	printSummary(p, sum)
	return nil
}

func printSummary(p *ui.Printer, sum *replay.Summary) {
	details := []ui.Param{
		{Key: "Records", Value: strconv.Itoa(sum.Stats.Packets)},
		{Key: "Datagrams", Value: fmt.Sprintf("%d in, %d out", sum.Inbound, sum.Outbound)},
		{Key: "Trackers", Value: strconv.Itoa(len(sum.Senders))},
		{Key: "Frames", Value: strconv.Itoa(sum.Frames)},
		{Key: "Packets", Value: strconv.Itoa(sum.Packets)},
	}
	if !sum.First.IsZero() {
		details = append(details, ui.Param{Key: "Duration", Value: sum.Last.Sub(sum.First).Round(time.Millisecond).String()})
	}

	p.Newline()
	if sum.Dropped() > 0 || sum.Aborted > 0 {
		details = append(details,
			ui.Param{Key: "Unknown kind", Value: strconv.Itoa(sum.Unknown)},
			ui.Param{Key: "Bad verifier", Value: strconv.Itoa(sum.BadVerifier)},
			ui.Param{Key: "Truncated", Value: strconv.Itoa(sum.Truncated)},
			ui.Param{Key: "Decode errors", Value: strconv.Itoa(sum.DecodeErrors)},
			ui.Param{Key: "Aborted scans", Value: strconv.Itoa(sum.Aborted)},
		)
		p.PrintWarning("Replay complete with dropped frames", details...)
	} else {
		p.PrintSuccess("Replay complete", details...)
	}

	if kinds := sum.Kinds(); len(kinds) > 0 {
		rows := make([][]string, 0, len(kinds))
		for _, k := range kinds {
			rows = append(rows, []string{strconv.Itoa(int(k.Kind)), k.Kind.String(), strconv.Itoa(k.Count)})
		}
		p.Newline()
		p.PrintTable([]string{"KIND", "NAME", "COUNT"}, rows)
	}
}

// countingReader counts bytes read for the progress line.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n.Add(int64(n))
	return n, err
}

// showProgress redraws a progress line until the returned func is called.
func showProgress(w io.Writer, total int64, counter *countingReader, packets *atomic.Int64) func() {
	bar := ui.NewProgress("", total, "packets")
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			bar.Update(counter.n.Load(), int(packets.Load()))
			fmt.Fprint(w, "\r"+bar.Render())
			select {
			case <-ctx.Done():
				fmt.Fprintln(w)
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		<-finished
	}
}

func portLabel(port int) string {
	if port == 0 {
		return "any"
	}
	return strconv.Itoa(port)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
