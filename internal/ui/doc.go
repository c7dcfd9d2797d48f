// Package ui provides terminal output components for the trackd CLIs.
//
// Components follow a "print once" pattern: commands render a header when
// they start and a result box when they finish. The live monitor in package
// monitor shares the palette defined here.
//
//   - Header: command banner with ordered parameters
//   - Result: success, failure and warning boxes
//   - Progress: byte-based progress line for capture replay
//   - Printer: writes the above plus plain column tables
//   - Confirm: typed-phrase confirmation for destructive commands
//
// Example:
//
//	p := ui.NewPrinter(os.Stdout)
//	p.PrintHeader("Replay", "trackd-server replay session.pcap",
//	    ui.Param{Key: "Port", Value: "6969"})
//	p.PrintSuccess("Replay complete", ui.Param{Key: "Datagrams", Value: "1204"})
package ui
