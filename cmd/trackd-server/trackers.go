package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/muurk/trackd/internal/config"
	"github.com/muurk/trackd/internal/protocol"
	"github.com/muurk/trackd/internal/ui"
)

var (
	trackersJSON bool
	forgetAll    bool
	forgetYes    bool
)

var trackersCmd = &cobra.Command{
	Use:   "trackers",
	Short: "Manage known trackers",
	Long: `List, rename and forget the trackers recorded in the config file.

The server records every tracker that completes a handshake, keyed by its
MAC address. Nicknames set here are shown in logs, the feed and the monitor.`,
}

var trackersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known trackers",
	Example: `  trackd-server trackers list
  trackd-server trackers list --json`,
	Args: cobra.NoArgs,
	RunE: runTrackersList,
}

var trackersRenameCmd = &cobra.Command{
	Use:   "rename <mac> <nickname>",
	Short: "Set a tracker's nickname",
	Example: `  trackd-server trackers rename DE:AD:BE:EF:00:01 "left foot"

  # Clear a nickname
  trackd-server trackers rename DE:AD:BE:EF:00:01 ""`,
	Args: cobra.ExactArgs(2),
	RunE: runTrackersRename,
}

var trackersForgetCmd = &cobra.Command{
	Use:   "forget [mac]",
	Short: "Remove trackers from the config file",
	Example: `  trackd-server trackers forget DE:AD:BE:EF:00:01
  trackd-server trackers forget --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTrackersForget,
}

func init() {
	trackersListCmd.Flags().BoolVar(&trackersJSON, "json", false, "Output JSON")
	trackersForgetCmd.Flags().BoolVar(&forgetAll, "all", false, "Forget every tracker")
	trackersForgetCmd.Flags().BoolVarP(&forgetYes, "yes", "y", false, "Skip the confirmation prompt")

	trackersCmd.AddCommand(trackersListCmd)
	trackersCmd.AddCommand(trackersRenameCmd)
	trackersCmd.AddCommand(trackersForgetCmd)
}

func runTrackersList(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	entries := reg.ListTrackers()

	if trackersJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	if len(entries) == 0 {
		p.Println(ui.MutedStyle.Render("  No trackers recorded yet. Start 'trackd-server server' and power one on."))
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, trackerRow(e))
	}
	p.PrintTable([]string{"MAC", "NICKNAME", "FIRMWARE", "BOARD", "LAST IP", "LAST SEEN"}, rows)
	return nil
}

func trackerRow(e config.TrackerEntry) []string {
	nickname := e.Nickname
	if nickname == "" {
		nickname = "-"
	}
	firmware := e.Firmware
	if firmware == "" {
		firmware = "-"
	} else if e.FirmwareBuild != 0 {
		firmware += " (" + strconv.Itoa(int(e.FirmwareBuild)) + ")"
	}
	lastSeen := "-"
	if !e.LastSeen.IsZero() {
		lastSeen = e.LastSeen.Local().Format("2006-01-02 15:04:05")
	}
	lastIP := e.LastIP
	if lastIP == "" {
		lastIP = "-"
	}
	return []string{e.MAC, nickname, firmware, strconv.Itoa(int(e.BoardType)), lastIP, lastSeen}
}

// normalizeMAC parses mac and returns it in the form the server records.
func normalizeMAC(mac string) (string, error) {
	addr, err := protocol.ParseHardwareAddr(mac)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

func runTrackersRename(cmd *cobra.Command, args []string) error {
	mac, err := normalizeMAC(args[0])
	if err != nil {
		return err
	}
	reg, err := loadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	reg.SetNickname(mac, args[1])
	if err := saveRegistry(reg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintSuccess("Tracker renamed",
		ui.Param{Key: "MAC", Value: mac},
		ui.Param{Key: "Nickname", Value: reg.GetDisplayName(mac)},
	)
	return nil
}

func runTrackersForget(cmd *cobra.Command, args []string) error {
	if forgetAll == (len(args) == 1) {
		return fmt.Errorf("give either a MAC address or --all")
	}
	reg, err := loadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	p := ui.NewPrinter(cmd.OutOrStdout())

	var removed int
	if forgetAll {
		entries := reg.ListTrackers()
		if len(entries) == 0 {
			p.Println(ui.MutedStyle.Render("  No trackers to forget."))
			return nil
		}
		if !forgetYes && !ui.Confirm(os.Stdin, cmd.OutOrStdout(), "FORGET ALL TRACKERS",
			[]string{
				fmt.Sprintf("Removes %d tracker(s) from the config file", len(entries)),
				"Nicknames cannot be recovered",
				"Trackers are recorded again on their next handshake",
			}, "forget") {
			return nil
		}
		for _, e := range entries {
			if reg.RemoveTracker(e.MAC) {
				removed++
			}
		}
	} else {
		mac, err := normalizeMAC(args[0])
		if err != nil {
			return err
		}
		if !reg.RemoveTracker(mac) {
			return fmt.Errorf("tracker %s is not in the config file", mac)
		}
		removed = 1
	}

	if err := saveRegistry(reg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	p.PrintSuccess("Trackers forgotten", ui.Param{Key: "Removed", Value: strconv.Itoa(removed)})
	return nil
}
