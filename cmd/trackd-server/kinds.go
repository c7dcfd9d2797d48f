package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/muurk/trackd/internal/protocol"
	"github.com/muurk/trackd/internal/ui"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the packet kinds the parser understands",
	Long: `List every packet kind registered in the parser's catalog.

Frames of any other kind, including the reserved kinds 2 and 4-9, are
counted and skipped.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		rows := [][]string{}
		for _, k := range protocol.DefaultCatalog().Kinds() {
			rows = append(rows, []string{strconv.Itoa(int(k)), k.String()})
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintTable([]string{"KIND", "NAME"}, rows)
	},
}
