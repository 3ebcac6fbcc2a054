package cli

import (
	"github.com/spf13/cobra"

	"github.com/tessro/dbxlink/internal/tui"
)

var monitorLogSize int

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Launch the interactive link monitor",
	Long:  "Show the state of both daemon channels and a live log of link changes and notifications.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newSession()
		feed, unsubscribe := tui.Feed(s.client, s.overlay)
		defer unsubscribe()

		s.start(cmd.Context())
		defer s.Close()
		return tui.Run(s.client, feed, &tui.Options{LogSize: monitorLogSize})
	},
}

func init() {
	monitorCmd.Flags().IntVar(&monitorLogSize, "history", 1000, "number of events to keep")
	rootCmd.AddCommand(monitorCmd)
}
