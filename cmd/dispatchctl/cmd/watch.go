package cmd

import (
	"github.com/spf13/cobra"
)

var watchEnvelopeID string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch delivery attempts in real time",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient(cfg.ServerAddr, cfg.APIKey)
		return NewUI(NewWatchModel(client, watchEnvelopeID)).Run()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchEnvelopeID, "envelope-id", "", "Filter by envelope ID")
}
