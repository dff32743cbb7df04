package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dispatchctl/internal/config"
)

var (
	cfg        *config.CLI
	flagServer string
	flagJSON   bool
	flagQuiet  bool
)

var rootCmd = &cobra.Command{
	Use:   "dispatchctl",
	Short: "CLI for the dispatchd event notification dispatcher",
	Long: `dispatchctl manages webhook subscribers and dispatches events.

Dispatch events, register destinations, and monitor delivery attempts.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadCLI("")
		if err != nil {
			return err
		}
		if flagServer != "" {
			cfg.ServerAddr = flagServer
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagServer, "server", "s", "", "dispatchd server address")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "minimal output")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
