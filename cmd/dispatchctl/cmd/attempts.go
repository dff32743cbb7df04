package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var attemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "View recent delivery attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient(cfg.ServerAddr, cfg.APIKey)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		attempts, err := client.listAttempts(ctx)
		if err != nil {
			return err
		}

		if flagJSON {
			out, _ := json.MarshalIndent(attempts, "", "  ")
			fmt.Println(string(out))
			return nil
		}

		if len(attempts) == 0 {
			fmt.Println("No delivery attempts recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEVENT\tDESTINATION\tSTATUS\tATTEMPTS\tLAST ERROR")
		for _, a := range attempts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				a.ID,
				a.EventType,
				a.DestinationURL,
				a.Status,
				a.AttemptCount,
				a.LastError,
			)
		}
		w.Flush()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(attemptsCmd)
}
