package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	sendPayloadPath string
	sendRawPayload  string
	sendScope       string
)

var sendCmd = &cobra.Command{
	Use:   "send <event-type>",
	Short: "Dispatch an event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if sendPayloadPath == "" && sendRawPayload == "" {
			return fmt.Errorf("must provide either --payload or --raw")
		}
		if sendPayloadPath != "" && sendRawPayload != "" {
			return fmt.Errorf("cannot provide both --payload and --raw")
		}

		var raw []byte
		var err error
		if sendPayloadPath != "" {
			raw, err = os.ReadFile(sendPayloadPath)
			if err != nil {
				return fmt.Errorf("read payload file: %w", err)
			}
		} else {
			raw = []byte(sendRawPayload)
		}

		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("parse JSON payload: %w", err)
		}

		client := newAPIClient(cfg.ServerAddr, cfg.APIKey)
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()

		resp, err := client.dispatch(ctx, dispatchRequest{
			EventType: args[0],
			Data:      data,
			Scope:     sendScope,
		})
		if err != nil {
			return err
		}

		if flagQuiet {
			fmt.Println(resp.EnvelopeID)
			return nil
		}
		if flagJSON {
			out, _ := json.MarshalIndent(resp, "", "  ")
			fmt.Println(string(out))
			return nil
		}

		fmt.Printf("Envelope %s dispatched: %d succeeded, %d failed\n",
			resp.EnvelopeID, resp.Succeeded, resp.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendPayloadPath, "payload", "", "Path to JSON payload file")
	sendCmd.Flags().StringVar(&sendRawPayload, "raw", "", "Raw JSON payload string")
	sendCmd.Flags().StringVar(&sendScope, "scope", "", "Tenant scope for the event")
}
