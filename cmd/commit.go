package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/stoneage-tools/ap-inbox/pkg/epicor"
)

var commitVendorID string

var commitCmd = &cobra.Command{
	Use:   "commit [message-id]",
	Short: "Commit a processed message's extracted invoice to the ERP",
	Long:  "Loads the extraction for an already-processed message and runs the AP invoice commit workflow against the vendor confirmed with --vendor-id.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Ledger.Find(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if result == nil {
			return eris.Errorf("message %s has not been processed", args[0])
		}
		if result.Extracted == nil {
			return eris.Errorf("message %s has no extracted invoice", args[0])
		}

		outcome, err := env.ERP.CreateInvoice(cmd.Context(), epicor.CreateInvoiceRequest{
			VendorID: commitVendorID,
			Invoice:  result.Extracted,
		})
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(outcome, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		if !outcome.Success {
			return eris.Errorf("commit failed: %s", outcome.Error)
		}
		return nil
	},
}

func init() {
	commitCmd.Flags().StringVar(&commitVendorID, "vendor-id", "", "confirmed ERP vendor ID (required)")
	commitCmd.MarkFlagRequired("vendor-id")
	rootCmd.AddCommand(commitCmd)
}
