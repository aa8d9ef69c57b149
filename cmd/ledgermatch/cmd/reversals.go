package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ledgermatch/internal/models"
	"ledgermatch/internal/reversal"
)

var reversalsCmd = &cobra.Command{
	Use:   "reversals",
	Short: "Detect and link reversal transactions",
}

var reversalsDetectCmd = &cobra.Command{
	Use:   "detect <transaction-id>",
	Short: "Find the most likely original for a reversal-looking transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := buildLogger()
		if err != nil {
			return err
		}
		tenant, err := requireTenant()
		if err != nil {
			return err
		}
		ledger, audit, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		txn, err := ledger.FindTransactionByID(cmd.Context(), tenant, args[0])
		if err != nil {
			return err
		}

		detector := reversal.NewDetector(ledger, audit, log)
		match, err := detector.DetectReversal(cmd.Context(), tenant, txn)
		if err != nil {
			return err
		}
		if match == nil {
			fmt.Println("No reversal candidate found")
			return nil
		}
		fmt.Printf("Original: %s\nConfidence: %d\nReason: %s\n",
			match.OriginalTransactionID, match.Confidence, match.MatchReason)
		return nil
	},
}

var reversalsLinkCmd = &cobra.Command{
	Use:   "link <reversal-id> <original-id>",
	Short: "Record that one transaction reverses another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := buildLogger()
		if err != nil {
			return err
		}
		tenant, err := requireTenant()
		if err != nil {
			return err
		}
		ledger, audit, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		detector := reversal.NewDetector(ledger, audit, log)
		if err := detector.LinkReversal(cmd.Context(), tenant, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Linked %s as reversal of %s\n", args[0], args[1])
		return nil
	},
}

var reversalsListCmd = &cobra.Command{
	Use:   "list <original-id>",
	Short: "List transactions that reverse the given original",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := buildLogger()
		if err != nil {
			return err
		}
		tenant, err := requireTenant()
		if err != nil {
			return err
		}
		ledger, audit, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		detector := reversal.NewDetector(ledger, audit, log)
		reversals, err := detector.GetReversalsFor(cmd.Context(), tenant, args[0])
		if err != nil {
			return err
		}
		if len(reversals) == 0 {
			fmt.Println("No reversals recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATE\tDESCRIPTION\tAMOUNT")
		for _, txn := range reversals {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", txn.ID, txn.DateKey(), txn.Description,
				models.CentsToDecimal(txn.SignedAmountCents()).StringFixed(2))
		}
		return w.Flush()
	},
}

func init() {
	reversalsCmd.AddCommand(reversalsDetectCmd, reversalsLinkCmd, reversalsListCmd)
	rootCmd.AddCommand(reversalsCmd)
}
