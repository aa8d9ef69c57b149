package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ledgermatch/internal/payee"
)

var suggestLimit int

var payeesCmd = &cobra.Command{
	Use:   "payees",
	Short: "Inspect and maintain payee aliases",
}

var payeesResolveCmd = &cobra.Command{
	Use:   "resolve <name>",
	Short: "Resolve a payee name to its canonical form",
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

		resolver := payee.NewAliasResolver(ledger, audit, log)
		canonical, err := resolver.ResolveAlias(cmd.Context(), tenant, args[0])
		if err != nil {
			return err
		}
		fmt.Println(canonical)
		return nil
	},
}

var payeesAliasCmd = &cobra.Command{
	Use:   "alias <alias> <canonical>",
	Short: "Register an alias for a canonical payee name",
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

		resolver := payee.NewAliasResolver(ledger, audit, log)
		pattern, err := resolver.CreateAlias(cmd.Context(), tenant, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Alias %q added to %q (%d aliases)\n",
			args[0], pattern.PayeePattern, len(pattern.PayeeAliases))
		return nil
	},
}

var payeesVariationsCmd = &cobra.Command{
	Use:   "variations <name>",
	Short: "List likely spelling variations of a payee across the corpus",
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
		ledger, _, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		detector := payee.NewVariationDetector(ledger, log)
		matches, err := detector.DetectVariations(cmd.Context(), tenant, args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PAYEE\tMETHOD\tSIMILARITY\tCONFIDENCE")
		for _, m := range matches {
			fmt.Fprintf(w, "%s\t%s\t%.3f\t%d\n", m.PayeeB, m.MatchType, m.Similarity, m.Confidence)
		}
		return w.Flush()
	},
}

var payeesSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest alias links for payee name variants",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := buildLogger()
		if err != nil {
			return err
		}
		tenant, err := requireTenant()
		if err != nil {
			return err
		}
		ledger, _, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		detector := payee.NewVariationDetector(ledger, log)
		suggestions, err := detector.GetSuggestedAliases(cmd.Context(), tenant, suggestLimit)
		if err != nil {
			return err
		}
		if len(suggestions) == 0 {
			fmt.Println("No alias suggestions")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CANONICAL\tALIAS\tCONFIDENCE\tREASON")
		for _, s := range suggestions {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.CanonicalName, s.Alias, s.Confidence, s.Reason)
		}
		return w.Flush()
	},
}

func init() {
	payeesSuggestCmd.Flags().IntVar(&suggestLimit, "limit", payee.DefaultSuggestionLimit, "maximum suggestions to emit")
	payeesCmd.AddCommand(payeesResolveCmd, payeesAliasCmd, payeesVariationsCmd, payeesSuggestCmd)
	rootCmd.AddCommand(payeesCmd)
}
