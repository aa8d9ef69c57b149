package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"ledgermatch/internal/dateparse"
	"ledgermatch/internal/importer"
	"ledgermatch/internal/models"
	"ledgermatch/internal/reconcile"
	apperrors "ledgermatch/pkg/errors"
)

var (
	periodStart    string
	periodEnd      string
	openingBalance string
	closingBalance string
	feeAmount      string
	markReconciled bool
	ledgerFile     string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <statement.csv>",
	Short: "Reconcile a bank statement against the ledger",
	Long: `Reconcile aligns the lines of a bank statement CSV with the tenant's
ledger transactions for the stated period, classifies every pairing and
reports whether the statement balances. Ledger transactions come from the
--db store, or from a CSV loaded with --ledger-file.`,
	Args: cobra.ExactArgs(1),
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&periodStart, "period-start", "", "period start date (required)")
	reconcileCmd.Flags().StringVar(&periodEnd, "period-end", "", "period end date (required)")
	reconcileCmd.Flags().StringVar(&openingBalance, "opening-balance", "0", "statement opening balance")
	reconcileCmd.Flags().StringVar(&closingBalance, "closing-balance", "0", "statement closing balance")
	reconcileCmd.Flags().StringVar(&feeAmount, "fee", "", "bank fee that may explain amount discrepancies")
	reconcileCmd.Flags().BoolVar(&markReconciled, "mark-reconciled", false, "flag matched ledger transactions as reconciled")
	reconcileCmd.Flags().StringVar(&ledgerFile, "ledger-file", "", "CSV of ledger transactions to load before matching")
	reconcileCmd.MarkFlagRequired("period-start")
	reconcileCmd.MarkFlagRequired("period-end")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log, err := buildLogger()
	if err != nil {
		return err
	}
	tenant, err := requireTenant()
	if err != nil {
		return err
	}

	opts, err := buildReconcileOptions()
	if err != nil {
		return err
	}

	lines, err := readStatementLines(args[0])
	if err != nil {
		return err
	}

	ledger, _, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	if ledgerFile != "" {
		header, rows, err := readCSV(ledgerFile)
		if err != nil {
			return err
		}
		guard := importer.NewGuard(ledger, log)
		batch, err := guard.ValidateBatch(cmd.Context(), tenant, header, rows, nil)
		if err != nil {
			return err
		}
		for _, row := range batch.Rows {
			if !row.CanImport {
				continue
			}
			txn := &models.Transaction{
				TenantID:    tenant,
				Date:        row.Date,
				Description: row.Description,
				PayeeName:   row.PayeeName,
				IsCredit:    row.AmountCents >= 0,
				Reference:   row.Reference,
			}
			if row.AmountCents >= 0 {
				txn.AmountCents = row.AmountCents
			} else {
				txn.AmountCents = -row.AmountCents
			}
			if err := ledger.CreateTransaction(cmd.Context(), txn); err != nil {
				return err
			}
		}
	}

	matcher := reconcile.NewMatcher(ledger, log)
	report, err := matcher.Reconcile(cmd.Context(), tenant, lines, opts)
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

func buildReconcileOptions() (reconcile.Options, error) {
	var opts reconcile.Options
	var err error

	opts.PeriodStart, err = dateparse.Parse(periodStart)
	if err != nil {
		return opts, apperrors.Validation(apperrors.CodeInvalidDate, "period-start", err.Error())
	}
	opts.PeriodEnd, err = dateparse.Parse(periodEnd)
	if err != nil {
		return opts, apperrors.Validation(apperrors.CodeInvalidDate, "period-end", err.Error())
	}

	opts.OpeningBalance, err = decimal.NewFromString(openingBalance)
	if err != nil {
		return opts, apperrors.Validation(apperrors.CodeInvalidAmount, "opening-balance", err.Error())
	}
	opts.ClosingBalance, err = decimal.NewFromString(closingBalance)
	if err != nil {
		return opts, apperrors.Validation(apperrors.CodeInvalidAmount, "closing-balance", err.Error())
	}

	if feeAmount != "" {
		fee, err := decimal.NewFromString(feeAmount)
		if err != nil {
			return opts, apperrors.Validation(apperrors.CodeInvalidAmount, "fee", err.Error())
		}
		opts.FeeCents = fee.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	}

	opts.MarkReconciled = markReconciled
	return opts, nil
}

func printReport(report *models.ReconciliationReport) {
	fmt.Printf("Matched: %d  Fee-adjusted: %d  Mismatched: %d  Bank only: %d  Ledger only: %d\n",
		report.MatchedCount, report.FeeAdjustedCount, report.MismatchCount,
		report.InBankOnlyCount, report.InLedgerOnlyCount)
	fmt.Printf("Opening: %s  Closing: %s  Calculated: %s\n",
		report.OpeningBalance.StringFixed(2), report.ClosingBalance.StringFixed(2),
		report.CalculatedClosing.StringFixed(2))
	if report.IsBalanced {
		fmt.Println("Statement is balanced")
	} else {
		fmt.Println("Statement is NOT balanced")
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tDATE\tDESCRIPTION\tAMOUNT\tNOTE")
	for _, match := range report.Matches {
		date, desc := "", ""
		var cents int64
		switch {
		case match.Line != nil:
			date, desc, cents = match.Line.DateKey(), match.Line.Description, match.Line.AmountCents
		case match.Transaction != nil:
			date, desc, cents = match.Transaction.DateKey(), match.Transaction.Description, match.Transaction.SignedAmountCents()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			match.Status, date, desc,
			models.CentsToDecimal(cents).StringFixed(2), match.DiscrepancyReason)
	}
	w.Flush()
}
