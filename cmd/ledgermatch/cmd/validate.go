package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ledgermatch/internal/importer"
	"ledgermatch/internal/models"
	"ledgermatch/internal/payee"
	apperrors "ledgermatch/pkg/errors"
)

var saveImportable bool

var validateCmd = &cobra.Command{
	Use:   "validate <import.csv>",
	Short: "Validate an import batch and detect duplicate transactions",
	Long: `Validate parses every row of an import CSV, reports per-row issues and
flags duplicates both inside the batch and against transactions already in
the ledger store. With --save, importable rows are written to the store with
payee names resolved through the alias table.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&saveImportable, "save", false, "persist importable rows to the ledger store")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	log, err := buildLogger()
	if err != nil {
		return err
	}
	tenant, err := requireTenant()
	if err != nil {
		return err
	}

	header, rows, err := readCSV(args[0])
	if err != nil {
		return err
	}

	ledger, audit, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	guard := importer.NewGuard(ledger, log)
	result, err := guard.ValidateBatch(cmd.Context(), tenant, header, rows, nil)
	if err != nil {
		return err
	}

	printBatchResult(result)

	if saveImportable {
		resolver := payee.NewAliasResolver(ledger, audit, log)
		saved := 0
		for _, row := range result.Rows {
			if !row.CanImport {
				continue
			}
			payeeName, err := resolver.ResolveAlias(cmd.Context(), tenant, row.PayeeName)
			if err != nil {
				return err
			}
			txn := &models.Transaction{
				TenantID:    tenant,
				Date:        row.Date,
				Description: row.Description,
				PayeeName:   payeeName,
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
			saved++
		}
		fmt.Printf("\nSaved %d transactions\n", saved)
	}

	if !result.CanPartialImport && result.TotalRows > 0 {
		return apperrors.New(apperrors.CategoryValidation, apperrors.CodeInvalidInput,
			"no rows are importable")
	}
	return nil
}

func printBatchResult(result *models.BatchValidationResult) {
	fmt.Printf("Rows: %d  Importable: %d  Errors: %d  Warnings: %d\n",
		result.TotalRows, result.ImportableRows, result.ErrorCount, result.WarningCount)
	if result.IsValid {
		fmt.Println("Batch is valid")
	} else if result.CanPartialImport {
		fmt.Println("Batch is partially importable")
	} else {
		fmt.Println("Batch cannot be imported")
	}

	if len(result.Issues) == 0 {
		return
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROW\tSEVERITY\tFIELD\tMESSAGE")
	for _, issue := range result.Issues {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", issue.RowNumber, issue.Severity, issue.Field, issue.Message)
	}
	w.Flush()
}
