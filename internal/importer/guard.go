// Package importer validates raw import batches before they become ledger
// transactions: per-row parsing, in-batch duplicate detection, and duplicate
// detection against previously stored transactions.
package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ledgermatch/internal/dateparse"
	"ledgermatch/internal/models"
	"ledgermatch/internal/store"
	apperrors "ledgermatch/pkg/errors"
	"ledgermatch/pkg/logger"
)

const (
	// maxDescriptionLength is the longest description accepted without a
	// truncation warning.
	maxDescriptionLength = 500

	// largeAmountCents flags implausibly large rows: R100,000,000.
	largeAmountCents = 100_000_000_00

	// crossBatchLookbackDays is the historical window searched for
	// duplicates of importable rows.
	crossBatchLookbackDays = 90
)

// Guard validates import batches for one tenant against the ledger store.
type Guard struct {
	store store.Store
	log   logger.Logger
}

// NewGuard creates a DuplicateGuard backed by the given store.
func NewGuard(s store.Store, log logger.Logger) *Guard {
	return &Guard{
		store: s,
		log:   log.WithComponent("duplicate-guard"),
	}
}

// DuplicateHash builds the duplicate-detection key for a money-movement
// record. Rows with identical calendar day, description and signed amount
// hash identically regardless of order.
func DuplicateHash(date time.Time, description string, signedCents int64) string {
	return date.Format(models.DateKeyFormat) + "|" + description + "|" + strconv.FormatInt(signedCents, 10)
}

// ValidateBatch parses and validates every row of an import batch, then
// runs in-batch and cross-batch duplicate detection. Rows are 1-indexed in
// all reported issues. Duplicate detection runs only after all rows are
// individually parsed, and in-batch duplicates are resolved before
// cross-batch duplicates are considered.
func (g *Guard) ValidateBatch(ctx context.Context, tenantID string, header []string, rows [][]string, mapping *ColumnMapping) (*models.BatchValidationResult, error) {
	var m ColumnMapping
	if mapping != nil {
		m = *mapping
	} else {
		m = DetectColumns(header)
	}

	if m.Date < 0 {
		return nil, apperrors.Validation(apperrors.CodeMissingColumn, "date", "no date column found")
	}
	if m.Description < 0 {
		return nil, apperrors.Validation(apperrors.CodeMissingColumn, "description", "no description column found")
	}
	if !m.HasAmount() {
		return nil, apperrors.Validation(apperrors.CodeMissingColumn, "amount", "no amount or credit/debit columns found")
	}

	result := &models.BatchValidationResult{TotalRows: len(rows)}

	for i, row := range rows {
		result.Rows = append(result.Rows, g.validateRow(i+1, row, m))
	}

	g.flagInBatchDuplicates(result)

	if err := g.flagCrossBatchDuplicates(ctx, tenantID, result); err != nil {
		return nil, err
	}

	g.aggregate(result)
	return result, nil
}

// validateRow parses a single row. Any ERROR-severity issue excludes the
// row from import; warnings and infos do not.
func (g *Guard) validateRow(rowNumber int, row []string, m ColumnMapping) *models.RowValidationResult {
	r := &models.RowValidationResult{RowNumber: rowNumber}

	addIssue := func(field string, severity models.Severity, message string) {
		r.Issues = append(r.Issues, models.RowIssue{
			RowNumber: rowNumber,
			Field:     field,
			Severity:  severity,
			Message:   message,
		})
	}

	// Date
	date, err := dateparse.Parse(cell(row, m.Date))
	switch {
	case err != nil:
		addIssue("date", models.SeverityError, fmt.Sprintf("unparseable date %q", cell(row, m.Date)))
	case !dateparse.IsWithinAcceptableRange(date):
		addIssue("date", models.SeverityError, fmt.Sprintf("date %s outside acceptable range", date.Format(models.DateKeyFormat)))
	default:
		r.Date = date
	}

	// Description
	description := cell(row, m.Description)
	if description == "" {
		addIssue("description", models.SeverityError, "description is required")
	} else if len(description) > maxDescriptionLength {
		description = description[:maxDescriptionLength]
		addIssue("description", models.SeverityWarning,
			fmt.Sprintf("description truncated to %d characters", maxDescriptionLength))
	}
	r.Description = description

	// Amount: combined signed column, or separate credit/debit columns.
	var cents int64
	if m.Amount >= 0 {
		cents = ParseAmountCents(cell(row, m.Amount))
	} else {
		credit := ParseAmountCents(cell(row, m.Credit))
		debit := ParseAmountCents(cell(row, m.Debit))
		if credit > 0 {
			cents = credit
		} else if debit != 0 {
			if debit < 0 {
				debit = -debit
			}
			cents = -debit
		}
	}
	r.AmountCents = cents

	if cents == 0 {
		addIssue("amount", models.SeverityWarning, "zero amount")
	}
	if cents > largeAmountCents || cents < -largeAmountCents {
		addIssue("amount", models.SeverityWarning, "amount exceeds R100,000,000")
	}

	r.Reference = cell(row, m.Reference)
	r.PayeeName = cell(row, m.Payee)

	r.Valid = !r.HasErrors()
	r.CanImport = r.Valid
	return r
}

// flagInBatchDuplicates hashes successfully parsed rows in original order.
// The first occurrence of a hash is canonical; every later occurrence is an
// error and is excluded from import.
func (g *Guard) flagInBatchDuplicates(result *models.BatchValidationResult) {
	firstSeen := make(map[string]int)

	for _, row := range result.Rows {
		if !row.Valid {
			continue
		}
		hash := DuplicateHash(row.Date, row.Description, row.AmountCents)
		if original, seen := firstSeen[hash]; seen {
			row.CanImport = false
			row.Valid = false
			row.Issues = append(row.Issues, models.RowIssue{
				RowNumber: row.RowNumber,
				Field:     "row",
				Severity:  models.SeverityError,
				Message:   fmt.Sprintf("duplicate of row %d", original),
			})
			continue
		}
		firstSeen[hash] = row.RowNumber
	}
}

// flagCrossBatchDuplicates warns about importable rows matching stored
// transactions within the lookback window. Warnings do not block import.
func (g *Guard) flagCrossBatchDuplicates(ctx context.Context, tenantID string, result *models.BatchValidationResult) error {
	var minDate, maxDate time.Time
	for _, row := range result.Rows {
		if !row.CanImport {
			continue
		}
		if minDate.IsZero() || row.Date.Before(minDate) {
			minDate = row.Date
		}
		if maxDate.IsZero() || row.Date.After(maxDate) {
			maxDate = row.Date
		}
	}
	if minDate.IsZero() {
		return nil // nothing importable
	}

	existing, err := g.store.FindTransactionsByTenant(ctx, tenantID, store.TransactionFilter{
		DateFrom: minDate.AddDate(0, 0, -crossBatchLookbackDays),
		DateTo:   maxDate,
	})
	if err != nil {
		return apperrors.Storage(apperrors.CodeQueryFailed, "cross-batch duplicate check", err)
	}

	stored := make(map[string]bool, len(existing))
	for _, txn := range existing {
		stored[DuplicateHash(txn.Date, txn.Description, txn.SignedAmountCents())] = true
	}

	for _, row := range result.Rows {
		if !row.CanImport {
			continue
		}
		if stored[DuplicateHash(row.Date, row.Description, row.AmountCents)] {
			row.Issues = append(row.Issues, models.RowIssue{
				RowNumber: row.RowNumber,
				Field:     "row",
				Severity:  models.SeverityWarning,
				Message:   "potential duplicate of existing transaction",
			})
		}
	}
	return nil
}

// aggregate fills the batch-level counters and verdicts.
func (g *Guard) aggregate(result *models.BatchValidationResult) {
	for _, row := range result.Rows {
		result.Issues = append(result.Issues, row.Issues...)
		if row.CanImport {
			result.ImportableRows++
		}
		for _, issue := range row.Issues {
			switch issue.Severity {
			case models.SeverityError:
				result.ErrorCount++
			case models.SeverityWarning:
				result.WarningCount++
			}
		}
	}
	result.IsValid = result.ErrorCount == 0
	result.CanPartialImport = result.ImportableRows > 0
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	// BOM and padding show up in real bank exports.
	return strings.TrimSpace(strings.TrimPrefix(row[idx], "\ufeff"))
}
