// Package reconcile aligns bank statement lines against ledger transactions
// for a period and produces a balance reconciliation report.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledgermatch/internal/importer"
	"ledgermatch/internal/models"
	"ledgermatch/internal/payee"
	"ledgermatch/internal/store"
	"ledgermatch/internal/stringsim"
	apperrors "ledgermatch/pkg/errors"
	"ledgermatch/pkg/logger"
)

const (
	// dateToleranceDays bounds how far apart a statement line and a
	// ledger transaction may be and still count as the same event.
	dateToleranceDays = 7

	// descriptionSimilarityThreshold gates near-match pairing when dates
	// agree but amounts differ.
	descriptionSimilarityThreshold = 0.8
)

// Options configures a reconciliation run.
type Options struct {
	// PeriodStart and PeriodEnd bound the ledger transactions considered,
	// inclusive on both ends.
	PeriodStart time.Time
	PeriodEnd   time.Time

	// OpeningBalance and ClosingBalance come from the bank statement, in
	// major currency units.
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal

	// FeeCents, when positive, is the bank fee that may fully explain an
	// amount discrepancy, turning it into a fee-adjusted match.
	FeeCents int64

	// MarkReconciled flags matched ledger transactions as reconciled in
	// the store after the run.
	MarkReconciled bool
}

// Matcher reconciles statement lines against the ledger store.
type Matcher struct {
	store store.Store
	log   logger.Logger
}

// NewMatcher creates a reconciliation matcher over the given store.
func NewMatcher(s store.Store, log logger.Logger) *Matcher {
	return &Matcher{
		store: s,
		log:   log.WithComponent("reconciliation-matcher"),
	}
}

// Reconcile pairs every statement line with a ledger transaction where
// possible and classifies each pairing. Exact matches are found by hash
// first; the remainder is paired by amount with date drift, or by date with
// an amount discrepancy, fee-adjusted when the difference equals the
// configured fee. Unpaired lines and transactions are reported one-sided.
func (m *Matcher) Reconcile(ctx context.Context, tenantID string, lines []*models.StatementLine, opts Options) (*models.ReconciliationReport, error) {
	if opts.PeriodStart.IsZero() || opts.PeriodEnd.IsZero() {
		return nil, apperrors.Validation(apperrors.CodeInvalidInput, "period", "period start and end are required")
	}
	if opts.PeriodEnd.Before(opts.PeriodStart) {
		return nil, apperrors.Validation(apperrors.CodeInvalidInput, "period", "period end precedes period start")
	}

	txns, err := m.store.FindTransactionsByTenant(ctx, tenantID, store.TransactionFilter{
		DateFrom: opts.PeriodStart,
		DateTo:   opts.PeriodEnd,
	})
	if err != nil {
		return nil, apperrors.Storage(apperrors.CodeQueryFailed, "load ledger transactions", err)
	}

	report := &models.ReconciliationReport{
		OpeningBalance: opts.OpeningBalance,
		ClosingBalance: opts.ClosingBalance,
	}

	usedTxns := make([]bool, len(txns))
	usedLines := make([]bool, len(lines))

	// Exact pass: identical day, normalized description and signed amount.
	byHash := make(map[string][]int)
	for i, txn := range txns {
		byHash[ledgerHash(txn)] = append(byHash[ledgerHash(txn)], i)
	}
	for li, line := range lines {
		hash := lineHash(line)
		for _, ti := range byHash[hash] {
			if usedTxns[ti] {
				continue
			}
			usedTxns[ti] = true
			usedLines[li] = true
			report.Matches = append(report.Matches, &models.StatementMatch{
				Line:        line,
				Transaction: txns[ti],
				Status:      models.StatusMatched,
				Confidence:  100,
			})
			report.MatchedCount++
			break
		}
	}

	// Near-match pass over the remainder.
	for li, line := range lines {
		if usedLines[li] {
			continue
		}
		if match := m.nearMatch(line, txns, usedTxns, opts.FeeCents); match != nil {
			usedLines[li] = true
			report.Matches = append(report.Matches, match)
			switch match.Status {
			case models.StatusFeeAdjusted:
				report.FeeAdjustedCount++
			default:
				report.MismatchCount++
			}
		}
	}

	for li, line := range lines {
		if usedLines[li] {
			continue
		}
		report.Matches = append(report.Matches, &models.StatementMatch{
			Line:              line,
			Status:            models.StatusInBankOnly,
			DiscrepancyReason: "no ledger transaction matches this statement line",
		})
		report.InBankOnlyCount++
	}
	for ti, txn := range txns {
		if usedTxns[ti] {
			continue
		}
		report.Matches = append(report.Matches, &models.StatementMatch{
			Transaction:       txn,
			Status:            models.StatusInLedgerOnly,
			DiscrepancyReason: "no statement line matches this ledger transaction",
		})
		report.InLedgerOnlyCount++
	}

	m.computeBalances(report, lines)

	if opts.MarkReconciled {
		if err := m.markReconciled(ctx, tenantID, report); err != nil {
			return nil, err
		}
	}

	m.log.WithFields(logger.Fields{
		"tenant_id":      tenantID,
		"lines":          len(lines),
		"transactions":   len(txns),
		"matched":        report.MatchedCount,
		"in_bank_only":   report.InBankOnlyCount,
		"in_ledger_only": report.InLedgerOnlyCount,
		"balanced":       report.IsBalanced,
	}).Info("reconciliation completed")

	return report, nil
}

// nearMatch pairs an unmatched line with the best remaining transaction.
// Same amount with date drift beats same date with an amount discrepancy.
func (m *Matcher) nearMatch(line *models.StatementLine, txns []*models.Transaction, usedTxns []bool, feeCents int64) *models.StatementMatch {
	bestIdx := -1
	var bestStatus models.MatchStatus
	var bestDayDiff int

	for ti, txn := range txns {
		if usedTxns[ti] {
			continue
		}

		sameAmount := txn.SignedAmountCents() == line.AmountCents
		dayDiff := absDayDiff(line.Date, txn.Date)

		if sameAmount && dayDiff > 0 && dayDiff <= dateToleranceDays {
			if bestIdx < 0 || bestStatus != models.StatusDateMismatch || dayDiff < bestDayDiff {
				bestIdx, bestStatus, bestDayDiff = ti, models.StatusDateMismatch, dayDiff
			}
			continue
		}

		if dayDiff == 0 && !sameAmount && descriptionsSimilar(line.Description, txn.Description) {
			status := models.StatusAmountMismatch
			if feeCents > 0 && absInt64(txn.SignedAmountCents()-line.AmountCents) == feeCents {
				status = models.StatusFeeAdjusted
			}
			// An amount-side pairing never displaces a date-drift one.
			if bestIdx < 0 {
				bestIdx, bestStatus, bestDayDiff = ti, status, 0
			}
		}
	}

	if bestIdx < 0 {
		return nil
	}

	txn := txns[bestIdx]
	usedTxns[bestIdx] = true

	match := &models.StatementMatch{
		Line:        line,
		Transaction: txn,
		Status:      bestStatus,
	}
	switch bestStatus {
	case models.StatusDateMismatch:
		match.Confidence = 80
		match.DiscrepancyReason = fmt.Sprintf("dates differ by %d days", bestDayDiff)
	case models.StatusFeeAdjusted:
		match.Confidence = 95
		match.DiscrepancyReason = "amount difference equals the configured bank fee"
	case models.StatusAmountMismatch:
		match.Confidence = 70
		match.DiscrepancyReason = fmt.Sprintf("amounts differ by %s",
			models.CentsToDecimal(absInt64(txn.SignedAmountCents()-line.AmountCents)).StringFixed(2))
	}
	return match
}

// computeBalances derives the calculated closing balance from the statement
// movement and compares it with the stated closing balance.
func (m *Matcher) computeBalances(report *models.ReconciliationReport, lines []*models.StatementLine) {
	var movementCents int64
	for _, line := range lines {
		movementCents += line.AmountCents
	}
	report.CalculatedClosing = report.OpeningBalance.Add(models.CentsToDecimal(movementCents))
	report.IsBalanced = report.CalculatedClosing.Equal(report.ClosingBalance)
}

// markReconciled flags the ledger side of every full and fee-adjusted match.
func (m *Matcher) markReconciled(ctx context.Context, tenantID string, report *models.ReconciliationReport) error {
	reconciled := true
	for _, match := range report.Matches {
		if match.Transaction == nil {
			continue
		}
		if match.Status != models.StatusMatched && match.Status != models.StatusFeeAdjusted {
			continue
		}
		err := m.store.UpdateTransaction(ctx, tenantID, match.Transaction.ID, store.TransactionPatch{IsReconciled: &reconciled})
		if err != nil {
			return apperrors.Storage(apperrors.CodeUpdateFailed, "mark reconciled", err)
		}
		match.Transaction.IsReconciled = true
	}
	return nil
}

func ledgerHash(txn *models.Transaction) string {
	return importer.DuplicateHash(txn.Date, foldDescription(txn.Description), txn.SignedAmountCents())
}

func lineHash(line *models.StatementLine) string {
	return importer.DuplicateHash(line.Date, foldDescription(line.Description), line.AmountCents)
}

func foldDescription(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func descriptionsSimilar(a, b string) bool {
	return stringsim.LevenshteinSimilarity(payee.Normalize(a), payee.Normalize(b)) >= descriptionSimilarityThreshold
}

func absDayDiff(a, b time.Time) int {
	diff := int(a.Sub(b).Hours() / 24)
	if diff < 0 {
		diff = -diff
	}
	return diff
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
