// Package store defines the ledger store and audit log interfaces consumed
// by the matching core, and an in-memory implementation used by tests and
// the CSV-driven CLI mode.
//
// Every query and mutation is scoped by tenant id; no operation may observe
// or mutate another tenant's rows.
package store

import (
	"context"
	"time"

	"ledgermatch/internal/models"
)

// TransactionFilter narrows FindTransactionsByTenant. Zero values leave the
// corresponding dimension unbounded.
type TransactionFilter struct {
	// DateFrom and DateTo bound the transaction date, inclusive on both
	// ends. Time-of-day is ignored.
	DateFrom time.Time
	DateTo   time.Time

	// UnreconciledOnly restricts to transactions not yet reconciled.
	UnreconciledOnly bool

	// AbsAmountCents, when positive, restricts to transactions whose
	// amount magnitude equals the value exactly.
	AbsAmountCents int64

	// ReversesTransactionID restricts to reversals of the given original.
	ReversesTransactionID string

	// Limit caps the number of rows returned; zero means no cap.
	Limit int
}

// TransactionPatch carries the only transaction mutations the matching core
// performs. Nil fields are left untouched.
type TransactionPatch struct {
	IsReconciled *bool
}

// Store is the ledger store consumed by the matching core.
type Store interface {
	// CreateTransaction inserts a transaction row.
	CreateTransaction(ctx context.Context, txn *models.Transaction) error

	// FindTransactionsByTenant returns the tenant's transactions matching
	// the filter, ordered by date ascending.
	FindTransactionsByTenant(ctx context.Context, tenantID string, filter TransactionFilter) ([]*models.Transaction, error)

	// FindTransactionByID returns the transaction or a not-found error.
	FindTransactionByID(ctx context.Context, tenantID, id string) (*models.Transaction, error)

	// UpdateTransaction applies the patch to the transaction.
	UpdateTransaction(ctx context.Context, tenantID, id string, patch TransactionPatch) error

	// LinkReversal sets the reversal back-reference on the reversal row.
	// The link may be set at most once: a second call for the same
	// reversal fails with a conflict error.
	LinkReversal(ctx context.Context, tenantID, reversalID, originalID string) error

	// FindPayeePatternsByTenant returns all payee patterns for the tenant.
	FindPayeePatternsByTenant(ctx context.Context, tenantID string) ([]*models.PayeePattern, error)

	// FindPayeePatternByID returns the pattern or a not-found error.
	FindPayeePatternByID(ctx context.Context, tenantID, id string) (*models.PayeePattern, error)

	// FindPayeePatternByCanonicalName returns the pattern whose canonical
	// name matches exactly, or a not-found error.
	FindPayeePatternByCanonicalName(ctx context.Context, tenantID, canonicalName string) (*models.PayeePattern, error)

	// CreatePayeePattern inserts a pattern row, assigning an id if empty.
	CreatePayeePattern(ctx context.Context, pattern *models.PayeePattern) error

	// UpdatePayeePattern replaces the stored pattern row.
	UpdatePayeePattern(ctx context.Context, pattern *models.PayeePattern) error
}

// AuditLog records matching-core mutations for later review.
type AuditLog interface {
	Record(ctx context.Context, tenantID, entityType, entityID, action, summary string) error
}

// sameDayOrAfter reports whether t falls on or after the calendar day of ref.
func sameDayOrAfter(t, ref time.Time) bool {
	return !dayOf(t).Before(dayOf(ref))
}

// sameDayOrBefore reports whether t falls on or before the calendar day of ref.
func sameDayOrBefore(t, ref time.Time) bool {
	return !dayOf(t).After(dayOf(ref))
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MatchesFilter reports whether the transaction satisfies the filter. Shared
// by the store implementations.
func MatchesFilter(txn *models.Transaction, filter TransactionFilter) bool {
	if !filter.DateFrom.IsZero() && !sameDayOrAfter(txn.Date, filter.DateFrom) {
		return false
	}
	if !filter.DateTo.IsZero() && !sameDayOrBefore(txn.Date, filter.DateTo) {
		return false
	}
	if filter.UnreconciledOnly && txn.IsReconciled {
		return false
	}
	if filter.AbsAmountCents > 0 && txn.AmountCents != filter.AbsAmountCents {
		return false
	}
	if filter.ReversesTransactionID != "" && txn.ReversesTransactionID != filter.ReversesTransactionID {
		return false
	}
	return true
}
