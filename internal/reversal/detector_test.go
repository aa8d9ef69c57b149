package reversal

import (
	"context"
	"strings"
	"testing"
	"time"

	"ledgermatch/internal/models"
	"ledgermatch/internal/store"
	apperrors "ledgermatch/pkg/errors"
	"ledgermatch/pkg/logger"
)

const testTenant = "tenant-1"

// countingStore wraps a store and counts read queries so tests can assert
// that certain paths perform no lookups at all.
type countingStore struct {
	store.Store
	queries int
}

func (c *countingStore) FindTransactionsByTenant(ctx context.Context, tenantID string, filter store.TransactionFilter) ([]*models.Transaction, error) {
	c.queries++
	return c.Store.FindTransactionsByTenant(ctx, tenantID, filter)
}

func newTestDetector(t *testing.T) (*Detector, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	return NewDetector(s, s, logger.Discard()), s
}

func seedTransaction(t *testing.T, s *store.MemoryStore, txn *models.Transaction) *models.Transaction {
	t.Helper()
	txn.TenantID = testTenant
	if err := s.CreateTransaction(context.Background(), txn); err != nil {
		t.Fatalf("seeding transaction failed: %v", err)
	}
	return txn
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDetectReversalPolarity(t *testing.T) {
	s := store.NewMemoryStore()
	counting := &countingStore{Store: s}
	d := NewDetector(counting, s, logger.Discard())

	credit := &models.Transaction{
		TenantID:    testTenant,
		Date:        day(2024, 1, 15),
		Description: "Deposit",
		AmountCents: 50000,
		IsCredit:    true,
	}

	match, err := d.DetectReversal(context.Background(), testTenant, credit)
	if err != nil {
		t.Fatalf("DetectReversal failed: %v", err)
	}
	if match != nil {
		t.Errorf("credit transaction matched as reversal: %+v", match)
	}
	if counting.queries != 0 {
		t.Errorf("expected zero store lookups for non-negative amount, got %d", counting.queries)
	}
}

func TestDetectReversalExactPayee(t *testing.T) {
	d, s := newTestDetector(t)
	ctx := context.Background()

	original := seedTransaction(t, s, &models.Transaction{
		Date:        day(2024, 1, 10),
		Description: "Invoice payment",
		PayeeName:   "ABC Company",
		AmountCents: 50000,
		IsCredit:    true,
		Reference:   "REF-123",
	})
	seedTransaction(t, s, &models.Transaction{
		Date:        day(2024, 1, 10),
		Description: "Unrelated credit",
		PayeeName:   "Other Corp",
		AmountCents: 30000,
		IsCredit:    true,
	})

	reversal := &models.Transaction{
		TenantID:    testTenant,
		Date:        day(2024, 1, 12),
		Description: "Reversal of invoice payment",
		PayeeName:   "ABC Company",
		AmountCents: 50000,
		IsCredit:    false,
		Reference:   "REVERSAL REF-123",
	}

	match, err := d.DetectReversal(ctx, testTenant, reversal)
	if err != nil {
		t.Fatalf("DetectReversal failed: %v", err)
	}
	if match == nil {
		t.Fatal("expected a reversal match")
	}
	if match.OriginalTransactionID != original.ID {
		t.Errorf("matched %s, want %s", match.OriginalTransactionID, original.ID)
	}
	if match.Confidence < 90 {
		t.Errorf("confidence = %d, want >= 90", match.Confidence)
	}
}

func TestDetectReversalKeywordStripped(t *testing.T) {
	d, s := newTestDetector(t)

	original := seedTransaction(t, s, &models.Transaction{
		Date:        day(2024, 2, 1),
		Description: "Service fee",
		PayeeName:   "XYZ Services",
		AmountCents: 12000,
		IsCredit:    true,
	})

	reversal := &models.Transaction{
		TenantID:    testTenant,
		Date:        day(2024, 2, 3),
		Description: "Refund issued",
		PayeeName:   "REFUND XYZ Services",
		AmountCents: 12000,
		IsCredit:    false,
	}

	match, err := d.DetectReversal(context.Background(), testTenant, reversal)
	if err != nil {
		t.Fatalf("DetectReversal failed: %v", err)
	}
	if match == nil {
		t.Fatal("expected a match after keyword stripping")
	}
	if match.OriginalTransactionID != original.ID {
		t.Errorf("matched %s, want %s", match.OriginalTransactionID, original.ID)
	}
	if match.Confidence < 55 {
		t.Errorf("confidence = %d, want >= 55", match.Confidence)
	}
	if !strings.Contains(match.MatchReason, "reversal keywords") {
		t.Errorf("reason %q does not mention reversal keywords", match.MatchReason)
	}
}

func TestDetectReversalTieBreakNearestDate(t *testing.T) {
	d, s := newTestDetector(t)

	seedTransaction(t, s, &models.Transaction{
		Date:        day(2024, 3, 4),
		Description: "Payment",
		PayeeName:   "ACME",
		AmountCents: 5000,
		IsCredit:    true,
	})
	near := seedTransaction(t, s, &models.Transaction{
		Date:        day(2024, 3, 9),
		Description: "Payment",
		PayeeName:   "ACME",
		AmountCents: 5000,
		IsCredit:    true,
	})

	reversal := &models.Transaction{
		TenantID:    testTenant,
		Date:        day(2024, 3, 10),
		Description: "Reversal",
		PayeeName:   "ACME",
		AmountCents: 5000,
		IsCredit:    false,
	}

	match, err := d.DetectReversal(context.Background(), testTenant, reversal)
	if err != nil {
		t.Fatalf("DetectReversal failed: %v", err)
	}
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.OriginalTransactionID != near.ID {
		t.Errorf("tie not broken by nearest date: matched %s, want %s", match.OriginalTransactionID, near.ID)
	}
}

func TestDetectReversalWindowFallback(t *testing.T) {
	d, s := newTestDetector(t)

	// Only candidate is 30 days back, outside the 7-day window.
	old := seedTransaction(t, s, &models.Transaction{
		Date:        day(2024, 1, 1),
		Description: "Payment",
		PayeeName:   "ACME",
		AmountCents: 5000,
		IsCredit:    true,
	})

	reversal := &models.Transaction{
		TenantID:    testTenant,
		Date:        day(2024, 1, 31),
		Description: "Reversal",
		PayeeName:   "ACME",
		AmountCents: 5000,
		IsCredit:    false,
	}

	match, err := d.DetectReversal(context.Background(), testTenant, reversal)
	if err != nil {
		t.Fatalf("DetectReversal failed: %v", err)
	}
	if match == nil || match.OriginalTransactionID != old.ID {
		t.Errorf("unbounded retry did not find the older original: %+v", match)
	}
}

func TestFindPotentialOriginalsFilters(t *testing.T) {
	d, s := newTestDetector(t)
	ctx := context.Background()

	want := seedTransaction(t, s, &models.Transaction{
		Date:        day(2024, 4, 10),
		Description: "Payment",
		AmountCents: 7500,
		IsCredit:    true,
	})
	seedTransaction(t, s, &models.Transaction{ // wrong direction
		Date:        day(2024, 4, 10),
		Description: "Debit",
		AmountCents: 7500,
		IsCredit:    false,
	})
	reconciled := seedTransaction(t, s, &models.Transaction{
		Date:        day(2024, 4, 11),
		Description: "Payment",
		AmountCents: 7500,
		IsCredit:    true,
	})
	if err := s.UpdateTransaction(ctx, testTenant, reconciled.ID, store.TransactionPatch{IsReconciled: boolPtr(true)}); err != nil {
		t.Fatalf("marking reconciled failed: %v", err)
	}

	got, err := d.FindPotentialOriginals(ctx, testTenant, -7500, day(2024, 4, 12))
	if err != nil {
		t.Fatalf("FindPotentialOriginals failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != want.ID {
		t.Errorf("unexpected candidates: %+v", got)
	}
}

func TestLinkReversal(t *testing.T) {
	d, s := newTestDetector(t)
	ctx := context.Background()

	original := seedTransaction(t, s, &models.Transaction{
		Date:        day(2024, 5, 1),
		Description: "Payment",
		AmountCents: 1000,
		IsCredit:    true,
	})
	rev := seedTransaction(t, s, &models.Transaction{
		Date:        day(2024, 5, 2),
		Description: "Reversal",
		AmountCents: 1000,
		IsCredit:    false,
	})

	if err := d.LinkReversal(ctx, testTenant, rev.ID, original.ID); err != nil {
		t.Fatalf("LinkReversal failed: %v", err)
	}

	linked, err := s.FindTransactionByID(ctx, testTenant, rev.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if linked.ReversesTransactionID != original.ID || !linked.IsReversal {
		t.Errorf("link not persisted: %+v", linked)
	}

	// The link is set at most once.
	other := seedTransaction(t, s, &models.Transaction{
		Date:        day(2024, 5, 1),
		Description: "Another payment",
		AmountCents: 1000,
		IsCredit:    true,
	})
	if err := d.LinkReversal(ctx, testTenant, rev.ID, other.ID); !apperrors.IsConflict(err) {
		t.Errorf("expected conflict on second link, got %v", err)
	}

	if entries := s.AuditEntries(testTenant); len(entries) != 1 {
		t.Errorf("expected 1 audit entry, got %d", len(entries))
	}

	reversals, err := d.GetReversalsFor(ctx, testTenant, original.ID)
	if err != nil {
		t.Fatalf("GetReversalsFor failed: %v", err)
	}
	if len(reversals) != 1 || reversals[0].ID != rev.ID {
		t.Errorf("unexpected reversals: %+v", reversals)
	}
}

func TestLinkReversalErrors(t *testing.T) {
	d, s := newTestDetector(t)
	ctx := context.Background()

	txn := seedTransaction(t, s, &models.Transaction{
		Date:        day(2024, 5, 1),
		Description: "Payment",
		AmountCents: 1000,
		IsCredit:    true,
	})

	if err := d.LinkReversal(ctx, testTenant, txn.ID, txn.ID); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error for self-link, got %v", err)
	}
	if err := d.LinkReversal(ctx, testTenant, "missing", txn.ID); !apperrors.IsNotFound(err) {
		t.Errorf("expected not-found for missing reversal, got %v", err)
	}
	if err := d.LinkReversal(ctx, testTenant, txn.ID, "missing"); !apperrors.IsNotFound(err) {
		t.Errorf("expected not-found for missing original, got %v", err)
	}
}

func boolPtr(b bool) *bool { return &b }
