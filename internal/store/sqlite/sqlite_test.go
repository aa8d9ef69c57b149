package sqlite

import (
	"context"
	"testing"
	"time"

	"ledgermatch/internal/models"
	"ledgermatch/internal/store"
	apperrors "ledgermatch/pkg/errors"
)

const testTenant = "tenant-1"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTransactionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	txn := &models.Transaction{
		TenantID:    testTenant,
		Date:        time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Description: "Grocery purchase",
		PayeeName:   "WOOLWORTHS",
		AmountCents: 15000,
		IsCredit:    false,
		Reference:   "REF-1",
	}
	if err := s.CreateTransaction(ctx, txn); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if txn.ID == "" {
		t.Fatal("id not assigned")
	}

	got, err := s.FindTransactionByID(ctx, testTenant, txn.ID)
	if err != nil {
		t.Fatalf("FindTransactionByID failed: %v", err)
	}
	if got.Description != txn.Description || got.AmountCents != txn.AmountCents ||
		got.IsCredit != txn.IsCredit || got.DateKey() != "2024-01-15" {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if _, err := s.FindTransactionByID(ctx, "other-tenant", txn.ID); !apperrors.IsNotFound(err) {
		t.Errorf("cross-tenant read should be not-found, got %v", err)
	}
}

func TestFindTransactionsByTenantFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	dates := []string{"2024-01-10", "2024-01-15", "2024-01-20"}
	for i, d := range dates {
		date, _ := time.ParseInLocation(models.DateKeyFormat, d, time.UTC)
		err := s.CreateTransaction(ctx, &models.Transaction{
			TenantID:    testTenant,
			Date:        date,
			Description: "Payment",
			AmountCents: int64(1000 * (i + 1)),
			IsCredit:    true,
		})
		if err != nil {
			t.Fatalf("seed %d failed: %v", i, err)
		}
	}

	from, _ := time.ParseInLocation(models.DateKeyFormat, "2024-01-12", time.UTC)
	to, _ := time.ParseInLocation(models.DateKeyFormat, "2024-01-18", time.UTC)
	txns, err := s.FindTransactionsByTenant(ctx, testTenant, store.TransactionFilter{
		DateFrom: from,
		DateTo:   to,
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(txns) != 1 || txns[0].DateKey() != "2024-01-15" {
		t.Errorf("date filter returned %+v", txns)
	}

	txns, err = s.FindTransactionsByTenant(ctx, testTenant, store.TransactionFilter{
		AbsAmountCents: 2000,
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(txns) != 1 || txns[0].AmountCents != 2000 {
		t.Errorf("amount filter returned %+v", txns)
	}
}

func TestLinkReversalSetAtMostOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	original := &models.Transaction{
		TenantID: testTenant, Date: time.Now().UTC(),
		Description: "Payment", AmountCents: 1000, IsCredit: true,
	}
	rev := &models.Transaction{
		TenantID: testTenant, Date: time.Now().UTC(),
		Description: "Reversal", AmountCents: 1000, IsCredit: false,
	}
	for _, txn := range []*models.Transaction{original, rev} {
		if err := s.CreateTransaction(ctx, txn); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	if err := s.LinkReversal(ctx, testTenant, rev.ID, original.ID); err != nil {
		t.Fatalf("LinkReversal failed: %v", err)
	}

	got, err := s.FindTransactionByID(ctx, testTenant, rev.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got.ReversesTransactionID != original.ID || !got.IsReversal {
		t.Errorf("link not persisted: %+v", got)
	}

	if err := s.LinkReversal(ctx, testTenant, rev.ID, original.ID); !apperrors.IsConflict(err) {
		t.Errorf("expected conflict on second link, got %v", err)
	}
	if err := s.LinkReversal(ctx, testTenant, "missing", original.ID); !apperrors.IsNotFound(err) {
		t.Errorf("expected not-found for missing reversal, got %v", err)
	}
}

func TestPayeePatternRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pattern := &models.PayeePattern{
		TenantID:           testTenant,
		PayeePattern:       "WOOLWORTHS",
		PayeeAliases:       []string{"WOOLIES", "WW FOOD"},
		DefaultAccountCode: models.PlaceholderAccountCode,
	}
	if err := s.CreatePayeePattern(ctx, pattern); err != nil {
		t.Fatalf("CreatePayeePattern failed: %v", err)
	}

	got, err := s.FindPayeePatternByCanonicalName(ctx, testTenant, "woolworths")
	if err != nil {
		t.Fatalf("case-insensitive canonical lookup failed: %v", err)
	}
	if len(got.PayeeAliases) != 2 {
		t.Errorf("aliases lost in round trip: %v", got.PayeeAliases)
	}

	got.PayeeAliases = append(got.PayeeAliases, "WW SANDTON")
	if err := s.UpdatePayeePattern(ctx, got); err != nil {
		t.Fatalf("UpdatePayeePattern failed: %v", err)
	}

	reloaded, err := s.FindPayeePatternByID(ctx, testTenant, pattern.ID)
	if err != nil {
		t.Fatalf("FindPayeePatternByID failed: %v", err)
	}
	if len(reloaded.PayeeAliases) != 3 {
		t.Errorf("update not persisted: %v", reloaded.PayeeAliases)
	}
}

func TestAuditRecord(t *testing.T) {
	s := openTestStore(t)

	err := s.Record(context.Background(), testTenant, "transaction", "t-1", "link_reversal", "linked")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
}
