package payee

import (
	"context"
	"testing"

	"ledgermatch/internal/models"
	"ledgermatch/internal/store"
	apperrors "ledgermatch/pkg/errors"
	"ledgermatch/pkg/logger"
)

const testTenant = "tenant-1"

func newTestResolver(t *testing.T) (*AliasResolver, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	return NewAliasResolver(s, s, logger.Discard()), s
}

func mustCreateAlias(t *testing.T, r *AliasResolver, alias, canonical string) *models.PayeePattern {
	t.Helper()
	pattern, err := r.CreateAlias(context.Background(), testTenant, alias, canonical)
	if err != nil {
		t.Fatalf("CreateAlias(%q, %q) failed: %v", alias, canonical, err)
	}
	return pattern
}

func TestResolveAlias(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	mustCreateAlias(t, r, "WOOLWORTHS SANDTON", "WOOLWORTHS")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"alias exact", "WOOLWORTHS SANDTON", "WOOLWORTHS"},
		{"alias different case and separators", "Woolworths-Sandton", "WOOLWORTHS"},
		{"canonical name itself", "woolworths", "WOOLWORTHS"},
		{"unknown payee returned unchanged", "CHECKERS HYPER", "CHECKERS HYPER"},
		{"empty returned unchanged", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveAlias(ctx, testTenant, tt.input)
			if err != nil {
				t.Fatalf("ResolveAlias(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ResolveAlias(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveAliasIsTenantScoped(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	mustCreateAlias(t, r, "WOOLWORTHS SANDTON", "WOOLWORTHS")

	got, err := r.ResolveAlias(ctx, "other-tenant", "WOOLWORTHS SANDTON")
	if err != nil {
		t.Fatalf("ResolveAlias failed: %v", err)
	}
	if got != "WOOLWORTHS SANDTON" {
		t.Errorf("alias leaked across tenants: got %q", got)
	}
}

func TestCreateAliasValidation(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	if _, err := r.CreateAlias(ctx, testTenant, "", "WOOLWORTHS"); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error for empty alias, got %v", err)
	}
	if _, err := r.CreateAlias(ctx, testTenant, "WOOLIES", "  "); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error for empty canonical, got %v", err)
	}
}

func TestCreateAliasGlobalUniqueness(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	mustCreateAlias(t, r, "ABC", "ABC Company")

	// Case-insensitive collision against an alias of a different pattern.
	if _, err := r.CreateAlias(ctx, testTenant, "abc", "XYZ Ltd"); !apperrors.IsConflict(err) {
		t.Errorf("expected conflict for duplicate alias, got %v", err)
	}

	// Collision against another pattern's canonical name.
	mustCreateAlias(t, r, "XYZ SVC", "XYZ Services")
	if _, err := r.CreateAlias(ctx, testTenant, "xyz-services", "Another Co"); !apperrors.IsConflict(err) {
		t.Errorf("expected conflict for alias shadowing a canonical name, got %v", err)
	}
}

func TestCreateAliasLazyPatternCreation(t *testing.T) {
	r, s := newTestResolver(t)
	ctx := context.Background()

	pattern := mustCreateAlias(t, r, "WOOLIES", "WOOLWORTHS")
	if pattern.DefaultAccountCode != models.PlaceholderAccountCode {
		t.Errorf("expected placeholder account code, got %q", pattern.DefaultAccountCode)
	}

	stored, err := s.FindPayeePatternByCanonicalName(ctx, testTenant, "WOOLWORTHS")
	if err != nil {
		t.Fatalf("pattern not persisted: %v", err)
	}
	if len(stored.PayeeAliases) != 1 || stored.PayeeAliases[0] != "WOOLIES" {
		t.Errorf("unexpected aliases: %v", stored.PayeeAliases)
	}
}

func TestGetAliases(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	mustCreateAlias(t, r, "WOOLIES", "WOOLWORTHS")
	mustCreateAlias(t, r, "WW FOOD", "WOOLWORTHS")

	aliases, err := r.GetAliases(ctx, testTenant, "WOOLWORTHS")
	if err != nil {
		t.Fatalf("GetAliases failed: %v", err)
	}
	if len(aliases) != 2 {
		t.Fatalf("expected 2 aliases, got %d", len(aliases))
	}

	if _, err := r.GetAliases(ctx, testTenant, "NO SUCH NAME"); !apperrors.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestDeleteAlias(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	pattern := mustCreateAlias(t, r, "WOOLIES", "WOOLWORTHS")

	// Deletion is case/format-insensitive on the alias value.
	if err := r.DeleteAlias(ctx, testTenant, pattern.ID+":woolies"); err != nil {
		t.Fatalf("DeleteAlias failed: %v", err)
	}

	aliases, err := r.GetAliases(ctx, testTenant, "WOOLWORTHS")
	if err != nil {
		t.Fatalf("GetAliases failed: %v", err)
	}
	if len(aliases) != 0 {
		t.Errorf("expected no aliases after delete, got %v", aliases)
	}
}

func TestDeleteAliasErrors(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	pattern := mustCreateAlias(t, r, "WOOLIES", "WOOLWORTHS")

	if err := r.DeleteAlias(ctx, testTenant, "malformed"); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error for malformed id, got %v", err)
	}
	if err := r.DeleteAlias(ctx, testTenant, pattern.ID+":NOPE"); !apperrors.IsNotFound(err) {
		t.Errorf("expected not-found for unknown alias, got %v", err)
	}
	if err := r.DeleteAlias(ctx, testTenant, "bad-pattern-id:WOOLIES"); !apperrors.IsNotFound(err) {
		t.Errorf("expected not-found for unknown pattern, got %v", err)
	}
}

func TestFindSimilar(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	mustCreateAlias(t, r, "WOOLWORTHS SANDTON", "WOOLWORTHS")
	mustCreateAlias(t, r, "CHECKERS HYPER N1", "CHECKERS")

	names, err := r.FindSimilar(ctx, testTenant, "WOOLWORTH")
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(names) != 1 || names[0] != "WOOLWORTHS" {
		t.Errorf("FindSimilar = %v, want [WOOLWORTHS]", names)
	}

	// One entry per pattern even when both canonical and alias match.
	names, err = r.FindSimilar(ctx, testTenant, "WOOLWORTHS")
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	count := 0
	for _, n := range names {
		if n == "WOOLWORTHS" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one entry for the WOOLWORTHS pattern, got %d in %v", count, names)
	}
}
