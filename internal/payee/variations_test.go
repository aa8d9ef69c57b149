package payee

import (
	"context"
	"testing"

	"ledgermatch/internal/models"
	"ledgermatch/internal/store"
	apperrors "ledgermatch/pkg/errors"
	"ledgermatch/pkg/logger"
)

func newTestDetector(t *testing.T, payees map[string][]string) *VariationDetector {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()
	for canonical, aliases := range payees {
		err := s.CreatePayeePattern(ctx, &models.PayeePattern{
			TenantID:           testTenant,
			PayeePattern:       canonical,
			PayeeAliases:       aliases,
			DefaultAccountCode: models.PlaceholderAccountCode,
		})
		if err != nil {
			t.Fatalf("seeding pattern %q failed: %v", canonical, err)
		}
	}
	return NewVariationDetector(s, logger.Discard())
}

func TestCalculateSimilarityLadder(t *testing.T) {
	tests := []struct {
		name       string
		a, b       string
		wantMethod models.MatchMethod
		wantScore  float64
	}{
		{"abbreviation", "FNB", "FIRST NATIONAL BANK", models.MethodAbbreviation, 1.0},
		{"exact after normalization", "PICK N PAY", "PICK N PAY", models.MethodSuffix, 1.0},
		{"phonetic", "SMITH", "SMYTH", models.MethodPhonetic, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, method := calculateSimilarity(tt.a, tt.b)
			if method != tt.wantMethod {
				t.Errorf("method = %s, want %s", method, tt.wantMethod)
			}
			if score < tt.wantScore-1e-9 || score > tt.wantScore+1e-9 {
				t.Errorf("score = %f, want %f", score, tt.wantScore)
			}
		})
	}
}

func TestCalculateSimilarityPrefersJaroWinkler(t *testing.T) {
	// One substitution outside the shared prefix: Jaro-Winkler clears the
	// 0.85 preference bar and beats plain Levenshtein.
	score, method := calculateSimilarity("ABC COMPANY", "ABD COMPANY")
	if method != models.MethodJaroWinkler {
		t.Errorf("method = %s, want jaro-winkler", method)
	}
	if score < 0.85 {
		t.Errorf("score = %f, want >= 0.85", score)
	}
}

func TestCalculateSimilarityFuzzyFallback(t *testing.T) {
	score, method := calculateSimilarity("WOOLWORTHS", "CASH WITHDRAWAL")
	if method != models.MethodFuzzy {
		t.Errorf("method = %s, want fuzzy", method)
	}
	if score >= retentionThreshold {
		t.Errorf("expected low score for unrelated names, got %f", score)
	}
}

func TestConfidenceFloorsAndScaling(t *testing.T) {
	tests := []struct {
		method     models.MatchMethod
		similarity float64
		want       int
	}{
		{models.MethodAbbreviation, 1.0, 100},
		{models.MethodAbbreviation, 0.5, 95}, // floored
		{models.MethodSuffix, 1.0, 100},
		{models.MethodSuffix, 0.8, 90},       // floored
		{models.MethodPhonetic, 0.9, 90},     // 90 > floor of 85
		{models.MethodPhonetic, 0.5, 85},     // floored
		{models.MethodJaroWinkler, 0.9, 95},  // 90 * 1.05 = 94.5 -> 95
		{models.MethodJaroWinkler, 1.0, 100}, // clamped
		{models.MethodFuzzy, 0.9, 81},        // 90 * 0.9
		{models.MethodLevenshtein, 0.85, 85}, // unscaled
	}

	for _, tt := range tests {
		if got := confidenceFor(tt.similarity, tt.method); got != tt.want {
			t.Errorf("confidenceFor(%f, %s) = %d, want %d", tt.similarity, tt.method, got, tt.want)
		}
	}
}

func TestDetectVariations(t *testing.T) {
	d := newTestDetector(t, map[string][]string{
		"WOOLWORTHS": {"WOOLWORTHS SANDTON"},
		"WOOLWORTH":  nil,
		"CHECKERS":   nil,
	})
	ctx := context.Background()

	matches, err := d.DetectVariations(ctx, testTenant, "WOOLWORTHS")
	if err != nil {
		t.Fatalf("DetectVariations failed: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("expected at least one variation match")
	}

	for _, m := range matches {
		if m.PayeeB == "CHECKERS" {
			t.Error("unrelated payee CHECKERS should not be retained")
		}
		if m.PayeeB == "WOOLWORTHS" {
			t.Error("the payee itself should be excluded")
		}
	}

	// Confidence non-increasing across the sorted result.
	for i := 1; i < len(matches); i++ {
		if matches[i].Confidence > matches[i-1].Confidence {
			t.Errorf("confidence not monotonic at %d: %d > %d",
				i, matches[i].Confidence, matches[i-1].Confidence)
		}
	}
}

func TestDetectVariationsRejectsShortNames(t *testing.T) {
	d := newTestDetector(t, nil)

	_, err := d.DetectVariations(context.Background(), testTenant, "A-")
	if !apperrors.IsValidation(err) {
		t.Errorf("expected validation error for short name, got %v", err)
	}
}

func TestFindAllPotentialGroupsDeterministic(t *testing.T) {
	seed := map[string][]string{
		"WOOLWORTHS":  nil,
		"WOOLWORTH":   nil,
		"WOOLWORTHS ": nil, // dedupes to WOOLWORTHS
		"CHECKERS":    nil,
		"CHEKERS":     nil,
		"UNRELATED":   nil,
	}

	d := newTestDetector(t, seed)
	ctx := context.Background()

	first, err := d.FindAllPotentialGroups(ctx, testTenant)
	if err != nil {
		t.Fatalf("FindAllPotentialGroups failed: %v", err)
	}

	// A fresh detector over the same corpus yields identical groups.
	second, err := newTestDetector(t, seed).FindAllPotentialGroups(ctx, testTenant)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("group count differs between runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].CanonicalName != second[i].CanonicalName {
			t.Errorf("group %d canonical differs: %q vs %q", i, first[i].CanonicalName, second[i].CanonicalName)
		}
		if len(first[i].Variants) != len(second[i].Variants) {
			t.Errorf("group %d size differs", i)
		}
	}

	if len(first) != 2 {
		t.Fatalf("expected 2 groups (woolworths, checkers), got %d", len(first))
	}
	for _, g := range first {
		if len(g.Variants) < 2 {
			t.Errorf("group %q has fewer than 2 members", g.CanonicalName)
		}
		for _, v := range g.Variants {
			if v == "UNRELATED" {
				t.Error("UNRELATED absorbed into a group")
			}
		}
	}
}

func TestGetSuggestedAliases(t *testing.T) {
	d := newTestDetector(t, map[string][]string{
		"WOOLWORTHS": nil,
		"WOOLWORTH":  nil,
		"CHECKERS":   nil,
	})
	ctx := context.Background()

	suggestions, err := d.GetSuggestedAliases(ctx, testTenant, 0)
	if err != nil {
		t.Fatalf("GetSuggestedAliases failed: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(suggestions))
	}

	s := suggestions[0]
	// Shortest normalized form is the canonical representative.
	if s.CanonicalName != "WOOLWORTH" {
		t.Errorf("canonical = %q, want WOOLWORTH", s.CanonicalName)
	}
	if s.Alias != "WOOLWORTHS" {
		t.Errorf("alias = %q, want WOOLWORTHS", s.Alias)
	}
	if s.Confidence < suggestionConfidenceFloor {
		t.Errorf("confidence %d below floor", s.Confidence)
	}
	if s.Reason == "" {
		t.Error("expected a human-readable reason")
	}
}

func TestGetSuggestedAliasesLimit(t *testing.T) {
	d := newTestDetector(t, map[string][]string{
		"WOOLWORTHS": nil,
		"WOOLWORTH":  nil,
		"CHECKERS":   nil,
		"CHEKERS":    nil,
	})

	suggestions, err := d.GetSuggestedAliases(context.Background(), testTenant, 1)
	if err != nil {
		t.Fatalf("GetSuggestedAliases failed: %v", err)
	}
	if len(suggestions) != 1 {
		t.Errorf("expected limit of 1 to apply, got %d suggestions", len(suggestions))
	}
}
