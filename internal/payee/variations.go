package payee

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"ledgermatch/internal/models"
	"ledgermatch/internal/store"
	"ledgermatch/internal/stringsim"
	apperrors "ledgermatch/pkg/errors"
	"ledgermatch/pkg/logger"
)

const (
	// minPayeeLength is the minimum normalized length accepted by
	// DetectVariations.
	minPayeeLength = 3

	// retentionThreshold keeps a scored pair unless the method already
	// implies a match (abbreviation, phonetic).
	retentionThreshold = 0.8

	// jaroWinklerPreference: Jaro-Winkler wins over Levenshtein only when
	// it is at least this high.
	jaroWinklerPreference = 0.85

	// suggestionConfidenceFloor filters groups for alias suggestions.
	suggestionConfidenceFloor = 70

	// DefaultSuggestionLimit caps GetSuggestedAliases output.
	DefaultSuggestionLimit = 50
)

// VariationDetector scores payee names against the tenant's payee corpus
// and clusters likely variants of the same counterparty.
type VariationDetector struct {
	store store.Store
	log   logger.Logger
}

// NewVariationDetector creates a VariationDetector backed by the given store.
func NewVariationDetector(s store.Store, log logger.Logger) *VariationDetector {
	return &VariationDetector{
		store: s,
		log:   log.WithComponent("variation-detector"),
	}
}

// calculateSimilarity scores a pair of payee names, both already normalized.
// The method ladder is ordered from strongest to weakest evidence.
func calculateSimilarity(normA, normB string) (float64, models.MatchMethod) {
	if stringsim.IsAbbreviationMatch(normA, normB) {
		return 1.0, models.MethodAbbreviation
	}
	if normA == normB {
		return 1.0, models.MethodSuffix
	}

	keyA, keyB := stringsim.PhoneticKey(normA), stringsim.PhoneticKey(normB)
	if keyA != "" && keyA == keyB {
		return 0.9, models.MethodPhonetic
	}

	lev := stringsim.LevenshteinSimilarity(normA, normB)
	jw := stringsim.JaroWinkler(normA, normB)

	if jw >= lev && jw >= jaroWinklerPreference {
		return jw, models.MethodJaroWinkler
	}
	if lev >= retentionThreshold {
		return lev, models.MethodLevenshtein
	}
	if jw > lev {
		return jw, models.MethodFuzzy
	}
	return lev, models.MethodFuzzy
}

// confidenceFor converts a similarity and method into a 0-100 confidence.
// Strong methods get a floor; weaker methods are scaled.
func confidenceFor(similarity float64, method models.MatchMethod) int {
	score := similarity * 100

	switch method {
	case models.MethodAbbreviation:
		score = math.Max(score, 95)
	case models.MethodSuffix:
		score = math.Max(score, 90)
	case models.MethodPhonetic:
		score = math.Max(score, 85)
	case models.MethodJaroWinkler:
		score *= 1.05
	case models.MethodFuzzy:
		score *= 0.9
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return int(math.Round(score))
}

// retained reports whether a scored pair should appear in variation results.
func retained(similarity float64, method models.MatchMethod) bool {
	if method == models.MethodAbbreviation || method == models.MethodPhonetic {
		return true
	}
	return similarity >= retentionThreshold
}

// corpus returns the deduplicated union of canonical names and aliases for
// the tenant, sorted lexicographically by normalized form. The sort makes
// greedy clustering deterministic.
func (d *VariationDetector) corpus(ctx context.Context, tenantID string) ([]string, error) {
	patterns, err := d.store.FindPayeePatternsByTenant(ctx, tenantID)
	if err != nil {
		return nil, apperrors.Storage(apperrors.CodeQueryFailed, "load payee corpus", err)
	}

	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		normalized := Normalize(name)
		if normalized == "" || seen[normalized] {
			return
		}
		if !stringsim.HasLetter(normalized) {
			return // account numbers and references are not payee names
		}
		seen[normalized] = true
		names = append(names, name)
	}

	for _, pattern := range patterns {
		add(pattern.PayeePattern)
		for _, alias := range pattern.PayeeAliases {
			add(alias)
		}
	}

	sort.Slice(names, func(i, j int) bool {
		ni, nj := Normalize(names[i]), Normalize(names[j])
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})
	return names, nil
}

// DetectVariations scores payeeName against every other payee in the tenant
// corpus and returns the retained matches sorted by descending confidence.
func (d *VariationDetector) DetectVariations(ctx context.Context, tenantID, payeeName string) ([]*models.VariationMatch, error) {
	normalized := Normalize(payeeName)
	if len(normalized) < minPayeeLength {
		return nil, apperrors.Validationf(apperrors.CodeInvalidInput, "payeeName",
			"payee name too short after normalization: %q", normalized)
	}

	names, err := d.corpus(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var matches []*models.VariationMatch
	for _, other := range names {
		normOther := Normalize(other)
		if strings.EqualFold(other, payeeName) {
			continue // case-insensitive exact match is the payee itself
		}

		similarity, method := calculateSimilarity(normalized, normOther)
		if !retained(similarity, method) {
			continue
		}

		matches = append(matches, &models.VariationMatch{
			PayeeA:      payeeName,
			PayeeB:      other,
			Similarity:  similarity,
			MatchType:   method,
			Confidence:  confidenceFor(similarity, method),
			NormalizedA: normalized,
			NormalizedB: normOther,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].NormalizedB < matches[j].NormalizedB
	})
	return matches, nil
}

// FindAllPotentialGroups clusters the tenant's payees by greedy single-pass
// absorption: each unprocessed payee seeds a group and absorbs every later
// unprocessed payee that is an abbreviation match or at least 0.8
// Levenshtein-similar. Groups with fewer than two members are dropped.
func (d *VariationDetector) FindAllPotentialGroups(ctx context.Context, tenantID string) ([]*models.PayeeGroup, error) {
	names, err := d.corpus(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	processed := make([]bool, len(names))
	var groups []*models.PayeeGroup

	for i := range names {
		if processed[i] {
			continue
		}
		processed[i] = true

		members := []string{names[i]}
		var methods []models.MatchMethod
		confidenceSum := 0

		normSeed := Normalize(names[i])
		for j := i + 1; j < len(names); j++ {
			if processed[j] {
				continue
			}
			normOther := Normalize(names[j])

			var similarity float64
			var method models.MatchMethod
			if stringsim.IsAbbreviationMatch(normSeed, normOther) {
				similarity, method = 1.0, models.MethodAbbreviation
			} else if lev := stringsim.LevenshteinSimilarity(normSeed, normOther); lev >= retentionThreshold {
				similarity, method = lev, models.MethodLevenshtein
			} else {
				continue
			}

			processed[j] = true
			members = append(members, names[j])
			methods = append(methods, method)
			confidenceSum += confidenceFor(similarity, method)
		}

		if len(members) < 2 {
			continue
		}

		groups = append(groups, &models.PayeeGroup{
			CanonicalName: representative(members),
			Variants:      members,
			Confidence:    confidenceSum / (len(members) - 1),
			MatchTypes:    methods,
		})
	}

	return groups, nil
}

// GetSuggestedAliases emits one alias suggestion per non-canonical variant
// of every sufficiently confident group. The canonical representative is the
// member with the shortest normalized form, ties broken alphabetically.
func (d *VariationDetector) GetSuggestedAliases(ctx context.Context, tenantID string, limit int) ([]*models.AliasSuggestion, error) {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}

	groups, err := d.FindAllPotentialGroups(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var suggestions []*models.AliasSuggestion
	for _, group := range groups {
		if group.Confidence < suggestionConfidenceFloor {
			continue
		}

		reason := suggestionReason(dominantMethod(group.MatchTypes))
		for _, variant := range group.Variants {
			if variant == group.CanonicalName {
				continue
			}
			suggestions = append(suggestions, &models.AliasSuggestion{
				CanonicalName: group.CanonicalName,
				Alias:         variant,
				Confidence:    group.Confidence,
				Reason:        reason,
			})
			if len(suggestions) == limit {
				return suggestions, nil
			}
		}
	}

	return suggestions, nil
}

// representative picks the group member with the shortest normalized form,
// breaking ties alphabetically.
func representative(members []string) string {
	best := members[0]
	bestNorm := Normalize(best)
	for _, member := range members[1:] {
		norm := Normalize(member)
		if len(norm) < len(bestNorm) || (len(norm) == len(bestNorm) && norm < bestNorm) {
			best, bestNorm = member, norm
		}
	}
	return best
}

func dominantMethod(methods []models.MatchMethod) models.MatchMethod {
	if len(methods) == 0 {
		return models.MethodFuzzy
	}
	counts := make(map[models.MatchMethod]int)
	best := methods[0]
	for _, m := range methods {
		counts[m]++
		if counts[m] > counts[best] {
			best = m
		}
	}
	return best
}

func suggestionReason(method models.MatchMethod) string {
	switch method {
	case models.MethodAbbreviation:
		return "known abbreviation of the canonical name"
	case models.MethodPhonetic:
		return "sounds identical to the canonical name"
	case models.MethodSuffix:
		return "identical after removing separators and suffixes"
	default:
		return fmt.Sprintf("high name similarity (%s)", method)
	}
}
