package payee

import (
	"context"
	"sort"
	"strings"

	"ledgermatch/internal/models"
	"ledgermatch/internal/store"
	"ledgermatch/internal/stringsim"
	apperrors "ledgermatch/pkg/errors"
	"ledgermatch/pkg/logger"
)

// similarityThreshold is the minimum Levenshtein similarity for FindSimilar
// candidates.
const similarityThreshold = 0.8

// AliasResolver maps payee names to canonical names via stored alias
// records, and maintains the alias links.
type AliasResolver struct {
	store store.Store
	audit store.AuditLog
	log   logger.Logger
}

// NewAliasResolver creates an AliasResolver backed by the given store.
func NewAliasResolver(s store.Store, audit store.AuditLog, log logger.Logger) *AliasResolver {
	return &AliasResolver{
		store: s,
		audit: audit,
		log:   log.WithComponent("alias-resolver"),
	}
}

// ResolveAlias returns the canonical name for payeeName when its normalized
// form matches a pattern's canonical name or any of its aliases. An
// unrecognized name is not an error: the input is returned unchanged.
func (r *AliasResolver) ResolveAlias(ctx context.Context, tenantID, payeeName string) (string, error) {
	normalized := Normalize(payeeName)
	if normalized == "" {
		return payeeName, nil
	}

	patterns, err := r.store.FindPayeePatternsByTenant(ctx, tenantID)
	if err != nil {
		return "", apperrors.Storage(apperrors.CodeQueryFailed, "resolve alias", err)
	}

	for _, pattern := range patterns {
		if Normalize(pattern.PayeePattern) == normalized {
			return pattern.PayeePattern, nil
		}
		for _, alias := range pattern.PayeeAliases {
			if Normalize(alias) == normalized {
				return pattern.PayeePattern, nil
			}
		}
	}

	return payeeName, nil
}

// CreateAlias links alias to canonicalName, creating the pattern lazily when
// no pattern exists for the canonical name. The normalized alias must not
// collide with any canonical name or alias anywhere in the tenant corpus.
func (r *AliasResolver) CreateAlias(ctx context.Context, tenantID, alias, canonicalName string) (*models.PayeePattern, error) {
	if strings.TrimSpace(alias) == "" {
		return nil, apperrors.Validation(apperrors.CodeMissingField, "alias", "alias cannot be empty")
	}
	if strings.TrimSpace(canonicalName) == "" {
		return nil, apperrors.Validation(apperrors.CodeMissingField, "canonicalName", "canonical name cannot be empty")
	}

	normalizedAlias := Normalize(alias)

	patterns, err := r.store.FindPayeePatternsByTenant(ctx, tenantID)
	if err != nil {
		return nil, apperrors.Storage(apperrors.CodeQueryFailed, "create alias", err)
	}

	// Corpus-wide duplicate check: the alias may not shadow any canonical
	// name or alias of any pattern in the tenant.
	for _, pattern := range patterns {
		if Normalize(pattern.PayeePattern) == normalizedAlias {
			return nil, apperrors.Conflictf(apperrors.CodeDuplicateAlias,
				"alias %q collides with canonical name %q", alias, pattern.PayeePattern)
		}
		for _, existing := range pattern.PayeeAliases {
			if Normalize(existing) == normalizedAlias {
				return nil, apperrors.Conflictf(apperrors.CodeDuplicateAlias,
					"alias %q already exists under pattern %q", alias, pattern.PayeePattern)
			}
		}
	}

	target := findPatternByCanonical(patterns, canonicalName)
	if target == nil {
		target = &models.PayeePattern{
			TenantID:           tenantID,
			PayeePattern:       canonicalName,
			DefaultAccountCode: models.PlaceholderAccountCode,
		}
		if err := r.store.CreatePayeePattern(ctx, target); err != nil {
			return nil, apperrors.Storage(apperrors.CodeUpdateFailed, "create payee pattern", err)
		}
		r.log.WithFields(logger.Fields{"tenant": tenantID, "canonical": canonicalName}).
			Info("created payee pattern for new canonical name")
	}

	target.PayeeAliases = append(target.PayeeAliases, alias)
	if err := r.store.UpdatePayeePattern(ctx, target); err != nil {
		return nil, apperrors.Storage(apperrors.CodeUpdateFailed, "append alias", err)
	}

	if r.audit != nil {
		_ = r.audit.Record(ctx, tenantID, "payee_pattern", target.ID, "alias_created",
			"alias "+alias+" -> "+canonicalName)
	}

	return target, nil
}

// GetAliases returns the alias list for the pattern with the given canonical
// name, or a not-found error.
func (r *AliasResolver) GetAliases(ctx context.Context, tenantID, canonicalName string) ([]string, error) {
	pattern, err := r.store.FindPayeePatternByCanonicalName(ctx, tenantID, canonicalName)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), pattern.PayeeAliases...), nil
}

// DeleteAlias removes an alias identified by the composite id
// "{patternId}:{alias}". The id is split on the first colon only, so aliases
// containing the delimiter are handled. Alias comparison is case- and
// format-insensitive.
func (r *AliasResolver) DeleteAlias(ctx context.Context, tenantID, aliasID string) error {
	patternID, aliasValue, ok := strings.Cut(aliasID, ":")
	if !ok || patternID == "" || aliasValue == "" {
		return apperrors.Validationf(apperrors.CodeMalformedID, "aliasId",
			"alias id must have the form {patternId}:{alias}, got %q", aliasID)
	}

	pattern, err := r.store.FindPayeePatternByID(ctx, tenantID, patternID)
	if err != nil {
		return err
	}

	normalized := Normalize(aliasValue)
	kept := pattern.PayeeAliases[:0]
	found := false
	for _, alias := range pattern.PayeeAliases {
		if !found && Normalize(alias) == normalized {
			found = true
			continue
		}
		kept = append(kept, alias)
	}
	if !found {
		return apperrors.NotFound(apperrors.CodeAliasNotFound, "alias", aliasValue)
	}

	pattern.PayeeAliases = kept
	if err := r.store.UpdatePayeePattern(ctx, pattern); err != nil {
		return apperrors.Storage(apperrors.CodeUpdateFailed, "delete alias", err)
	}

	if r.audit != nil {
		_ = r.audit.Record(ctx, tenantID, "payee_pattern", pattern.ID, "alias_deleted", aliasValue)
	}
	return nil
}

// FindSimilar scores payeeName against every canonical name and alias in
// the tenant corpus and returns the canonical names of matching patterns,
// sorted by descending best similarity. One entry per pattern: once a
// pattern matches, its remaining aliases are skipped.
func (r *AliasResolver) FindSimilar(ctx context.Context, tenantID, payeeName string) ([]string, error) {
	normalized := Normalize(payeeName)
	if normalized == "" {
		return nil, nil
	}

	patterns, err := r.store.FindPayeePatternsByTenant(ctx, tenantID)
	if err != nil {
		return nil, apperrors.Storage(apperrors.CodeQueryFailed, "find similar payees", err)
	}

	type scored struct {
		canonical  string
		similarity float64
	}
	var results []scored

	for _, pattern := range patterns {
		candidates := append([]string{pattern.PayeePattern}, pattern.PayeeAliases...)
		for _, candidate := range candidates {
			sim := stringsim.LevenshteinSimilarity(normalized, Normalize(candidate))
			if sim >= similarityThreshold {
				results = append(results, scored{canonical: pattern.PayeePattern, similarity: sim})
				break // first match per pattern wins
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].similarity > results[j].similarity
	})

	names := make([]string, len(results))
	for i, s := range results {
		names[i] = s.canonical
	}
	return names, nil
}

func findPatternByCanonical(patterns []*models.PayeePattern, canonicalName string) *models.PayeePattern {
	normalized := Normalize(canonicalName)
	for _, pattern := range patterns {
		if Normalize(pattern.PayeePattern) == normalized {
			return pattern
		}
	}
	return nil
}
