// Package reversal finds the original transaction that a negative entry
// reverses and maintains the one-directional reversal link between them.
package reversal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ledgermatch/internal/models"
	"ledgermatch/internal/payee"
	"ledgermatch/internal/store"
	"ledgermatch/internal/stringsim"
	apperrors "ledgermatch/pkg/errors"
	"ledgermatch/pkg/logger"
)

// searchWindowDays bounds the initial candidate search on both sides of the
// reversal date, inclusive.
const searchWindowDays = 7

// reversalKeywords are stripped as a prefix from normalized names before
// comparison. Longest forms first so REVERSAL is not half-stripped as REV.
// R/D normalizes to "R D" before the prefix check runs.
var reversalKeywords = []string{"REVERSAL", "REFUND", "REV", "R D"}

// Detector scores candidate originals for reversal-looking transactions.
type Detector struct {
	store store.Store
	audit store.AuditLog
	log   logger.Logger
}

// NewDetector creates a reversal detector over the given store.
func NewDetector(s store.Store, audit store.AuditLog, log logger.Logger) *Detector {
	return &Detector{
		store: s,
		audit: audit,
		log:   log.WithComponent("reversal-detector"),
	}
}

// DetectReversal returns the most likely original for txn, or nil when txn
// cannot be a reversal or no candidate scores. Transactions with a
// non-negative signed amount are never reversals and short-circuit before
// any store lookup.
func (d *Detector) DetectReversal(ctx context.Context, tenantID string, txn *models.Transaction) (*models.ReversalMatch, error) {
	if txn.SignedAmountCents() >= 0 {
		return nil, nil
	}

	candidates, err := d.FindPotentialOriginals(ctx, tenantID, txn.SignedAmountCents(), txn.Date)
	if err != nil {
		return nil, err
	}

	var best *models.ReversalMatch
	var bestDayDiff int

	for _, candidate := range candidates {
		if candidate.ID == txn.ID {
			continue
		}
		confidence, reason := scoreCandidate(txn, candidate)
		if confidence == 0 {
			continue
		}

		dayDiff := absDayDiff(txn.Date, candidate.Date)
		if best == nil || confidence > best.Confidence ||
			(confidence == best.Confidence && dayDiff < bestDayDiff) {
			best = &models.ReversalMatch{
				OriginalTransactionID: candidate.ID,
				Confidence:            confidence,
				MatchReason:           reason,
			}
			bestDayDiff = dayDiff
		}
	}

	if best != nil {
		d.log.WithFields(logger.Fields{
			"tenant_id":   tenantID,
			"transaction": txn.ID,
			"original":    best.OriginalTransactionID,
			"confidence":  best.Confidence,
		}).Debug("reversal candidate found")
	}
	return best, nil
}

// FindPotentialOriginals returns unreconciled transactions with the exact
// opposite-signed amount near the given date. The 7-day window is tried
// first; when it yields nothing the search is repeated unbounded so a
// late-arriving original is still found.
func (d *Detector) FindPotentialOriginals(ctx context.Context, tenantID string, signedAmountCents int64, date time.Time) ([]*models.Transaction, error) {
	if signedAmountCents >= 0 {
		return nil, nil
	}
	magnitude := -signedAmountCents

	filter := store.TransactionFilter{
		DateFrom:         date.AddDate(0, 0, -searchWindowDays),
		DateTo:           date.AddDate(0, 0, searchWindowDays),
		UnreconciledOnly: true,
		AbsAmountCents:   magnitude,
	}

	found, err := d.store.FindTransactionsByTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, apperrors.Storage(apperrors.CodeQueryFailed, "find potential originals", err)
	}
	originals := keepOriginals(found)
	if len(originals) > 0 {
		return originals, nil
	}

	filter.DateFrom = time.Time{}
	filter.DateTo = time.Time{}
	found, err = d.store.FindTransactionsByTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, apperrors.Storage(apperrors.CodeQueryFailed, "find potential originals", err)
	}
	return keepOriginals(found), nil
}

// keepOriginals drops candidates that are themselves reversals and keeps
// only credits, the opposite direction of a negative reversal entry.
func keepOriginals(txns []*models.Transaction) []*models.Transaction {
	var out []*models.Transaction
	for _, txn := range txns {
		if txn.IsReversal || !txn.IsCredit {
			continue
		}
		out = append(out, txn)
	}
	return out
}

// LinkReversal records that reversalID reverses originalID. Both rows must
// exist, and a reversal may be linked at most once; re-linking fails with a
// conflict from the store.
func (d *Detector) LinkReversal(ctx context.Context, tenantID, reversalID, originalID string) error {
	if reversalID == originalID {
		return apperrors.Validation(apperrors.CodeInvalidInput, "originalId", "a transaction cannot reverse itself")
	}

	reversalTxn, err := d.store.FindTransactionByID(ctx, tenantID, reversalID)
	if err != nil {
		return err
	}
	if _, err := d.store.FindTransactionByID(ctx, tenantID, originalID); err != nil {
		return err
	}

	if err := d.store.LinkReversal(ctx, tenantID, reversalID, originalID); err != nil {
		return err
	}

	summary := fmt.Sprintf("linked %s (%s) as reversal of %s", reversalID, reversalTxn.Description, originalID)
	if err := d.audit.Record(ctx, tenantID, "transaction", reversalID, "link_reversal", summary); err != nil {
		d.log.WithError(err).Warn("audit record failed for reversal link")
	}
	return nil
}

// GetReversalsFor returns every transaction linked as a reversal of the
// given original.
func (d *Detector) GetReversalsFor(ctx context.Context, tenantID, originalID string) ([]*models.Transaction, error) {
	txns, err := d.store.FindTransactionsByTenant(ctx, tenantID, store.TransactionFilter{
		ReversesTransactionID: originalID,
	})
	if err != nil {
		return nil, apperrors.Storage(apperrors.CodeQueryFailed, "get reversals", err)
	}
	return txns, nil
}

// scoreCandidate rates how likely candidate is the original that reversal
// cancels. Zero means no match.
func scoreCandidate(reversal, candidate *models.Transaction) (int, string) {
	reversalName, reversalStripped := strippedName(reversal)
	candidateName, candidateStripped := strippedName(candidate)
	keywordStripped := reversalStripped || candidateStripped
	sameDay := reversal.DateKey() == candidate.DateKey()

	// Neither side names a payee: score on amount and date alone.
	if reversalName == "" && candidateName == "" {
		if sameDay {
			return 75, "amount and date match"
		}
		return 60, "amount and date match"
	}

	if reversalName != "" && reversalName == candidateName {
		confidence := 90
		reason := "exact payee match"
		if sameDay {
			confidence += 5
		}
		if keywordStripped {
			confidence += 3
			reason += " after stripping reversal keywords"
		}
		if confidence > 100 {
			confidence = 100
		}
		return confidence, reason
	}

	similarity := stringsim.LevenshteinSimilarity(reversalName, candidateName)

	if similarity >= 0.8 {
		confidence := 70 + int(similarity*20)
		if confidence > 89 {
			confidence = 89
		}
		reason := "high payee similarity"
		if keywordStripped {
			reason += " after stripping reversal keywords"
		}
		return confidence, reason
	}

	if sameDay {
		return 70, "same-day amount match"
	}

	if keywordStripped && similarity >= 0.5 {
		return 55 + int(similarity*15), "partial payee similarity after stripping reversal keywords"
	}

	return 0, ""
}

// strippedName normalizes the transaction's payee name, falling back to the
// description, and strips one leading reversal keyword. The second return
// reports whether a keyword was removed.
func strippedName(txn *models.Transaction) (string, bool) {
	raw := txn.PayeeName
	if raw == "" {
		raw = txn.Description
	}
	name := payee.Normalize(raw)

	for _, keyword := range reversalKeywords {
		if name == keyword {
			return "", true
		}
		if strings.HasPrefix(name, keyword+" ") {
			return strings.TrimSpace(strings.TrimPrefix(name, keyword)), true
		}
	}
	return name, false
}

func absDayDiff(a, b time.Time) int {
	diff := int(a.Sub(b).Hours() / 24)
	if diff < 0 {
		diff = -diff
	}
	return diff
}
