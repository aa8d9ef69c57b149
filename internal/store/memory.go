package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledgermatch/internal/models"
	apperrors "ledgermatch/pkg/errors"
)

// MemoryStore is an in-memory Store and AuditLog. It backs the CSV-driven
// CLI mode and the test suites.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions map[string]map[string]*models.Transaction // tenant -> id -> txn
	patterns     map[string]map[string]*models.PayeePattern
	auditEntries []AuditEntry
}

// AuditEntry is one recorded audit event.
type AuditEntry struct {
	TenantID   string
	EntityType string
	EntityID   string
	Action     string
	Summary    string
	RecordedAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[string]map[string]*models.Transaction),
		patterns:     make(map[string]map[string]*models.PayeePattern),
	}
}

func (s *MemoryStore) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if err := txn.Validate(); err != nil {
		return apperrors.Validation(apperrors.CodeInvalidInput, "transaction", err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transactions[txn.TenantID] == nil {
		s.transactions[txn.TenantID] = make(map[string]*models.Transaction)
	}
	cp := *txn
	s.transactions[txn.TenantID][txn.ID] = &cp
	return nil
}

func (s *MemoryStore) FindTransactionsByTenant(ctx context.Context, tenantID string, filter TransactionFilter) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Transaction
	for _, txn := range s.transactions[tenantID] {
		if MatchesFilter(txn, filter) {
			cp := *txn
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *MemoryStore) FindTransactionByID(ctx context.Context, tenantID, id string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn, ok := s.transactions[tenantID][id]
	if !ok {
		return nil, apperrors.NotFound(apperrors.CodeTransactionNotFound, "transaction", id)
	}
	cp := *txn
	return &cp, nil
}

func (s *MemoryStore) UpdateTransaction(ctx context.Context, tenantID, id string, patch TransactionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.transactions[tenantID][id]
	if !ok {
		return apperrors.NotFound(apperrors.CodeTransactionNotFound, "transaction", id)
	}
	if patch.IsReconciled != nil {
		txn.IsReconciled = *patch.IsReconciled
	}
	return nil
}

func (s *MemoryStore) LinkReversal(ctx context.Context, tenantID, reversalID, originalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reversal, ok := s.transactions[tenantID][reversalID]
	if !ok {
		return apperrors.NotFound(apperrors.CodeTransactionNotFound, "transaction", reversalID)
	}
	if _, ok := s.transactions[tenantID][originalID]; !ok {
		return apperrors.NotFound(apperrors.CodeTransactionNotFound, "transaction", originalID)
	}
	if reversal.ReversesTransactionID != "" {
		return apperrors.Conflictf(apperrors.CodeAlreadyLinked,
			"transaction %s already reverses %s", reversalID, reversal.ReversesTransactionID)
	}

	reversal.ReversesTransactionID = originalID
	reversal.IsReversal = true
	return nil
}

func (s *MemoryStore) FindPayeePatternsByTenant(ctx context.Context, tenantID string) ([]*models.PayeePattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.PayeePattern
	for _, p := range s.patterns[tenantID] {
		result = append(result, copyPattern(p))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PayeePattern < result[j].PayeePattern
	})
	return result, nil
}

func (s *MemoryStore) FindPayeePatternByID(ctx context.Context, tenantID, id string) (*models.PayeePattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.patterns[tenantID][id]
	if !ok {
		return nil, apperrors.NotFound(apperrors.CodePatternNotFound, "payee pattern", id)
	}
	return copyPattern(p), nil
}

func (s *MemoryStore) FindPayeePatternByCanonicalName(ctx context.Context, tenantID, canonicalName string) (*models.PayeePattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.patterns[tenantID] {
		if strings.EqualFold(p.PayeePattern, canonicalName) {
			return copyPattern(p), nil
		}
	}
	return nil, apperrors.NotFound(apperrors.CodePatternNotFound, "payee pattern", canonicalName)
}

func (s *MemoryStore) CreatePayeePattern(ctx context.Context, pattern *models.PayeePattern) error {
	if pattern.ID == "" {
		pattern.ID = uuid.NewString()
	}
	if err := pattern.Validate(); err != nil {
		return apperrors.Validation(apperrors.CodeInvalidInput, "payeePattern", err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.patterns[pattern.TenantID] == nil {
		s.patterns[pattern.TenantID] = make(map[string]*models.PayeePattern)
	}
	s.patterns[pattern.TenantID][pattern.ID] = copyPattern(pattern)
	return nil
}

func (s *MemoryStore) UpdatePayeePattern(ctx context.Context, pattern *models.PayeePattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.patterns[pattern.TenantID][pattern.ID]; !ok {
		return apperrors.NotFound(apperrors.CodePatternNotFound, "payee pattern", pattern.ID)
	}
	s.patterns[pattern.TenantID][pattern.ID] = copyPattern(pattern)
	return nil
}

// Record implements AuditLog.
func (s *MemoryStore) Record(ctx context.Context, tenantID, entityType, entityID, action, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditEntries = append(s.auditEntries, AuditEntry{
		TenantID:   tenantID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Summary:    summary,
		RecordedAt: time.Now().UTC(),
	})
	return nil
}

// AuditEntries returns a copy of the recorded audit entries for the tenant.
func (s *MemoryStore) AuditEntries(tenantID string) []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []AuditEntry
	for _, e := range s.auditEntries {
		if e.TenantID == tenantID {
			result = append(result, e)
		}
	}
	return result
}

func copyPattern(p *models.PayeePattern) *models.PayeePattern {
	cp := *p
	cp.PayeeAliases = append([]string(nil), p.PayeeAliases...)
	return &cp
}
