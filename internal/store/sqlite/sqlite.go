// Package sqlite provides a SQLite-backed ledger store and audit log with
// the same semantics as the in-memory store, for single-file deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"ledgermatch/internal/models"
	"ledgermatch/internal/store"
	apperrors "ledgermatch/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id                      TEXT PRIMARY KEY,
	tenant_id               TEXT NOT NULL,
	date                    TEXT NOT NULL,
	description             TEXT NOT NULL,
	payee_name              TEXT NOT NULL DEFAULT '',
	amount_cents            INTEGER NOT NULL,
	is_credit               INTEGER NOT NULL,
	reference               TEXT NOT NULL DEFAULT '',
	is_reconciled           INTEGER NOT NULL DEFAULT 0,
	reverses_transaction_id TEXT,
	is_reversal             INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_transactions_tenant_date ON transactions(tenant_id, date);
CREATE INDEX IF NOT EXISTS idx_transactions_reverses ON transactions(tenant_id, reverses_transaction_id);

CREATE TABLE IF NOT EXISTS payee_patterns (
	id                   TEXT PRIMARY KEY,
	tenant_id            TEXT NOT NULL,
	payee_pattern        TEXT NOT NULL,
	payee_aliases        TEXT NOT NULL DEFAULT '[]',
	default_account_code TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_payee_patterns_tenant ON payee_patterns(tenant_id);

CREATE TABLE IF NOT EXISTS audit_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id   TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	action      TEXT NOT NULL,
	summary     TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);
`

// Store is a SQLite-backed implementation of store.Store and store.AuditLog.
type Store struct {
	db *sql.DB
}

var (
	_ store.Store    = (*Store)(nil)
	_ store.AuditLog = (*Store)(nil)
)

// Open opens or creates the SQLite database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.Storage(apperrors.CodeQueryFailed, "open database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Storage(apperrors.CodeQueryFailed, "apply schema", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if err := txn.Validate(); err != nil {
		return apperrors.Validation(apperrors.CodeInvalidInput, "transaction", err.Error())
	}

	var reverses interface{}
	if txn.ReversesTransactionID != "" {
		reverses = txn.ReversesTransactionID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
			(id, tenant_id, date, description, payee_name, amount_cents,
			 is_credit, reference, is_reconciled, reverses_transaction_id, is_reversal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.TenantID, txn.DateKey(), txn.Description, txn.PayeeName,
		txn.AmountCents, txn.IsCredit, txn.Reference, txn.IsReconciled,
		reverses, txn.IsReversal)
	if err != nil {
		return apperrors.Storage(apperrors.CodeQueryFailed, "insert transaction", err)
	}
	return nil
}

func (s *Store) FindTransactionsByTenant(ctx context.Context, tenantID string, filter store.TransactionFilter) ([]*models.Transaction, error) {
	query := `
		SELECT id, tenant_id, date, description, payee_name, amount_cents,
		       is_credit, reference, is_reconciled, reverses_transaction_id, is_reversal
		FROM transactions
		WHERE tenant_id = ?`
	args := []interface{}{tenantID}

	if !filter.DateFrom.IsZero() {
		query += " AND date >= ?"
		args = append(args, filter.DateFrom.Format(models.DateKeyFormat))
	}
	if !filter.DateTo.IsZero() {
		query += " AND date <= ?"
		args = append(args, filter.DateTo.Format(models.DateKeyFormat))
	}
	if filter.UnreconciledOnly {
		query += " AND is_reconciled = 0"
	}
	if filter.AbsAmountCents > 0 {
		query += " AND amount_cents = ?"
		args = append(args, filter.AbsAmountCents)
	}
	if filter.ReversesTransactionID != "" {
		query += " AND reverses_transaction_id = ?"
		args = append(args, filter.ReversesTransactionID)
	}

	query += " ORDER BY date ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Storage(apperrors.CodeQueryFailed, "query transactions", err)
	}
	defer rows.Close()

	var result []*models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage(apperrors.CodeQueryFailed, "query transactions", err)
	}
	return result, nil
}

func (s *Store) FindTransactionByID(ctx context.Context, tenantID, id string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, date, description, payee_name, amount_cents,
		       is_credit, reference, is_reconciled, reverses_transaction_id, is_reversal
		FROM transactions
		WHERE tenant_id = ? AND id = ?`, tenantID, id)

	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound(apperrors.CodeTransactionNotFound, "transaction", id)
	}
	return txn, err
}

func (s *Store) UpdateTransaction(ctx context.Context, tenantID, id string, patch store.TransactionPatch) error {
	if patch.IsReconciled == nil {
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET is_reconciled = ?
		WHERE tenant_id = ? AND id = ?`, *patch.IsReconciled, tenantID, id)
	if err != nil {
		return apperrors.Storage(apperrors.CodeUpdateFailed, "update transaction", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperrors.NotFound(apperrors.CodeTransactionNotFound, "transaction", id)
	}
	return nil
}

// LinkReversal sets the back-reference with a conditional update so the
// link can only ever be written once; a concurrent second writer sees zero
// affected rows and gets a conflict.
func (s *Store) LinkReversal(ctx context.Context, tenantID, reversalID, originalID string) error {
	if _, err := s.FindTransactionByID(ctx, tenantID, originalID); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET reverses_transaction_id = ?, is_reversal = 1
		WHERE tenant_id = ? AND id = ? AND reverses_transaction_id IS NULL`,
		originalID, tenantID, reversalID)
	if err != nil {
		return apperrors.Storage(apperrors.CodeUpdateFailed, "link reversal", err)
	}
	if affected, _ := res.RowsAffected(); affected == 1 {
		return nil
	}

	// Zero rows: the reversal is missing or already linked.
	existing, err := s.FindTransactionByID(ctx, tenantID, reversalID)
	if err != nil {
		return err
	}
	return apperrors.Conflictf(apperrors.CodeAlreadyLinked,
		"transaction %s already reverses %s", reversalID, existing.ReversesTransactionID)
}

func (s *Store) FindPayeePatternsByTenant(ctx context.Context, tenantID string) ([]*models.PayeePattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, payee_pattern, payee_aliases, default_account_code
		FROM payee_patterns
		WHERE tenant_id = ?
		ORDER BY payee_pattern ASC`, tenantID)
	if err != nil {
		return nil, apperrors.Storage(apperrors.CodeQueryFailed, "query payee patterns", err)
	}
	defer rows.Close()

	var result []*models.PayeePattern
	for rows.Next() {
		pattern, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, pattern)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage(apperrors.CodeQueryFailed, "query payee patterns", err)
	}
	return result, nil
}

func (s *Store) FindPayeePatternByID(ctx context.Context, tenantID, id string) (*models.PayeePattern, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, payee_pattern, payee_aliases, default_account_code
		FROM payee_patterns
		WHERE tenant_id = ? AND id = ?`, tenantID, id)

	pattern, err := scanPattern(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound(apperrors.CodePatternNotFound, "payee pattern", id)
	}
	return pattern, err
}

func (s *Store) FindPayeePatternByCanonicalName(ctx context.Context, tenantID, canonicalName string) (*models.PayeePattern, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, payee_pattern, payee_aliases, default_account_code
		FROM payee_patterns
		WHERE tenant_id = ? AND payee_pattern = ? COLLATE NOCASE`, tenantID, canonicalName)

	pattern, err := scanPattern(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound(apperrors.CodePatternNotFound, "payee pattern", canonicalName)
	}
	return pattern, err
}

func (s *Store) CreatePayeePattern(ctx context.Context, pattern *models.PayeePattern) error {
	if pattern.ID == "" {
		pattern.ID = uuid.NewString()
	}
	if err := pattern.Validate(); err != nil {
		return apperrors.Validation(apperrors.CodeInvalidInput, "payeePattern", err.Error())
	}

	aliases, err := json.Marshal(pattern.PayeeAliases)
	if err != nil {
		return apperrors.Storage(apperrors.CodeQueryFailed, "encode aliases", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payee_patterns
			(id, tenant_id, payee_pattern, payee_aliases, default_account_code)
		VALUES (?, ?, ?, ?, ?)`,
		pattern.ID, pattern.TenantID, pattern.PayeePattern, string(aliases), pattern.DefaultAccountCode)
	if err != nil {
		return apperrors.Storage(apperrors.CodeQueryFailed, "insert payee pattern", err)
	}
	return nil
}

func (s *Store) UpdatePayeePattern(ctx context.Context, pattern *models.PayeePattern) error {
	aliases, err := json.Marshal(pattern.PayeeAliases)
	if err != nil {
		return apperrors.Storage(apperrors.CodeUpdateFailed, "encode aliases", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE payee_patterns
		SET payee_pattern = ?, payee_aliases = ?, default_account_code = ?
		WHERE tenant_id = ? AND id = ?`,
		pattern.PayeePattern, string(aliases), pattern.DefaultAccountCode,
		pattern.TenantID, pattern.ID)
	if err != nil {
		return apperrors.Storage(apperrors.CodeUpdateFailed, "update payee pattern", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperrors.NotFound(apperrors.CodePatternNotFound, "payee pattern", pattern.ID)
	}
	return nil
}

// Record implements store.AuditLog.
func (s *Store) Record(ctx context.Context, tenantID, entityType, entityID, action, summary string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (tenant_id, entity_type, entity_id, action, summary, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tenantID, entityType, entityID, action, summary,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return apperrors.Storage(apperrors.CodeQueryFailed, "insert audit entry", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var txn models.Transaction
	var dateKey string
	var reverses sql.NullString

	err := row.Scan(&txn.ID, &txn.TenantID, &dateKey, &txn.Description,
		&txn.PayeeName, &txn.AmountCents, &txn.IsCredit, &txn.Reference,
		&txn.IsReconciled, &reverses, &txn.IsReversal)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.Storage(apperrors.CodeQueryFailed, "scan transaction", err)
	}

	txn.Date, err = time.ParseInLocation(models.DateKeyFormat, dateKey, time.UTC)
	if err != nil {
		return nil, apperrors.Storage(apperrors.CodeQueryFailed, "parse stored date", err)
	}
	txn.ReversesTransactionID = reverses.String
	return &txn, nil
}

func scanPattern(row rowScanner) (*models.PayeePattern, error) {
	var pattern models.PayeePattern
	var aliases string

	err := row.Scan(&pattern.ID, &pattern.TenantID, &pattern.PayeePattern,
		&aliases, &pattern.DefaultAccountCode)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.Storage(apperrors.CodeQueryFailed, "scan payee pattern", err)
	}

	if err := json.Unmarshal([]byte(aliases), &pattern.PayeeAliases); err != nil {
		return nil, apperrors.Storage(apperrors.CodeQueryFailed, "decode aliases", err)
	}
	return &pattern, nil
}
