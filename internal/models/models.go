// Package models defines the data model shared by the matching and
// reconciliation packages: ledger transactions, payee patterns, and the
// request-scoped result types produced by the matching operations.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateKeyFormat is the canonical calendar-day format used for duplicate
// hashing and date comparisons. Time-of-day is irrelevant to matching.
const DateKeyFormat = "2006-01-02"

// Transaction represents a ledger transaction. The matching core reads
// transactions and mutates only the reversal back-reference and the
// reconciliation flag.
type Transaction struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	// PayeeName is empty when the source row carried no payee.
	PayeeName   string `json:"payeeName,omitempty"`
	AmountCents int64  `json:"amountCents"`
	IsCredit    bool   `json:"isCredit"`
	Reference   string `json:"reference,omitempty"`

	IsReconciled bool `json:"isReconciled"`

	// ReversesTransactionID is set at most once; IsReversal is true iff it
	// is set.
	ReversesTransactionID string `json:"reversesTransactionId,omitempty"`
	IsReversal            bool   `json:"isReversal"`
}

// SignedAmountCents returns the amount with direction applied: positive for
// credits, negative for debits.
func (t *Transaction) SignedAmountCents() int64 {
	if t.IsCredit {
		return t.AmountCents
	}
	return -t.AmountCents
}

// DateKey returns the calendar-day key for the transaction date.
func (t *Transaction) DateKey() string {
	return t.Date.Format(DateKeyFormat)
}

// Validate performs basic validation on the Transaction.
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("transaction id cannot be empty")
	}
	if strings.TrimSpace(t.TenantID) == "" {
		return fmt.Errorf("transaction tenant id cannot be empty")
	}
	if t.AmountCents < 0 {
		return fmt.Errorf("transaction amount cannot be negative: %d", t.AmountCents)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}
	if t.IsReversal != (t.ReversesTransactionID != "") {
		return fmt.Errorf("reversal flag and back-reference must be set together")
	}
	return nil
}

// String returns a string representation of the Transaction.
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{ID: %s, Tenant: %s, Date: %s, Amount: %d, Credit: %t}",
		t.ID, t.TenantID, t.DateKey(), t.AmountCents, t.IsCredit)
}

// PayeePattern groups a canonical payee name with its aliases for one tenant.
// No alias may collide, case/format-insensitively, with the canonical name or
// any alias of any other pattern in the same tenant.
type PayeePattern struct {
	ID           string   `json:"id"`
	TenantID     string   `json:"tenantId"`
	PayeePattern string   `json:"payeePattern"` // canonical name
	PayeeAliases []string `json:"payeeAliases"`
	// DefaultAccountCode is opaque to the matching core. Patterns created
	// lazily by alias resolution carry PlaceholderAccountCode.
	DefaultAccountCode string `json:"defaultAccountCode"`
}

// PlaceholderAccountCode marks patterns created by alias resolution before a
// bookkeeper assigns a real account mapping.
const PlaceholderAccountCode = "UNMAPPED"

// Validate performs basic validation on the PayeePattern.
func (p *PayeePattern) Validate() error {
	if strings.TrimSpace(p.TenantID) == "" {
		return fmt.Errorf("payee pattern tenant id cannot be empty")
	}
	if strings.TrimSpace(p.PayeePattern) == "" {
		return fmt.Errorf("canonical payee name cannot be empty")
	}
	return nil
}

// MatchMethod identifies which similarity algorithm produced a match.
type MatchMethod string

const (
	MethodAbbreviation MatchMethod = "abbreviation"
	MethodSuffix       MatchMethod = "suffix"
	MethodPhonetic     MatchMethod = "phonetic"
	MethodJaroWinkler  MatchMethod = "jaro-winkler"
	MethodLevenshtein  MatchMethod = "levenshtein"
	MethodFuzzy        MatchMethod = "fuzzy"
)

// VariationMatch is a scored pairing of two payee names. Never persisted.
type VariationMatch struct {
	PayeeA      string      `json:"payeeA"`
	PayeeB      string      `json:"payeeB"`
	Similarity  float64     `json:"similarity"` // 0..1
	MatchType   MatchMethod `json:"matchType"`
	Confidence  int         `json:"confidence"` // 0..100
	NormalizedA string      `json:"normalizedA"`
	NormalizedB string      `json:"normalizedB"`
}

// PayeeGroup is a cluster of payee name variants. A payee belongs to at most
// one group per clustering run.
type PayeeGroup struct {
	CanonicalName string        `json:"canonicalName"`
	Variants      []string      `json:"variants"`
	Confidence    int           `json:"confidence"` // 0..100, averaged
	MatchTypes    []MatchMethod `json:"matchTypes"`
}

// AliasSuggestion proposes linking a variant to a canonical payee name.
type AliasSuggestion struct {
	CanonicalName string `json:"canonicalName"`
	Alias         string `json:"alias"`
	Confidence    int    `json:"confidence"`
	Reason        string `json:"reason"`
}

// Severity classifies a row issue found during batch validation. Only
// SeverityError blocks the affected row's import.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// RowIssue describes a single problem found in an import row.
type RowIssue struct {
	RowNumber int      `json:"rowNumber"` // 1-indexed
	Field     string   `json:"field"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
}

// RowValidationResult holds the parsed values and issues for one import row.
type RowValidationResult struct {
	RowNumber   int        `json:"rowNumber"`
	Valid       bool       `json:"valid"`
	CanImport   bool       `json:"canImport"`
	Date        time.Time  `json:"date"`
	Description string     `json:"description"`
	AmountCents int64      `json:"amountCents"` // signed
	Reference   string     `json:"reference,omitempty"`
	PayeeName   string     `json:"payeeName,omitempty"`
	Issues      []RowIssue `json:"issues,omitempty"`
}

// HasErrors reports whether the row carries any ERROR-severity issue.
func (r *RowValidationResult) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// BatchValidationResult aggregates per-row validation for one import batch.
type BatchValidationResult struct {
	Rows             []*RowValidationResult `json:"rows"`
	Issues           []RowIssue             `json:"issues"`
	IsValid          bool                   `json:"isValid"`          // zero ERROR issues anywhere
	CanPartialImport bool                   `json:"canPartialImport"` // at least one importable row
	TotalRows        int                    `json:"totalRows"`
	ImportableRows   int                    `json:"importableRows"`
	ErrorCount       int                    `json:"errorCount"`
	WarningCount     int                    `json:"warningCount"`
}

// ReversalMatch is the best candidate original for a reversal-looking entry.
type ReversalMatch struct {
	OriginalTransactionID string `json:"originalTransactionId"`
	Confidence            int    `json:"confidence"` // 0..100
	MatchReason           string `json:"matchReason"`
}

// StatementLine is one line of an imported bank statement. Amounts are
// signed: negative for money leaving the account.
type StatementLine struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amountCents"` // signed
	Reference   string    `json:"reference,omitempty"`
}

// DateKey returns the calendar-day key for the statement line date.
func (l *StatementLine) DateKey() string {
	return l.Date.Format(DateKeyFormat)
}

// MatchStatus classifies a statement-line-to-ledger pairing.
type MatchStatus string

const (
	StatusMatched        MatchStatus = "MATCHED"
	StatusAmountMismatch MatchStatus = "AMOUNT_MISMATCH"
	StatusDateMismatch   MatchStatus = "DATE_MISMATCH"
	StatusInBankOnly     MatchStatus = "IN_BANK_ONLY"
	StatusInLedgerOnly   MatchStatus = "IN_LEDGER_ONLY"
	StatusFeeAdjusted    MatchStatus = "FEE_ADJUSTED_MATCH"
)

// StatementMatch pairs a bank statement line with a ledger transaction, or
// records that one side has no counterpart.
type StatementMatch struct {
	Line              *StatementLine `json:"line,omitempty"`
	Transaction       *Transaction   `json:"transaction,omitempty"`
	Status            MatchStatus    `json:"status"`
	Confidence        int            `json:"confidence,omitempty"`
	DiscrepancyReason string         `json:"discrepancyReason,omitempty"`
}

// ReconciliationReport summarizes a statement-to-ledger reconciliation run.
type ReconciliationReport struct {
	Matches []*StatementMatch `json:"matches"`

	OpeningBalance    decimal.Decimal `json:"openingBalance"`
	ClosingBalance    decimal.Decimal `json:"closingBalance"`
	CalculatedClosing decimal.Decimal `json:"calculatedClosing"`
	IsBalanced        bool            `json:"isBalanced"`

	MatchedCount      int `json:"matchedCount"`
	FeeAdjustedCount  int `json:"feeAdjustedCount"`
	MismatchCount     int `json:"mismatchCount"`
	InBankOnlyCount   int `json:"inBankOnlyCount"`
	InLedgerOnlyCount int `json:"inLedgerOnlyCount"`
}

// CentsToDecimal converts minor currency units to a major-unit decimal.
func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}
