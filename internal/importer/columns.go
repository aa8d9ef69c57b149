package importer

import "strings"

// ColumnMapping maps logical import fields to zero-based column indexes.
// An index of -1 means the field is absent. Either Amount or the
// Credit/Debit pair must be present.
type ColumnMapping struct {
	Date        int
	Description int
	Amount      int
	Credit      int
	Debit       int
	Reference   int
	Payee       int
}

// NewColumnMapping returns a mapping with every field absent.
func NewColumnMapping() ColumnMapping {
	return ColumnMapping{
		Date:        -1,
		Description: -1,
		Amount:      -1,
		Credit:      -1,
		Debit:       -1,
		Reference:   -1,
		Payee:       -1,
	}
}

// HasAmount reports whether the mapping can produce an amount, either from
// a combined signed column or a credit/debit pair.
func (m ColumnMapping) HasAmount() bool {
	return m.Amount >= 0 || m.Credit >= 0 || m.Debit >= 0
}

// columnPatterns lists, per field, the header substrings recognized during
// auto-detection. Matching is case-insensitive; the first matching header
// wins per field and a header claimed by one field is not reused.
var columnPatterns = []struct {
	field    string
	patterns []string
}{
	{"credit", []string{"credit", "deposit", "money in", "paid in"}},
	{"debit", []string{"debit", "withdrawal", "money out", "paid out"}},
	{"date", []string{"date", "day"}},
	{"payee", []string{"payee", "merchant", "paid to", "supplier", "beneficiary"}},
	{"reference", []string{"reference", "ref no", "ref", "cheque"}},
	{"description", []string{"description", "narration", "narrative", "details", "memo", "transaction"}},
	{"amount", []string{"amount", "value", "total"}},
}

// DetectColumns matches header names against the fixed pattern lists when
// no explicit mapping is supplied. Credit/debit are probed before amount so
// a "Credit Amount" header is not mistaken for a combined amount column.
func DetectColumns(header []string) ColumnMapping {
	mapping := NewColumnMapping()
	claimed := make([]bool, len(header))

	lowered := make([]string, len(header))
	for i, h := range header {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}

	for _, fp := range columnPatterns {
		for i, h := range lowered {
			if claimed[i] || !containsAny(h, fp.patterns) {
				continue
			}
			claimed[i] = true
			switch fp.field {
			case "date":
				mapping.Date = i
			case "description":
				mapping.Description = i
			case "amount":
				mapping.Amount = i
			case "credit":
				mapping.Credit = i
			case "debit":
				mapping.Debit = i
			case "reference":
				mapping.Reference = i
			case "payee":
				mapping.Payee = i
			}
			break
		}
	}

	return mapping
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
