package importer

import (
	"strings"

	"github.com/shopspring/decimal"
)

// currency symbols and grouping characters stripped before parsing.
var amountReplacer = strings.NewReplacer(
	"R", "", "$", "", "€", "", "£", "",
	",", "", " ", "", " ", "", " ", "",
)

// ParseAmountCents parses a money amount in major currency units into
// signed minor units (cents). Currency symbols, thousands separators and
// non-breaking spaces are stripped; a parenthesized or minus-prefixed value
// is negative. A value that cannot be parsed yields zero, matching the
// forgiving behavior expected of spreadsheet imports: zero amounts surface
// as warnings downstream rather than hard failures.
func ParseAmountCents(raw string) int64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = amountReplacer.Replace(s)
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}

	cents := d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if negative {
		cents = -cents
	}
	return cents
}

// MajorUnitsToCents converts a numeric major-unit amount to rounded cents.
func MajorUnitsToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
