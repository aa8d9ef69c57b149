package payee

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "woolworths", "WOOLWORTHS"},
		{"separators", "PICK-N-PAY", "PICK N PAY"},
		{"mixed separators", "ABC/Company_Ltd.", "ABC COMPANY LTD"},
		{"commas", "SMITH, JONES", "SMITH JONES"},
		{"repeated whitespace", "  ABC    COMPANY  ", "ABC COMPANY"},
		{"empty", "", ""},
		{"only separators", "-_/.,", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"woolworths-sandton",
		"ABC/Company_Ltd.",
		"  first   national   bank  ",
		"",
		"R/D CHEQUE",
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestPhoneticKeyDelegation(t *testing.T) {
	if PhoneticKey("smith-ltd") != PhoneticKey("SMYTH LTD") {
		t.Error("expected phonetic keys to match after normalization")
	}
}

func TestIsAbbreviationMatchDelegation(t *testing.T) {
	if !IsAbbreviationMatch("fnb", "First-National-Bank") {
		t.Error("expected abbreviation match after normalization")
	}
}
