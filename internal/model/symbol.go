package model

import (
	"strings"

	"main/pkg/exception"
)

// Symbol is a case-normalized base/quote pair, usable as a map key.
type Symbol struct {
	Base  string
	Quote string
}

// NewSymbol normalizes both assets to upper case.
func NewSymbol(base, quote string) Symbol {
	return Symbol{
		Base:  strings.ToUpper(strings.TrimSpace(base)),
		Quote: strings.ToUpper(strings.TrimSpace(quote)),
	}
}

// ParseSymbol accepts "BASE/QUOTE" or "BASE-QUOTE".
func ParseSymbol(s string) (Symbol, error) {
	sep := strings.IndexAny(s, "/-")
	if sep <= 0 || sep == len(s)-1 {
		return Symbol{}, exception.ErrUnknownSymbol
	}
	return NewSymbol(s[:sep], s[sep+1:]), nil
}

// String renders "BASE/QUOTE".
func (s Symbol) String() string {
	return s.Base + "/" + s.Quote
}

// Concat renders "BASEQUOTE", the form most exchange streams expect.
func (s Symbol) Concat() string {
	return s.Base + s.Quote
}

// IsZero reports whether the symbol is unset.
func (s Symbol) IsZero() bool {
	return s.Base == "" && s.Quote == ""
}
