package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// Common validation errors
var (
	ErrEmptySlice      = fmt.Errorf("slice cannot be empty")
	ErrInvalidSymbol   = fmt.Errorf("invalid symbol")
	ErrInvalidCurrency = fmt.Errorf("invalid currency code")
)

// MaxSymbols bounds the number of instruments in a single request.
const MaxSymbols = 50

// Yahoo tickers: letters, digits and the separators used for exchanges, indices and FX pairs.
var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9.\-=^]{1,20}$`)

var currencyPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)

// ValidateSymbol checks if a string looks like a ticker symbol
func ValidateSymbol(symbol string) error {
	if !symbolPattern.MatchString(strings.TrimSpace(symbol)) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return nil
}

// ValidateCurrency checks if a string is a three letter currency code
func ValidateCurrency(code string) error {
	if !currencyPattern.MatchString(strings.TrimSpace(code)) {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return nil
}
