package validation

import (
	"fmt"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/api/request"
)

// ValidateSymbols validates a list of ticker symbols.
func ValidateSymbols(symbols request.SymbolsRequest) error {
	return validateList("symbols", symbols, ValidateSymbol)
}

// ValidateCurrencies validates a list of currency codes.
func ValidateCurrencies(codes request.CurrenciesRequest) error {
	return validateList("currencies", codes, ValidateCurrency)
}

func validateList(field string, values []string, check func(string) error) error {
	errors := make(map[string]string)

	switch {
	case len(values) == 0:
		errors[field] = ErrEmptySlice.Error()
	case len(values) > MaxSymbols:
		errors[field] = fmt.Sprintf("at most %d entries allowed", MaxSymbols)
	default:
		for i, v := range values {
			if err := check(v); err != nil {
				errors[fmt.Sprintf("%s[%d]", field, i)] = err.Error()
			}
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
