package validation

import (
	"fmt"
	"math"
	"strings"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/api/request"
)

func ValidateHoldings(req []request.HoldingRequest) error {
	errors := make(map[string]string)

	if len(req) == 0 {
		errors["holdings"] = "at least one holding is required"
	} else if len(req) > MaxSymbols {
		errors["holdings"] = fmt.Sprintf("at most %d holdings allowed", MaxSymbols)
	}

	for i, h := range req {
		prefix := fmt.Sprintf("holdings[%d]", i)

		if err := ValidateSymbol(h.Symbol); err != nil {
			errors[prefix+".symbol"] = "symbol is required and must be a valid ticker"
		}

		if err := ValidateCurrency(h.Currency); err != nil {
			errors[prefix+".currency"] = "currency must be a three letter code"
		}

		switch {
		case h.Value == nil:
			errors[prefix+".value"] = "value is required"
		case math.IsNaN(*h.Value) || math.IsInf(*h.Value, 0):
			errors[prefix+".value"] = "value must be a finite number"
		case *h.Value < 0:
			errors[prefix+".value"] = "value cannot be negative"
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}

func ValidateDrawdown(req request.DrawdownRequest) error {
	errors := make(map[string]string)

	if err := ValidateSymbols(req.Symbols); err != nil {
		for field, msg := range err.(*Error).Fields {
			errors[field] = msg
		}
	}

	if len(req.Weights) > 0 {
		listed := make(map[string]bool, len(req.Symbols))
		for _, s := range req.Symbols {
			listed[strings.ToUpper(strings.TrimSpace(s))] = true
		}
		for symbol, w := range req.Weights {
			key := fmt.Sprintf("weights.%s", symbol)
			if !listed[strings.ToUpper(strings.TrimSpace(symbol))] {
				errors[key] = "weight given for a symbol that is not listed"
			} else if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
				errors[key] = "weight must be a non-negative number"
			}
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
