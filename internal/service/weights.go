package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
)

// ValueProportions converts holdings into portfolio weights: each holding's value in US
// dollars divided by the total. Holdings of the same symbol are merged in first-seen order.
// A holding whose currency has no rate counts as zero. When the total is zero every
// proportion is zero.
func ValueProportions(holdings []model.Holding, rates map[string]*float64) []model.Weight {
	order := make([]string, 0, len(holdings))
	values := make(map[string]decimal.Decimal, len(holdings))
	total := decimal.Zero

	for _, h := range holdings {
		symbol := strings.ToUpper(strings.TrimSpace(h.Symbol))
		if _, ok := values[symbol]; !ok {
			order = append(order, symbol)
			values[symbol] = decimal.Zero
		}
		rate := rates[strings.ToUpper(strings.TrimSpace(h.Currency))]
		if rate == nil {
			continue
		}
		usd := decimal.NewFromFloat(h.Value).Mul(decimal.NewFromFloat(*rate))
		values[symbol] = values[symbol].Add(usd)
		total = total.Add(usd)
	}

	weights := make([]model.Weight, len(order))
	for i, symbol := range order {
		weights[i] = model.Weight{Symbol: symbol}
		if total.IsZero() {
			continue
		}
		proportion, _ := values[symbol].Div(total).Float64()
		weights[i].ValueProportion = proportion
	}
	return weights
}

// validateHoldings rejects an empty portfolio, blank symbols or currencies and negative values.
func validateHoldings(holdings []model.Holding) error {
	if len(holdings) == 0 {
		return apperrors.ErrEmptyPortfolio
	}
	for i, h := range holdings {
		if strings.TrimSpace(h.Symbol) == "" {
			return fmt.Errorf("%w: holding %d has no symbol", apperrors.ErrInvalidSymbol, i)
		}
		if len(strings.TrimSpace(h.Currency)) != 3 {
			return fmt.Errorf("%w: %q", apperrors.ErrInvalidCurrency, h.Currency)
		}
		if h.Value < 0 {
			return fmt.Errorf("%w: %s", apperrors.ErrNegativeAmount, h.Symbol)
		}
	}
	return nil
}

func holdingCurrencies(holdings []model.Holding) []string {
	currencies := make([]string, len(holdings))
	for i, h := range holdings {
		currencies[i] = h.Currency
	}
	return normaliseCodes(currencies)
}

func holdingSymbols(holdings []model.Holding) []string {
	symbols := make([]string, len(holdings))
	for i, h := range holdings {
		symbols[i] = h.Symbol
	}
	return normaliseCodes(symbols)
}
