package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
)

// DefaultRiskFreeRate is the annual risk-free rate, in percent, used for Sharpe ratios.
const DefaultRiskFreeRate = 4.29

// ErrZeroVariance is returned by SharpeRatio when the portfolio standard deviation is zero.
var ErrZeroVariance = errors.New("portfolio standard deviation is zero")

// PortfolioReturn returns the weighted sum of per-symbol means.
// Weights are joined on symbol; symbols without a mean contribute nothing.
func PortfolioReturn(weights []model.Weight, means map[string]float64) float64 {
	var total float64
	for _, w := range weights {
		mean, ok := means[w.Symbol]
		if !ok {
			continue
		}
		total += w.ValueProportion * mean
	}
	return total
}

// PortfolioStdDev returns sqrt(Σᵢ Σⱼ wᵢ wⱼ ρᵢⱼ σᵢ σⱼ), summed explicitly over every pair of
// weights (including i == j) and looked up by symbol.
func PortfolioStdDev(weights []model.Weight, stdDevs map[string]float64, corr *SymbolMatrix) (float64, error) {
	var variance float64
	for _, wi := range weights {
		si, ok := stdDevs[wi.Symbol]
		if !ok {
			return 0, fmt.Errorf("%w: no standard deviation for %s", ErrUnknownSymbol, wi.Symbol)
		}
		for _, wj := range weights {
			sj, ok := stdDevs[wj.Symbol]
			if !ok {
				return 0, fmt.Errorf("%w: no standard deviation for %s", ErrUnknownSymbol, wj.Symbol)
			}
			rho, err := corr.At(wi.Symbol, wj.Symbol)
			if err != nil {
				return 0, err
			}
			variance += wi.ValueProportion * wj.ValueProportion * rho * si * sj
		}
	}
	return math.Sqrt(variance), nil
}

// SharpeRatio returns (portfolioReturn - riskFreeRate) / portfolioStdDev.
func SharpeRatio(portfolioReturn, portfolioStdDev, riskFreeRate float64) (float64, error) {
	if portfolioStdDev == 0 {
		return 0, ErrZeroVariance
	}
	return (portfolioReturn - riskFreeRate) / portfolioStdDev, nil
}
