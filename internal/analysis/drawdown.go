package analysis

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
)

// ErrEmptySeries is returned when a drawdown is requested for a series without values.
var ErrEmptySeries = errors.New("series has no values")

// DrawdownStatistics derives the drawdown series and the maximum drawdown episode from a
// cumulative return index. Dates must be ascending and aligned with cumulative.
func DrawdownStatistics(dates []time.Time, cumulative []float64) (model.DrawdownEpisode, error) {
	if len(dates) != len(cumulative) {
		return model.DrawdownEpisode{}, fmt.Errorf("dates and values differ in length: %d != %d", len(dates), len(cumulative))
	}
	if len(cumulative) == 0 {
		return model.DrawdownEpisode{}, ErrEmptySeries
	}

	runningMax := make([]float64, len(cumulative))
	series := make([]model.DrawdownPoint, len(cumulative))
	bottom := 0
	for i, c := range cumulative {
		runningMax[i] = c
		if i > 0 && runningMax[i-1] > c {
			runningMax[i] = runningMax[i-1]
		}
		dd := (c - runningMax[i]) / runningMax[i]
		series[i] = model.DrawdownPoint{TradeDate: dates[i], Value: dd}
		if dd < series[bottom].Value {
			bottom = i
		}
	}

	// The peak is the first date the running maximum reached its value at the bottom.
	peakValue := runningMax[bottom]
	start := bottom
	for start > 0 && runningMax[start-1] == peakValue {
		start--
	}

	var end *time.Time
	for i := bottom; i < len(cumulative); i++ {
		if cumulative[i] >= peakValue {
			d := dates[i]
			end = &d
			break
		}
	}

	return model.DrawdownEpisode{
		Drawdown: series,
		MaxDrawdown: model.MaxDrawdown{
			Percent:    series[bottom].Value * 100,
			StartDate:  dates[start],
			BottomDate: dates[bottom],
			EndDate:    end,
		},
	}, nil
}

// PortfolioDrawdown combines all symbols into one weighted return per date and computes the
// drawdown of its cumulative growth. Missing cells and unweighted symbols contribute nothing.
func PortfolioDrawdown(observations []model.ReturnObservation, weights map[string]float64) (model.DrawdownEpisode, error) {
	m, err := Pivot(observations)
	if err != nil {
		return model.DrawdownEpisode{}, err
	}
	return m.PortfolioDrawdown(weights)
}

// SymbolDrawdowns computes the drawdown of each symbol on its own non-missing dates.
func SymbolDrawdowns(observations []model.ReturnObservation) (map[string]model.DrawdownEpisode, error) {
	m, err := Pivot(observations)
	if err != nil {
		return nil, err
	}
	return m.SymbolDrawdowns()
}

// PortfolioDrawdown is PortfolioDrawdown on an already pivoted matrix.
func (m *ReturnMatrix) PortfolioDrawdown(weights map[string]float64) (model.DrawdownEpisode, error) {
	returns := make([]float64, len(m.Dates))
	for i, row := range m.Values {
		for j, s := range m.Symbols {
			w, ok := weights[s]
			if !ok || math.IsNaN(row[j]) {
				continue
			}
			returns[i] += w * row[j]
		}
	}
	return DrawdownStatistics(m.Dates, cumulativeReturns(returns))
}

// SymbolDrawdowns is SymbolDrawdowns on an already pivoted matrix.
func (m *ReturnMatrix) SymbolDrawdowns() (map[string]model.DrawdownEpisode, error) {
	out := make(map[string]model.DrawdownEpisode, len(m.Symbols))
	for j, s := range m.Symbols {
		dates, returns := m.column(j)
		episode, err := DrawdownStatistics(dates, cumulativeReturns(returns))
		if err != nil {
			return nil, fmt.Errorf("drawdown for %s: %w", s, err)
		}
		out[s] = episode
	}
	return out, nil
}

// cumulativeReturns compounds percentage returns into a growth index starting from 1.
func cumulativeReturns(returns []float64) []float64 {
	out := make([]float64, len(returns))
	growth := 1.0
	for i, r := range returns {
		growth *= 1 + r/100
		out[i] = growth
	}
	return out
}
