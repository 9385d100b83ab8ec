package model

import (
	"encoding/json"
	"math"
	"time"
)

// ReturnObservation is a single periodic return for one instrument on one trade date.
// ChangePercent is percentage scaled: 5.7 means 5.7%.
type ReturnObservation struct {
	TradeDate     time.Time `json:"trade_date"`
	Symbol        string    `json:"symbol"`
	ChangePercent float64   `json:"change_percent"`
}

// Weight is the proportion of a portfolio allocated to one symbol.
type Weight struct {
	Symbol          string  `json:"symbol"`
	ValueProportion float64 `json:"value_proportion"`
}

// WeightMap converts a weight list into a symbol keyed map.
// Later entries for the same symbol overwrite earlier ones.
func WeightMap(weights []Weight) map[string]float64 {
	m := make(map[string]float64, len(weights))
	for _, w := range weights {
		m[w.Symbol] = w.ValueProportion
	}
	return m
}

// FrontierPoint is one optimal portfolio on the efficient frontier.
// StdDev, ArithmeticMean and GeometricMean are annualised percentages.
type FrontierPoint struct {
	Gamma          float64  `json:"gamma"`
	StdDev         float64  `json:"std_dev"`
	ArithmeticMean float64  `json:"arithmetic_mean"`
	GeometricMean  float64  `json:"geometric_mean"`
	Weights        []Weight `json:"weights"`
}

// DrawdownPoint is the drawdown ratio (always <= 0) on a single date.
type DrawdownPoint struct {
	TradeDate time.Time `json:"trade_date"`
	Value     float64   `json:"value"`
}

// MaxDrawdown describes the deepest peak-to-trough episode of a cumulative return path.
//
// Percent is negative (or zero) and percentage scaled. EndDate is nil when the path never
// climbs back to the peak that preceded the bottom.
type MaxDrawdown struct {
	Percent    float64    `json:"percent"`
	StartDate  time.Time  `json:"start_date"`
	BottomDate time.Time  `json:"bottom_date"`
	EndDate    *time.Time `json:"end_date"`
}

// DrawdownEpisode holds the full drawdown series plus its maximum drawdown.
type DrawdownEpisode struct {
	Drawdown    []DrawdownPoint `json:"drawdown"`
	MaxDrawdown MaxDrawdown     `json:"max_drawdown"`
}

// Float is a float64 that encodes NaN and infinities as JSON null. Statistics over too few
// observations are NaN and must still serialise.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// FloatMap converts a symbol keyed map into its JSON safe form.
func FloatMap(m map[string]float64) map[string]Float {
	out := make(map[string]Float, len(m))
	for k, v := range m {
		out[k] = Float(v)
	}
	return out
}

// FloatMatrix converts nested symbol keyed maps into their JSON safe form.
func FloatMatrix(m map[string]map[string]float64) map[string]map[string]Float {
	out := make(map[string]map[string]Float, len(m))
	for k, row := range m {
		out[k] = FloatMap(row)
	}
	return out
}
