package analysis

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
)

// Mean returns the arithmetic mean return per symbol, converted from input to output period.
// Missing dates are excluded per symbol.
func Mean(observations []model.ReturnObservation, input, output Period) (map[string]float64, error) {
	m, err := Pivot(observations)
	if err != nil {
		return nil, err
	}
	return ConvertMeans(m.Means(), input, output)
}

// StdDev returns the sample standard deviation per symbol, converted from input to output period.
func StdDev(observations []model.ReturnObservation, input, output Period) (map[string]float64, error) {
	m, err := Pivot(observations)
	if err != nil {
		return nil, err
	}
	return ConvertStdDevs(m.StdDevs(), input, output)
}

// GeometricMean returns the realised compounded growth rate of a weighted portfolio,
// converted from input to output period. See ReturnMatrix.GeometricMean.
func GeometricMean(observations []model.ReturnObservation, weights map[string]float64, input, output Period) (float64, error) {
	m, err := Pivot(observations)
	if err != nil {
		return 0, err
	}
	return ConvertMean(m.GeometricMean(weights), input, output)
}

// Semivariance returns the below-mean semivariance per symbol.
func Semivariance(observations []model.ReturnObservation) (map[string]float64, error) {
	m, err := Pivot(observations)
	if err != nil {
		return nil, err
	}
	return m.Semivariances(), nil
}

// Covariance returns the symmetrised sample covariance matrix.
func Covariance(observations []model.ReturnObservation) (*SymbolMatrix, error) {
	m, err := Pivot(observations)
	if err != nil {
		return nil, err
	}
	return m.Covariance(), nil
}

// Correlation returns the Pearson correlation matrix.
func Correlation(observations []model.ReturnObservation) (*SymbolMatrix, error) {
	m, err := Pivot(observations)
	if err != nil {
		return nil, err
	}
	return m.Correlation(), nil
}

// Means returns the column means in the matrix's native period.
// A symbol without values maps to NaN.
func (m *ReturnMatrix) Means() map[string]float64 {
	out := make(map[string]float64, len(m.Symbols))
	for j, s := range m.Symbols {
		_, values := m.column(j)
		if len(values) == 0 {
			out[s] = math.NaN()
			continue
		}
		out[s] = stat.Mean(values, nil)
	}
	return out
}

// MeanVector returns the column means ordered like m.Symbols.
func (m *ReturnMatrix) MeanVector() []float64 {
	means := m.Means()
	out := make([]float64, len(m.Symbols))
	for j, s := range m.Symbols {
		out[j] = means[s]
	}
	return out
}

// StdDevs returns the column sample standard deviations (n-1 denominator).
// Fewer than two values yields NaN.
func (m *ReturnMatrix) StdDevs() map[string]float64 {
	out := make(map[string]float64, len(m.Symbols))
	for j, s := range m.Symbols {
		_, values := m.column(j)
		if len(values) < 2 {
			out[s] = math.NaN()
			continue
		}
		out[s] = stat.StdDev(values, nil)
	}
	return out
}

// Semivariances computes, per symbol, the mean squared deviation of the below-mean
// observations from the symbol mean, normalised by the full sample size n. A series with
// nothing below its mean has semivariance 0.
func (m *ReturnMatrix) Semivariances() map[string]float64 {
	out := make(map[string]float64, len(m.Symbols))
	for j, s := range m.Symbols {
		_, values := m.column(j)
		if len(values) == 0 {
			out[s] = math.NaN()
			continue
		}
		mean := stat.Mean(values, nil)
		var sum float64
		below := 0
		for _, v := range values {
			if v < mean {
				sum += (v - mean) * (v - mean)
				below++
			}
		}
		if below == 0 {
			out[s] = 0
			continue
		}
		out[s] = sum / float64(below) / float64(len(values))
	}
	return out
}

// GeometricMean is the realised per-period growth rate of a portfolio holding weights
// constant: every period's growth factor is Σ wᵢ(1 + rᵢ/100), the factors are multiplied
// over all T dates and the T-th root minus one is returned as a percentage.
//
// Missing cells and symbols without a weight contribute nothing to a period's factor.
func (m *ReturnMatrix) GeometricMean(weights map[string]float64) float64 {
	periods := len(m.Dates)
	if periods == 0 {
		return math.NaN()
	}
	growth := 1.0
	for _, row := range m.Values {
		var factor float64
		for j, s := range m.Symbols {
			w, ok := weights[s]
			if !ok || math.IsNaN(row[j]) {
				continue
			}
			factor += w * (1 + row[j]/100)
		}
		growth *= factor
	}
	return (math.Pow(growth, 1/float64(periods)) - 1) * 100
}

// SymbolGeometricMean is the per-period geometric mean of one symbol over its own
// non-missing dates, as a percentage. Dates where the symbol has no value are skipped rather
// than counted as a total loss.
func (m *ReturnMatrix) SymbolGeometricMean(symbol string) (float64, error) {
	_, values, err := m.Column(symbol)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return math.NaN(), nil
	}
	growth := 1.0
	for _, v := range values {
		growth *= 1 + v/100
	}
	return (math.Pow(growth, 1/float64(len(values))) - 1) * 100, nil
}

// Covariance returns the pairwise-complete sample covariance matrix, averaged with its
// transpose so the result is exactly symmetric.
func (m *ReturnMatrix) Covariance() *SymbolMatrix {
	n := len(m.Symbols)
	if n == 0 {
		return &SymbolMatrix{}
	}
	raw := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x, y := m.pairwise(i, j)
			if len(x) < 2 {
				raw.Set(i, j, math.NaN())
				continue
			}
			raw.Set(i, j, stat.Covariance(x, y, nil))
		}
	}

	var avg mat.Dense
	avg.Add(raw, raw.T())
	avg.Scale(0.5, &avg)

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, avg.At(i, j))
		}
	}
	return &SymbolMatrix{Symbols: append([]string(nil), m.Symbols...), Data: sym}
}

// Correlation returns the pairwise-complete Pearson correlation matrix. The diagonal is
// exactly 1 for symbols with non-zero variance and NaN otherwise.
func (m *ReturnMatrix) Correlation() *SymbolMatrix {
	n := len(m.Symbols)
	if n == 0 {
		return &SymbolMatrix{}
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			x, y := m.pairwise(i, j)
			sym.SetSym(i, j, correlation(x, y, i == j))
		}
	}
	return &SymbolMatrix{Symbols: append([]string(nil), m.Symbols...), Data: sym}
}

func correlation(x, y []float64, diagonal bool) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	sx := stat.StdDev(x, nil)
	sy := stat.StdDev(y, nil)
	if sx == 0 || sy == 0 {
		return math.NaN()
	}
	if diagonal {
		return 1
	}
	return stat.Correlation(x, y, nil)
}
