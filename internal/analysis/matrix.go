// Package analysis turns per-instrument return series into risk and return statistics:
// period conversion, moments, portfolio aggregates and drawdowns.
//
// Every function is pure. Inputs are percentage returns (5.7 means 5.7%) and outputs use the
// same scale unless stated otherwise.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
)

var (
	// ErrDuplicateObservation indicates two observations share a symbol and trade date.
	ErrDuplicateObservation = errors.New("duplicate observation for symbol and trade date")

	// ErrUnknownSymbol indicates a lookup for a symbol that is not part of a matrix.
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// ReturnMatrix is the pivoted view of a return series table: one row per trade date
// (ascending) and one column per symbol (sorted). Missing values are NaN, never zero.
type ReturnMatrix struct {
	Dates   []time.Time
	Symbols []string
	Values  [][]float64
}

// Pivot builds a ReturnMatrix from raw observations. The order of observations is irrelevant.
func Pivot(observations []model.ReturnObservation) (*ReturnMatrix, error) {
	dateIndex := make(map[int64]time.Time)
	symbolSet := make(map[string]struct{})
	for _, o := range observations {
		key := o.TradeDate.UnixNano()
		if _, ok := dateIndex[key]; !ok {
			dateIndex[key] = o.TradeDate
		}
		symbolSet[o.Symbol] = struct{}{}
	}

	keys := make([]int64, 0, len(dateIndex))
	for k := range dateIndex {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	symbols := make([]string, 0, len(symbolSet))
	for s := range symbolSet {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	rowOf := make(map[int64]int, len(keys))
	dates := make([]time.Time, len(keys))
	for i, k := range keys {
		rowOf[k] = i
		dates[i] = dateIndex[k]
	}
	colOf := make(map[string]int, len(symbols))
	for j, s := range symbols {
		colOf[s] = j
	}

	values := make([][]float64, len(dates))
	for i := range values {
		row := make([]float64, len(symbols))
		for j := range row {
			row[j] = math.NaN()
		}
		values[i] = row
	}

	seen := make(map[int64]map[string]struct{}, len(dates))
	for _, o := range observations {
		key := o.TradeDate.UnixNano()
		if seen[key] == nil {
			seen[key] = make(map[string]struct{})
		}
		if _, dup := seen[key][o.Symbol]; dup {
			return nil, fmt.Errorf("%w: %s on %s", ErrDuplicateObservation, o.Symbol, o.TradeDate.Format("2006-01-02"))
		}
		seen[key][o.Symbol] = struct{}{}
		values[rowOf[key]][colOf[o.Symbol]] = o.ChangePercent
	}

	return &ReturnMatrix{Dates: dates, Symbols: symbols, Values: values}, nil
}

// Column returns the non-missing values of a symbol together with their dates.
func (m *ReturnMatrix) Column(symbol string) ([]time.Time, []float64, error) {
	j, ok := m.columnIndex(symbol)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	dates, values := m.column(j)
	return dates, values, nil
}

func (m *ReturnMatrix) columnIndex(symbol string) (int, bool) {
	for j, s := range m.Symbols {
		if s == symbol {
			return j, true
		}
	}
	return 0, false
}

func (m *ReturnMatrix) column(j int) ([]time.Time, []float64) {
	dates := make([]time.Time, 0, len(m.Dates))
	values := make([]float64, 0, len(m.Dates))
	for i, row := range m.Values {
		if v := row[j]; !math.IsNaN(v) {
			dates = append(dates, m.Dates[i])
			values = append(values, v)
		}
	}
	return dates, values
}

// pairwise returns the values of columns a and b on dates where both are present.
func (m *ReturnMatrix) pairwise(a, b int) ([]float64, []float64) {
	x := make([]float64, 0, len(m.Values))
	y := make([]float64, 0, len(m.Values))
	for _, row := range m.Values {
		if math.IsNaN(row[a]) || math.IsNaN(row[b]) {
			continue
		}
		x = append(x, row[a])
		y = append(y, row[b])
	}
	return x, y
}

// SymbolMatrix is a symmetric symbol x symbol matrix such as a covariance or correlation matrix.
type SymbolMatrix struct {
	Symbols []string
	Data    *mat.SymDense
}

// Index returns the row/column of a symbol.
func (m *SymbolMatrix) Index(symbol string) (int, bool) {
	for i, s := range m.Symbols {
		if s == symbol {
			return i, true
		}
	}
	return 0, false
}

// At returns the entry for a pair of symbols.
func (m *SymbolMatrix) At(a, b string) (float64, error) {
	i, ok := m.Index(a)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, a)
	}
	j, ok := m.Index(b)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, b)
	}
	return m.Data.At(i, j), nil
}

// ToMap converts the matrix into nested symbol keyed maps, the shape callers serialise.
func (m *SymbolMatrix) ToMap() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(m.Symbols))
	for i, a := range m.Symbols {
		row := make(map[string]float64, len(m.Symbols))
		for j, b := range m.Symbols {
			row[b] = m.Data.At(i, j)
		}
		out[a] = row
	}
	return out
}
