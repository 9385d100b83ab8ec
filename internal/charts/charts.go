// Package charts renders efficient frontier and drawdown charts as PNG images.
package charts

import (
	"errors"
	"fmt"
	"math"
	"sort"

	gocharts "github.com/vicanso/go-charts/v2"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
)

// ErrNotEnoughPoints is returned when a series has fewer than two points.
var ErrNotEnoughPoints = errors.New("not enough data points")

const (
	width  = 1000
	height = 600
)

// FrontierPNG plots annualised return against annualised risk for the frontier points.
// The x axis lists the standard deviation of each point in sweep order.
func FrontierPNG(points []model.FrontierPoint) ([]byte, error) {
	if len(points) < 2 {
		return nil, ErrNotEnoughPoints
	}
	sorted := append([]model.FrontierPoint(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StdDev < sorted[j].StdDev })

	arithmetic := make([]float64, len(sorted))
	geometric := make([]float64, len(sorted))
	labels := make([]string, len(sorted))
	for i, p := range sorted {
		arithmetic[i] = p.ArithmeticMean
		geometric[i] = p.GeometricMean
		labels[i] = fmt.Sprintf("%.2f", p.StdDev)
	}
	yMin, yMax := bounds(arithmetic, geometric)

	painter, err := gocharts.LineRender([][]float64{arithmetic, geometric},
		gocharts.TitleTextOptionFunc("Efficient frontier", "annualised return % against standard deviation %"),
		gocharts.XAxisOptionFunc(gocharts.XAxisOption{Data: labels, BoundaryGap: gocharts.FalseFlag(), SplitNumber: split(len(labels))}),
		gocharts.YAxisOptionFunc(gocharts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		gocharts.LegendOptionFunc(gocharts.LegendOption{Data: []string{"arithmetic mean", "geometric mean"}, Top: gocharts.PositionTop}),
		gocharts.ThemeOptionFunc(gocharts.ThemeLight),
		gocharts.WidthOptionFunc(width),
		gocharts.HeightOptionFunc(height),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render frontier: %w", err)
	}
	return painter.Bytes()
}

// DrawdownPNG plots drawdown series, in percent, sharing the dates of the longest series.
// Shorter series are padded at the start with zero drawdown.
func DrawdownPNG(title string, episodes map[string]model.DrawdownEpisode) ([]byte, error) {
	names := make([]string, 0, len(episodes))
	longest := 0
	for name, e := range episodes {
		names = append(names, name)
		longest = max(longest, len(e.Drawdown))
	}
	sort.Strings(names)
	if longest < 2 {
		return nil, ErrNotEnoughPoints
	}

	var axis []model.DrawdownPoint
	for _, name := range names {
		if len(episodes[name].Drawdown) == longest {
			axis = episodes[name].Drawdown
			break
		}
	}
	labels := make([]string, longest)
	for i, p := range axis {
		labels[i] = p.TradeDate.Format("2006-01-02")
	}

	values := make([][]float64, len(names))
	for k, name := range names {
		series := episodes[name].Drawdown
		row := make([]float64, longest)
		offset := longest - len(series)
		for i, p := range series {
			row[offset+i] = p.Value * 100
		}
		values[k] = row
	}
	yMin, yMax := bounds(values...)
	yMax = math.Max(yMax, 0)

	painter, err := gocharts.LineRender(values,
		gocharts.TitleTextOptionFunc(title, "drawdown %"),
		gocharts.XAxisOptionFunc(gocharts.XAxisOption{Data: labels, BoundaryGap: gocharts.FalseFlag(), SplitNumber: split(longest)}),
		gocharts.YAxisOptionFunc(gocharts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		gocharts.LegendOptionFunc(gocharts.LegendOption{Data: names, Top: gocharts.PositionTop}),
		gocharts.ThemeOptionFunc(gocharts.ThemeLight),
		gocharts.WidthOptionFunc(width),
		gocharts.HeightOptionFunc(height),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render drawdown: %w", err)
	}
	return painter.Bytes()
}

// bounds returns a padded value range covering every finite value.
func bounds(series ...[]float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 0) {
		return 0, 1
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 1
	}
	return lo - pad, hi + pad
}

func split(n int) int {
	return min(n, 12)
}
