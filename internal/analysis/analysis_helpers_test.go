package analysis_test

import (
	"math"
	"testing"
	"time"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
)

const tolerance = 1e-9

// monthlySeries builds one observation per value for symbol, starting January 2020.
// NaN values are left out so the symbol is missing on that date.
func monthlySeries(symbol string, values ...float64) []model.ReturnObservation {
	start := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.ReturnObservation, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		out = append(out, model.ReturnObservation{
			TradeDate:     start.AddDate(0, i, 0),
			Symbol:        symbol,
			ChangePercent: v,
		})
	}
	return out
}

func combine(series ...[]model.ReturnObservation) []model.ReturnObservation {
	var out []model.ReturnObservation
	for _, s := range series {
		out = append(out, s...)
	}
	return out
}

func day(i int) time.Time {
	return time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func assertClose(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %.12f, want %.12f (tolerance %g)", name, got, want, tol)
	}
}
