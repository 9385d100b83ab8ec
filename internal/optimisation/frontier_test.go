package optimisation_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/analysis"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/optimisation"
)

// twoAssetObservations returns two uncorrelated monthly series with means 0.5 and 1 and
// variances 4/3 and 16/3.
func twoAssetObservations() []model.ReturnObservation {
	a := []float64{1.5, -0.5, 1.5, -0.5}
	b := []float64{3, 3, -1, -1}
	start := time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)
	var obs []model.ReturnObservation
	for i := range a {
		d := start.AddDate(0, i, 0)
		obs = append(obs,
			model.ReturnObservation{TradeDate: d, Symbol: "AAA", ChangePercent: a[i]},
			model.ReturnObservation{TradeDate: d, Symbol: "BBB", ChangePercent: b[i]},
		)
	}
	return obs
}

func TestGammaGrid(t *testing.T) {
	t.Run("log spaced from max down to min inclusive", func(t *testing.T) {
		grid := optimisation.GammaGrid(200, 1e3, 1e-3)
		if len(grid) != 200 {
			t.Fatalf("Expected 200 values, got %d", len(grid))
		}
		if grid[0] != 1e3 || grid[199] != 1e-3 {
			t.Errorf("Expected bounds 1000 and 0.001, got %v and %v", grid[0], grid[199])
		}
		for i := 1; i < len(grid); i++ {
			if grid[i] >= grid[i-1] {
				t.Fatalf("Grid not descending at %d: %v >= %v", i, grid[i], grid[i-1])
			}
		}
		want := math.Pow(10, 3-6.0/199)
		if math.Abs(grid[1]-want)/want > 1e-12 {
			t.Errorf("grid[1] = %v, want %v", grid[1], want)
		}
	})

	t.Run("degenerate sizes", func(t *testing.T) {
		if g := optimisation.GammaGrid(0, 10, 1); g != nil {
			t.Errorf("Expected nil grid, got %v", g)
		}
		if g := optimisation.GammaGrid(1, 10, 1); len(g) != 1 || g[0] != 10 {
			t.Errorf("Expected [10], got %v", g)
		}
	})
}

// TestOptimiser_Frontier tests the full risk-aversion sweep.
//
// WHY: The frontier is the main output of the service. It must start at the minimum-variance
// portfolio, move monotonically towards higher risk, hold only valid long-only weights and
// contain no visually duplicate points.
func TestOptimiser_Frontier(t *testing.T) {
	optimiser := optimisation.NewOptimiser(optimisation.Config{Workers: 4}, nil)

	result, err := optimiser.Frontier(context.Background(), twoAssetObservations(), analysis.Monthly)
	if err != nil {
		t.Fatalf("Frontier() returned unexpected error: %v", err)
	}
	if len(result.Skipped) != 0 {
		t.Fatalf("Expected no skipped samples, got %d: %v", len(result.Skipped), result.Skipped[0].Reason)
	}
	points := result.Points
	if len(points) < 2 {
		t.Fatalf("Expected several frontier points, got %d", len(points))
	}

	t.Run("first point is the minimum-variance portfolio", func(t *testing.T) {
		first := points[0]
		if first.Gamma != 1e3 {
			t.Errorf("Expected first gamma 1000, got %v", first.Gamma)
		}
		if first.Weights[0].Symbol != "AAA" || math.Abs(first.Weights[0].ValueProportion-(0.8-0.0375/1e3)) > 1e-6 {
			t.Errorf("Unexpected minimum-variance weights: %+v", first.Weights)
		}
	})

	t.Run("last point holds only the highest return asset", func(t *testing.T) {
		last := points[len(points)-1]
		if last.Weights[1].Symbol != "BBB" || math.Abs(last.Weights[1].ValueProportion-1) > 1e-9 {
			t.Errorf("Expected 100%% BBB, got %+v", last.Weights)
		}
		wantMean := (math.Pow(1.01, 12) - 1) * 100
		if math.Abs(last.ArithmeticMean-wantMean) > 1e-6 {
			t.Errorf("Expected annualised mean %v, got %v", wantMean, last.ArithmeticMean)
		}
		wantStd := math.Sqrt(16.0/3.0) * math.Sqrt(12)
		if math.Abs(last.StdDev-wantStd) > 1e-6 {
			t.Errorf("Expected annualised std dev %v, got %v", wantStd, last.StdDev)
		}
		growth := 1.03 * 1.03 * 0.99 * 0.99
		wantGeo := (math.Pow(growth, 12.0/4.0) - 1) * 100
		if math.Abs(last.GeometricMean-wantGeo) > 1e-6 {
			t.Errorf("Expected geometric mean %v, got %v", wantGeo, last.GeometricMean)
		}
	})

	t.Run("weights are long-only and fully invested", func(t *testing.T) {
		for i, p := range points {
			var sum float64
			for _, w := range p.Weights {
				if w.ValueProportion < 0 {
					t.Errorf("point %d has negative weight %+v", i, w)
				}
				sum += w.ValueProportion
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Errorf("point %d weights sum to %v", i, sum)
			}
		}
	})

	t.Run("risk and return increase as risk aversion falls", func(t *testing.T) {
		for i := 1; i < len(points); i++ {
			if points[i].StdDev < points[i-1].StdDev-1e-6 {
				t.Errorf("std dev decreased at %d: %v < %v", i, points[i].StdDev, points[i-1].StdDev)
			}
			if points[i].ArithmeticMean < points[i-1].ArithmeticMean-1e-6 {
				t.Errorf("mean decreased at %d: %v < %v", i, points[i].ArithmeticMean, points[i-1].ArithmeticMean)
			}
			if points[i].Gamma >= points[i-1].Gamma {
				t.Errorf("points out of sweep order at %d", i)
			}
		}
	})

	t.Run("no two points share rounded risk and return", func(t *testing.T) {
		seen := map[[2]float64]bool{}
		for _, p := range points {
			k := [2]float64{math.RoundToEven(p.StdDev * 1000), math.RoundToEven(p.ArithmeticMean * 1000)}
			if seen[k] {
				t.Errorf("duplicate point %v", k)
			}
			seen[k] = true
		}
		if len(points) >= 200 {
			t.Errorf("Expected corner solutions to be deduplicated, got %d points", len(points))
		}
	})
}

func TestOptimiser_FrontierFailures(t *testing.T) {
	t.Run("insufficient data skips every sample", func(t *testing.T) {
		obs := append(twoAssetObservations(), model.ReturnObservation{
			TradeDate:     time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC),
			Symbol:        "ONE",
			ChangePercent: 2,
		})
		result, err := optimisation.NewOptimiser(optimisation.Config{Samples: 5}, nil).
			Frontier(context.Background(), obs, analysis.Monthly)
		if err != nil {
			t.Fatalf("Frontier() returned unexpected error: %v", err)
		}
		if len(result.Points) != 0 {
			t.Errorf("Expected no points, got %d", len(result.Points))
		}
		if len(result.Skipped) != 5 {
			t.Fatalf("Expected 5 skipped samples, got %d", len(result.Skipped))
		}
		for _, s := range result.Skipped {
			if !errors.Is(s.Err, optimisation.ErrNonFiniteInput) {
				t.Errorf("Expected ErrNonFiniteInput, got %v", s.Err)
			}
		}
	})

	t.Run("cancelled context skips samples instead of failing", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		result, err := optimisation.NewOptimiser(optimisation.Config{Samples: 3}, nil).
			Frontier(ctx, twoAssetObservations(), analysis.Monthly)
		if err != nil {
			t.Fatalf("Frontier() returned unexpected error: %v", err)
		}
		if len(result.Skipped) != 3 {
			t.Fatalf("Expected 3 skipped samples, got %d", len(result.Skipped))
		}
		if !errors.Is(result.Skipped[0].Err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", result.Skipped[0].Err)
		}
	})

	t.Run("empty input is an error", func(t *testing.T) {
		_, err := optimisation.NewOptimiser(optimisation.Config{}, nil).Frontier(context.Background(), nil, analysis.Monthly)
		if !errors.Is(err, optimisation.ErrNoSymbols) {
			t.Errorf("Expected ErrNoSymbols, got %v", err)
		}
	})

	t.Run("unsupported period is an error", func(t *testing.T) {
		_, err := optimisation.NewOptimiser(optimisation.Config{}, nil).Frontier(context.Background(), twoAssetObservations(), analysis.Period("hourly"))
		if !errors.Is(err, analysis.ErrUnsupportedPeriod) {
			t.Errorf("Expected ErrUnsupportedPeriod, got %v", err)
		}
	})
}

func TestMaxSharpe(t *testing.T) {
	points := []model.FrontierPoint{
		{Gamma: 3, StdDev: 0, ArithmeticMean: 20},
		{Gamma: 2, StdDev: 5, ArithmeticMean: 10},
		{Gamma: 1, StdDev: 10, ArithmeticMean: 16},
	}

	t.Run("picks the highest ratio and ignores zero variance", func(t *testing.T) {
		best, ratio, ok := optimisation.MaxSharpe(points, 4.29)
		if !ok {
			t.Fatal("Expected a point")
		}
		if best.Gamma != 1 {
			t.Errorf("Expected gamma 1, got %v", best.Gamma)
		}
		if math.Abs(ratio-(16-4.29)/10) > 1e-12 {
			t.Errorf("Unexpected ratio %v", ratio)
		}
	})

	t.Run("no qualifying point", func(t *testing.T) {
		if _, _, ok := optimisation.MaxSharpe(points[:1], 4.29); ok {
			t.Error("Expected no point for zero variance only")
		}
	})
}
