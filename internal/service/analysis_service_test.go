package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/analysis"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/service"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/testutil"
)

func annualised(t *testing.T, monthlyMean float64) float64 {
	t.Helper()
	v, err := analysis.ConvertMean(monthlyMean, analysis.Monthly, analysis.Yearly)
	if err != nil {
		t.Fatalf("ConvertMean() returned unexpected error: %v", err)
	}
	return v
}

// TestAnalysisService_Optimise tests the full optimisation report.
//
// WHY: This is the main analysis entry point. Weights must follow the USD value of the
// holdings, statistics must be annualised, the frontier must start at the minimum-variance
// portfolio and the report must encode to JSON even when statistics are undefined.
func TestAnalysisService_Optimise(t *testing.T) {
	ctx := context.Background()

	t.Run("reports weights, statistics and the frontier", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		a, b := testutil.TwoAssetChanges()
		testutil.CreatePriceBars(t, db, "AAA", a...)
		testutil.CreatePriceBars(t, db, "BBB", b...)
		mock := testutil.NewMockYahooClient().
			WithResponse("EURUSD=X", testutil.CreateQuoteYahooResponse("EURUSD=X", 1.5, testutil.SeriesStart))
		svc := testutil.NewTestAnalysisService(t, db, mock)
		holdings := []model.Holding{
			{Symbol: "AAA", Value: 600, Currency: "USD"},
			{Symbol: "bbb", Value: 400, Currency: "EUR"},
		}

		// Execute
		report, err := svc.Optimise(ctx, holdings, analysis.Monthly)

		// Assert
		if err != nil {
			t.Fatalf("Optimise() returned unexpected error: %v", err)
		}

		weights := model.WeightMap(report.Weights)
		if math.Abs(weights["AAA"]-0.5) > 1e-12 || math.Abs(weights["BBB"]-0.5) > 1e-12 {
			t.Errorf("Expected equal weights, got %v", report.Weights)
		}

		wantA, wantB := annualised(t, 0.5), annualised(t, 1)
		if got := float64(report.StockStats.AvgReturn["AAA"]); math.Abs(got-wantA) > 1e-9 {
			t.Errorf("Expected AAA annual return %v, got %v", wantA, got)
		}
		if got := float64(report.PortfolioStats.AvgReturn); math.Abs(got-(wantA+wantB)/2) > 1e-9 {
			t.Errorf("Expected portfolio annual return %v, got %v", (wantA+wantB)/2, got)
		}
		if got := float64(report.StockStats.CorrMatrix["AAA"]["AAA"]); got != 1 {
			t.Errorf("Expected unit correlation diagonal, got %v", got)
		}
		if report.PortfolioStats.SharpeRatio == nil {
			t.Errorf("Expected a Sharpe ratio, got error %q", report.PortfolioStats.SharpeError)
		}
		if report.PortfolioStats.Drawdown == nil || report.PortfolioStats.Drawdown.MaxDrawdown.Percent > 0 {
			t.Errorf("Expected a non-positive portfolio drawdown, got %+v", report.PortfolioStats.Drawdown)
		}

		if len(report.OptimisationResults) < 2 {
			t.Fatalf("Expected several frontier points, got %d", len(report.OptimisationResults))
		}
		for i, p := range report.OptimisationResults[1:] {
			if p.StdDev < report.OptimisationResults[0].StdDev-1e-9 {
				t.Errorf("Point %d has lower risk than the minimum-variance point", i+1)
			}
		}
		if len(report.SkippedSamples) != 0 {
			t.Errorf("Expected no skipped samples, got %v", report.SkippedSamples)
		}

		for _, name := range []string{service.PortfolioCurrent, service.PortfolioMinimumVariance, service.PortfolioMaximumSharpe} {
			if _, ok := report.NamedPortfolios[name]; !ok {
				t.Errorf("Expected named portfolio %q", name)
			}
		}
		mvp := report.NamedPortfolios[service.PortfolioMinimumVariance]
		if math.Abs(float64(mvp.Stats.StdDev)-report.OptimisationResults[0].StdDev) > 1e-6 {
			t.Errorf("Expected minimum-variance stats to match the first frontier point: %v vs %v",
				mvp.Stats.StdDev, report.OptimisationResults[0].StdDev)
		}

		if len(report.HistoricalData["AAA"]) != 5 || len(report.HistoricalData["BBB"]) != 5 {
			t.Errorf("Expected 5 historical prices per symbol, got %d and %d",
				len(report.HistoricalData["AAA"]), len(report.HistoricalData["BBB"]))
		}

		if _, err := json.Marshal(report); err != nil {
			t.Errorf("Expected report to encode, got %v", err)
		}
	})

	t.Run("fetches symbols that are not stored", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		mock := testutil.NewMockYahooClient().
			WithResponse("AAA", testutil.CreateMonthlyYahooResponse("AAA", testutil.SeriesStart, 100, 101.5, 101, 102.5, 102)).
			WithResponse("BBB", testutil.CreateMonthlyYahooResponse("BBB", testutil.SeriesStart, 100, 103, 106, 105, 104))
		svc := testutil.NewTestAnalysisService(t, db, mock)

		// Execute
		report, err := svc.Optimise(ctx, []model.Holding{
			{Symbol: "AAA", Value: 1, Currency: "USD"},
			{Symbol: "BBB", Value: 3, Currency: "USD"},
		}, analysis.Monthly)

		// Assert
		if err != nil {
			t.Fatalf("Optimise() returned unexpected error: %v", err)
		}
		if mock.QueryCount("AAA") != 1 || mock.QueryCount("BBB") != 1 {
			t.Errorf("Expected each symbol fetched once, got %d and %d", mock.QueryCount("AAA"), mock.QueryCount("BBB"))
		}
		if w := model.WeightMap(report.Weights)["BBB"]; math.Abs(w-0.75) > 1e-12 {
			t.Errorf("Expected BBB weight 0.75, got %v", w)
		}
		testutil.AssertRowCount(t, db, "eod_tick", 10)
	})

	t.Run("insufficient history skips every sample and still encodes", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		testutil.CreatePriceBars(t, db, "ONE", 2)
		svc := testutil.NewTestAnalysisService(t, db, testutil.NewMockYahooClient())

		// Execute
		report, err := svc.Optimise(ctx, []model.Holding{{Symbol: "ONE", Value: 10, Currency: "USD"}}, analysis.Monthly)

		// Assert
		if err != nil {
			t.Fatalf("Optimise() returned unexpected error: %v", err)
		}
		if len(report.OptimisationResults) != 0 {
			t.Errorf("Expected no frontier points, got %d", len(report.OptimisationResults))
		}
		if len(report.SkippedSamples) != testutil.TestOptimiserConfig.Samples {
			t.Errorf("Expected %d skipped samples, got %d", testutil.TestOptimiserConfig.Samples, len(report.SkippedSamples))
		}
		if _, ok := report.NamedPortfolios[service.PortfolioMinimumVariance]; ok {
			t.Error("Expected no minimum-variance portfolio without a frontier")
		}
		if report.PortfolioStats.SharpeRatio != nil || report.PortfolioStats.SharpeError == "" {
			t.Errorf("Expected undefined Sharpe ratio with a reason, got %+v", report.PortfolioStats)
		}
		data, err := json.Marshal(report)
		if err != nil {
			t.Fatalf("Expected report to encode, got %v", err)
		}
		if !bytes.Contains(data, []byte(`"std_dev":{"ONE":null}`)) {
			t.Errorf("Expected undefined standard deviation to encode as null, got %s", data)
		}
	})

	// WHY: A symbol listed later than the others has gaps in the joint matrix. Its geometric
	// mean must compound only its own returns, not treat the gaps as total losses.
	t.Run("reports each symbol's geometric mean over its own dates", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		testutil.CreatePriceBars(t, db, "OLD", 1, 2, 3, 4)
		testutil.NewPriceBars("NEW").
			WithStart(testutil.SeriesStart.AddDate(0, 1, 0)).
			WithChanges(10, -10, 10).
			Build(t, db)
		svc := testutil.NewTestAnalysisService(t, db, testutil.NewMockYahooClient())
		holdings := []model.Holding{
			{Symbol: "OLD", Value: 50, Currency: "USD"},
			{Symbol: "NEW", Value: 50, Currency: "USD"},
		}

		// Execute
		report, err := svc.Optimise(ctx, holdings, analysis.Monthly)

		// Assert
		if err != nil {
			t.Fatalf("Optimise() returned unexpected error: %v", err)
		}
		got := float64(report.StockStats.GeometricMean["NEW"])
		if math.IsNaN(got) || got <= -100 {
			t.Fatalf("Expected a finite geometric mean above -100%%, got %v", got)
		}
		want := annualised(t, (math.Cbrt(1.1*0.9*1.1)-1)*100)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("Expected NEW geometric mean %v, got %v", want, got)
		}
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestAnalysisService(t, db, testutil.NewMockYahooClient())

		cases := []struct {
			name     string
			holdings []model.Holding
			period   analysis.Period
			want     error
		}{
			{"empty portfolio", nil, analysis.Monthly, apperrors.ErrEmptyPortfolio},
			{"negative value", []model.Holding{{Symbol: "AAA", Value: -1, Currency: "USD"}}, analysis.Monthly, apperrors.ErrNegativeAmount},
			{"blank symbol", []model.Holding{{Symbol: " ", Value: 1, Currency: "USD"}}, analysis.Monthly, apperrors.ErrInvalidSymbol},
			{"bad currency", []model.Holding{{Symbol: "AAA", Value: 1, Currency: "EURO"}}, analysis.Monthly, apperrors.ErrInvalidCurrency},
			{"yearly period", []model.Holding{{Symbol: "AAA", Value: 1, Currency: "USD"}}, analysis.Yearly, apperrors.ErrInvalidPeriod},
			{"unknown symbol", []model.Holding{{Symbol: "ZZZ", Value: 1, Currency: "USD"}}, analysis.Monthly, apperrors.ErrSymbolNotFound},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := svc.Optimise(ctx, tc.holdings, tc.period)
				if !errors.Is(err, tc.want) {
					t.Errorf("Expected %v, got %v", tc.want, err)
				}
			})
		}
	})
}

// TestAnalysisService_Drawdowns tests per-symbol and portfolio drawdowns.
//
// WHY: The portfolio drawdown is only meaningful when weights are supplied; per-symbol
// drawdowns are always reported.
func TestAnalysisService_Drawdowns(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	a, b := testutil.TwoAssetChanges()
	testutil.CreatePriceBars(t, db, "AAA", a...)
	testutil.CreatePriceBars(t, db, "BBB", b...)
	svc := testutil.NewTestAnalysisService(t, db, testutil.NewMockYahooClient())

	t.Run("without weights", func(t *testing.T) {
		report, err := svc.Drawdowns(ctx, []string{"AAA", "BBB"}, nil, analysis.Monthly)
		if err != nil {
			t.Fatalf("Drawdowns() returned unexpected error: %v", err)
		}
		if len(report.Symbols) != 2 {
			t.Errorf("Expected 2 symbol drawdowns, got %d", len(report.Symbols))
		}
		if report.Portfolio != nil {
			t.Error("Expected no portfolio drawdown without weights")
		}
		// B falls 1% twice after its peak: 0.99² - 1.
		if got := report.Symbols["BBB"].MaxDrawdown.Percent; math.Abs(got-(0.99*0.99-1)*100) > 1e-9 {
			t.Errorf("Expected BBB max drawdown %v, got %v", (0.99*0.99-1)*100, got)
		}
	})

	t.Run("with weights", func(t *testing.T) {
		weights := []model.Weight{{Symbol: "AAA", ValueProportion: 0.5}, {Symbol: "BBB", ValueProportion: 0.5}}
		report, err := svc.Drawdowns(ctx, []string{"AAA", "BBB"}, weights, analysis.Monthly)
		if err != nil {
			t.Fatalf("Drawdowns() returned unexpected error: %v", err)
		}
		if report.Portfolio == nil {
			t.Fatal("Expected a portfolio drawdown")
		}
		if len(report.Portfolio.Drawdown) != 4 {
			t.Errorf("Expected 4 drawdown points, got %d", len(report.Portfolio.Drawdown))
		}
	})
}

// TestAnalysisService_Charts tests PNG rendering of frontier and drawdown charts.
//
// WHY: The chart endpoints return images directly; a render failure must surface as an error.
func TestAnalysisService_Charts(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	a, b := testutil.TwoAssetChanges()
	testutil.CreatePriceBars(t, db, "AAA", a...)
	testutil.CreatePriceBars(t, db, "BBB", b...)
	svc := testutil.NewTestAnalysisService(t, db, testutil.NewMockYahooClient())
	pngMagic := []byte("\x89PNG")

	t.Run("frontier", func(t *testing.T) {
		png, err := svc.FrontierChart(ctx, []string{"AAA", "BBB"}, analysis.Monthly)
		if err != nil {
			t.Fatalf("FrontierChart() returned unexpected error: %v", err)
		}
		if !bytes.HasPrefix(png, pngMagic) {
			t.Error("Expected PNG output")
		}
	})

	t.Run("drawdown", func(t *testing.T) {
		weights := []model.Weight{{Symbol: "AAA", ValueProportion: 0.3}, {Symbol: "BBB", ValueProportion: 0.7}}
		png, err := svc.DrawdownChart(ctx, []string{"AAA", "BBB"}, weights, analysis.Monthly)
		if err != nil {
			t.Fatalf("DrawdownChart() returned unexpected error: %v", err)
		}
		if !bytes.HasPrefix(png, pngMagic) {
			t.Error("Expected PNG output")
		}
	})
}
