package testutil

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/analysis"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/optimisation"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/repository"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/service"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/yahoo"
)

// TestOptimiserConfig is a reduced sweep that keeps service and handler tests fast.
var TestOptimiserConfig = optimisation.Config{
	Samples: 40,
	Workers: 2,
}

func NewTestMarketDataService(t *testing.T, db *sqlx.DB, mockYahoo yahoo.Client) *service.MarketDataService {
	t.Helper()

	return service.NewMarketDataService(
		repository.NewReturnRepository(db),
		repository.NewCurrencyRepository(db),
		mockYahoo,
		nil,
	)
}

func NewTestAnalysisService(t *testing.T, db *sqlx.DB, mockYahoo yahoo.Client) *service.AnalysisService {
	t.Helper()

	return service.NewAnalysisService(
		NewTestMarketDataService(t, db, mockYahoo),
		optimisation.NewOptimiser(TestOptimiserConfig, nil),
		service.AnalysisOptions{
			RiskFreeRate: analysis.DefaultRiskFreeRate,
			Timeout:      30 * time.Second,
		},
		nil,
	)
}

func NewTestSystemService(t *testing.T, db *sqlx.DB) *service.SystemService {
	t.Helper()

	return service.NewSystemService(db, map[string]bool{"charts": true})
}
