package service_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/testutil"
)

// TestMarketDataService_FetchQuotes tests loading history from Yahoo into the store.
//
// WHY: Every analysis runs on stored returns. The returns must be derived from consecutive
// closes, stored under the requested symbol and unknown symbols must be reported as such
// rather than silently producing an empty series.
func TestMarketDataService_FetchQuotes(t *testing.T) {
	ctx := context.Background()

	t.Run("stores monthly bars with derived returns", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		mock := testutil.NewMockYahooClient().
			WithResponse("AAA", testutil.CreateMonthlyYahooResponse("AAA", testutil.SeriesStart, 100, 110, 99))
		svc := testutil.NewTestMarketDataService(t, db, mock)

		// Execute
		bars, err := svc.FetchQuotes(ctx, []string{" aaa "}, "monthly")

		// Assert
		if err != nil {
			t.Fatalf("FetchQuotes() returned unexpected error: %v", err)
		}
		if len(bars) != 3 {
			t.Fatalf("Expected 3 bars, got %d", len(bars))
		}
		if bars[0].ChangePercent != nil {
			t.Errorf("Expected first bar without return, got %v", *bars[0].ChangePercent)
		}
		if bars[1].ChangePercent == nil || math.Abs(*bars[1].ChangePercent-10) > 1e-9 {
			t.Errorf("Expected second return 10, got %v", bars[1].ChangePercent)
		}
		if bars[2].ChangePercent == nil || math.Abs(*bars[2].ChangePercent+10) > 1e-9 {
			t.Errorf("Expected third return -10, got %v", bars[2].ChangePercent)
		}
		if !bars[1].TradeDate.Equal(testutil.SeriesStart.AddDate(0, 1, 0)) {
			t.Errorf("Expected second bar on %v, got %v", testutil.SeriesStart.AddDate(0, 1, 0), bars[1].TradeDate)
		}
		if mock.QueryCount("AAA") != 1 {
			t.Errorf("Expected one query for AAA, got %d", mock.QueryCount("AAA"))
		}
		testutil.AssertRowCount(t, db, "eod_tick", 3)
	})

	t.Run("refetching replaces stored bars", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		mock := testutil.NewMockYahooClient().
			WithResponse("AAA", testutil.CreateMonthlyYahooResponse("AAA", testutil.SeriesStart, 100, 110))
		svc := testutil.NewTestMarketDataService(t, db, mock)
		if _, err := svc.FetchQuotes(ctx, []string{"AAA"}, "monthly"); err != nil {
			t.Fatalf("FetchQuotes() returned unexpected error: %v", err)
		}
		mock.WithResponse("AAA", testutil.CreateMonthlyYahooResponse("AAA", testutil.SeriesStart, 100, 120))

		// Execute
		bars, err := svc.FetchQuotes(ctx, []string{"AAA"}, "monthly")

		// Assert
		if err != nil {
			t.Fatalf("FetchQuotes() returned unexpected error: %v", err)
		}
		testutil.AssertRowCount(t, db, "eod_tick", 2)
		if bars[1].ClosePrice != 120 {
			t.Errorf("Expected updated close 120, got %v", bars[1].ClosePrice)
		}
	})

	t.Run("unknown symbol fails with ErrSymbolNotFound", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMarketDataService(t, db, testutil.NewMockYahooClient())

		// Execute
		_, err := svc.FetchQuotes(ctx, []string{"ZZZ"}, "monthly")

		// Assert
		if !errors.Is(err, apperrors.ErrSymbolNotFound) {
			t.Errorf("Expected ErrSymbolNotFound, got %v", err)
		}
		testutil.AssertRowCount(t, db, "eod_tick", 0)
	})

	t.Run("upstream failure fails with ErrFailedToFetchQuotes", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		mock := testutil.NewMockYahooClient().WithError("AAA", errors.New("connection reset"))
		svc := testutil.NewTestMarketDataService(t, db, mock)

		// Execute
		_, err := svc.FetchQuotes(ctx, []string{"AAA"}, "monthly")

		// Assert
		if !errors.Is(err, apperrors.ErrFailedToFetchQuotes) {
			t.Errorf("Expected ErrFailedToFetchQuotes, got %v", err)
		}
	})

	t.Run("rejects a period without a bar size", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMarketDataService(t, db, testutil.NewMockYahooClient())

		_, err := svc.FetchQuotes(ctx, []string{"AAA"}, "yearly")

		if !errors.Is(err, apperrors.ErrInvalidPeriod) {
			t.Errorf("Expected ErrInvalidPeriod, got %v", err)
		}
	})
}

// TestMarketDataService_EnsureReturns tests that only missing symbols are fetched.
//
// WHY: Optimising a portfolio must not hit Yahoo for symbols whose history is already
// stored, but must transparently load the ones that are not.
func TestMarketDataService_EnsureReturns(t *testing.T) {
	ctx := context.Background()

	// Setup
	db := testutil.SetupTestDB(t)
	testutil.CreatePriceBars(t, db, "BBB", 1, 2, 3, 4)
	mock := testutil.NewMockYahooClient().
		WithResponse("AAA", testutil.CreateMonthlyYahooResponse("AAA", testutil.SeriesStart, 100, 110, 99))
	svc := testutil.NewTestMarketDataService(t, db, mock)

	// Execute
	bars, err := svc.EnsureReturns(ctx, []string{"AAA", "BBB"}, "monthly")

	// Assert
	if err != nil {
		t.Fatalf("EnsureReturns() returned unexpected error: %v", err)
	}
	if len(bars) != 8 {
		t.Errorf("Expected 8 bars, got %d", len(bars))
	}
	if mock.QueryCount("BBB") != 0 {
		t.Errorf("Expected stored symbol BBB not to be fetched, got %d queries", mock.QueryCount("BBB"))
	}
	if mock.QueryCount("AAA") != 1 {
		t.Errorf("Expected missing symbol AAA to be fetched once, got %d queries", mock.QueryCount("AAA"))
	}

	t.Run("second call is served from the store", func(t *testing.T) {
		if _, err := svc.EnsureReturns(ctx, []string{"AAA", "BBB"}, "monthly"); err != nil {
			t.Fatalf("EnsureReturns() returned unexpected error: %v", err)
		}
		if mock.TotalQueries() != 1 {
			t.Errorf("Expected no further queries, got %d in total", mock.TotalQueries())
		}
	})
}

// TestMarketDataService_CurrentPrices tests latest price retrieval.
//
// WHY: A single unknown symbol must not fail the whole request; it is logged and left out.
func TestMarketDataService_CurrentPrices(t *testing.T) {
	// Setup
	db := testutil.SetupTestDB(t)
	at := time.Date(2025, time.March, 14, 20, 0, 0, 0, time.UTC)
	mock := testutil.NewMockYahooClient().
		WithResponse("AAA", testutil.CreateQuoteYahooResponse("AAA", 123.4, at))
	svc := testutil.NewTestMarketDataService(t, db, mock)

	// Execute
	prices, err := svc.CurrentPrices(context.Background(), []string{"AAA", "ZZZ"})

	// Assert
	if err != nil {
		t.Fatalf("CurrentPrices() returned unexpected error: %v", err)
	}
	if len(prices) != 1 {
		t.Fatalf("Expected 1 price, got %d", len(prices))
	}
	price := prices["AAA"]
	if price.Price != 123.4 || !price.Timestamp.Equal(at) {
		t.Errorf("Unexpected price %+v", price)
	}
}

// TestMarketDataService_ConversionRates tests USD conversion rates.
//
// WHY: Holdings in several currencies are weighted by their USD value. USD needs no lookup,
// a temporarily unavailable rate falls back to the stored one, and an unknown rate must be
// reported as missing instead of zero.
func TestMarketDataService_ConversionRates(t *testing.T) {
	// Setup
	db := testutil.SetupTestDB(t)
	testutil.CreateConversionRate(t, db, "GBP", 1.25)
	mock := testutil.NewMockYahooClient().
		WithResponse("EURUSD=X", testutil.CreateQuoteYahooResponse("EURUSD=X", 1.1, testutil.SeriesStart)).
		WithError("GBPUSD=X", errors.New("timeout"))
	svc := testutil.NewTestMarketDataService(t, db, mock)

	// Execute
	rates, err := svc.ConversionRates(context.Background(), []string{"usd", "EUR", "GBP", "JPY"})

	// Assert
	if err != nil {
		t.Fatalf("ConversionRates() returned unexpected error: %v", err)
	}
	expected := map[string]float64{"USD": 1, "EUR": 1.1, "GBP": 1.25}
	for code, want := range expected {
		got := rates[code]
		if got == nil || *got != want {
			t.Errorf("Expected %s rate %v, got %v", code, want, got)
		}
	}
	jpy, ok := rates["JPY"]
	if !ok || jpy != nil {
		t.Errorf("Expected JPY present with nil rate, got %v (present %v)", jpy, ok)
	}
	if mock.QueryCount("USDUSD=X") != 0 {
		t.Error("Expected no lookup for USD")
	}
	testutil.AssertRowCount(t, db, "fx_rate", 2)
}

// TestMarketDataService_RefreshAll tests the scheduled refresh of stored symbols.
//
// WHY: The refresh must reload exactly the stored symbols and update bars in place.
func TestMarketDataService_RefreshAll(t *testing.T) {
	// Setup
	db := testutil.SetupTestDB(t)
	testutil.CreatePriceBars(t, db, "AAA", 1, 2, 3, 4)
	mock := testutil.NewMockYahooClient().
		WithResponse("AAA", testutil.CreateMonthlyYahooResponse("AAA", testutil.SeriesStart, 100, 105, 110))
	svc := testutil.NewTestMarketDataService(t, db, mock)

	// Execute
	n, err := svc.RefreshAll(context.Background(), "monthly")

	// Assert
	if err != nil {
		t.Fatalf("RefreshAll() returned unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 refreshed symbol, got %d", n)
	}
	if mock.QueryCount("AAA") != 1 {
		t.Errorf("Expected AAA to be fetched once, got %d", mock.QueryCount("AAA"))
	}
	testutil.AssertRowCount(t, db, "eod_tick", 5)

	t.Run("nothing stored means nothing fetched", func(t *testing.T) {
		n, err := svc.RefreshAll(context.Background(), "weekly")
		if err != nil || n != 0 {
			t.Errorf("Expected (0, nil), got (%d, %v)", n, err)
		}
	})
}
