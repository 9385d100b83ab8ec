package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/repository"
)

// SeriesStart is the first trade date of the fixture series.
var SeriesStart = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// PriceBarsBuilder provides a fluent interface for creating monthly price bars.
// The first bar has no return; every change percent produces one more bar whose close
// compounds the previous one.
//
// Example:
//
//	bars := testutil.NewPriceBars("AAPL").WithChanges(1.5, -0.5).Build(t, db)
type PriceBarsBuilder struct {
	symbol  string
	period  string
	start   time.Time
	first   float64
	changes []float64
}

// NewPriceBars creates a builder for a monthly series of symbol starting at 100.
func NewPriceBars(symbol string) *PriceBarsBuilder {
	return &PriceBarsBuilder{
		symbol: symbol,
		period: "monthly",
		start:  SeriesStart,
		first:  100,
	}
}

// WithStart sets the first trade date.
func (b *PriceBarsBuilder) WithStart(start time.Time) *PriceBarsBuilder {
	b.start = start
	return b
}

// WithFirstClose sets the close of the first bar.
func (b *PriceBarsBuilder) WithFirstClose(price float64) *PriceBarsBuilder {
	b.first = price
	return b
}

// WithChanges sets the percentage returns following the first bar.
func (b *PriceBarsBuilder) WithChanges(changes ...float64) *PriceBarsBuilder {
	b.changes = changes
	return b
}

// Bars returns the bars without storing them.
func (b *PriceBarsBuilder) Bars() []model.PriceBar {
	bars := make([]model.PriceBar, 0, len(b.changes)+1)
	closePrice := b.first
	for i := 0; i <= len(b.changes); i++ {
		bar := model.PriceBar{
			Symbol:     b.symbol,
			Period:     b.period,
			TradeDate:  b.start.AddDate(0, i, 0),
			OpenPrice:  closePrice,
			HighPrice:  closePrice,
			LowPrice:   closePrice,
			ClosePrice: closePrice,
			Volume:     1000,
		}
		if i > 0 {
			change := b.changes[i-1]
			closePrice *= 1 + change/100
			bar.ClosePrice = closePrice
			bar.ChangePercent = &change
		}
		bars = append(bars, bar)
	}
	return bars
}

// Build stores the bars and returns them.
func (b *PriceBarsBuilder) Build(t *testing.T, db *sqlx.DB) []model.PriceBar {
	t.Helper()

	bars := b.Bars()
	repo := repository.NewReturnRepository(db)
	if err := repo.UpsertBars(context.Background(), bars); err != nil {
		t.Fatalf("Failed to create price bars for %s: %v", b.symbol, err)
	}
	return bars
}

// CreatePriceBars stores a monthly series of symbol with the given returns.
func CreatePriceBars(t *testing.T, db *sqlx.DB, symbol string, changes ...float64) []model.PriceBar {
	t.Helper()
	return NewPriceBars(symbol).WithChanges(changes...).Build(t, db)
}

// CreateConversionRate stores a USD conversion rate.
func CreateConversionRate(t *testing.T, db *sqlx.DB, currency string, rate float64) model.ConversionRate {
	t.Helper()

	r := model.ConversionRate{Currency: currency, USDRate: rate, UpdatedAt: SeriesStart}
	repo := repository.NewCurrencyRepository(db)
	if err := repo.UpsertRate(context.Background(), r); err != nil {
		t.Fatalf("Failed to create conversion rate for %s: %v", currency, err)
	}
	return r
}

// TwoAssetChanges returns the returns of a two-asset fixture: A alternates 1.5 and -0.5,
// B moves 3, 3, -1, -1. A has the lower risk, B the higher mean.
func TwoAssetChanges() (a, b []float64) {
	return []float64{1.5, -0.5, 1.5, -0.5}, []float64{3, 3, -1, -1}
}
