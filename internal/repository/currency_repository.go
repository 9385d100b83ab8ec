package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
)

// CurrencyRepository stores the last known USD conversion rate per currency.
type CurrencyRepository struct {
	db *sqlx.DB
}

// NewCurrencyRepository creates a new CurrencyRepository with the provided database connection.
func NewCurrencyRepository(db *sqlx.DB) *CurrencyRepository {
	return &CurrencyRepository{db: db}
}

// UpsertRate stores a conversion rate, replacing any earlier value for the currency.
func (r *CurrencyRepository) UpsertRate(ctx context.Context, rate model.ConversionRate) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO fx_rate (currency, usd_rate, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (currency) DO UPDATE SET
			usd_rate = excluded.usd_rate,
			updated_at = excluded.updated_at
	`), rate.Currency, rate.USDRate, rate.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store rate for %s: %w", rate.Currency, err)
	}
	return nil
}

// GetRates returns the stored rates of the given currencies keyed by currency code.
// Currencies without a stored rate are absent from the map.
func (r *CurrencyRepository) GetRates(ctx context.Context, currencies []string) (map[string]model.ConversionRate, error) {
	rates := make(map[string]model.ConversionRate, len(currencies))
	if len(currencies) == 0 {
		return rates, nil
	}

	query, args, err := sqlx.In(`SELECT currency, usd_rate, updated_at FROM fx_rate WHERE currency IN (?)`, currencies)
	if err != nil {
		return nil, fmt.Errorf("failed to build rate query: %w", err)
	}

	var rows []struct {
		Currency  string  `db:"currency"`
		USDRate   float64 `db:"usd_rate"`
		UpdatedAt string  `db:"updated_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query fx_rate table: %w", err)
	}

	for _, row := range rows {
		updated, err := ParseTime(row.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid update time for %s: %w", row.Currency, err)
		}
		rates[row.Currency] = model.ConversionRate{Currency: row.Currency, USDRate: row.USDRate, UpdatedAt: updated}
	}
	return rates, nil
}
