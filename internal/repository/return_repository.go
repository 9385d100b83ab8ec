package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
)

// ReturnRepository provides data access methods for the eod_tick table, the store of
// periodic price bars and their percentage returns.
type ReturnRepository struct {
	db *sqlx.DB
}

// NewReturnRepository creates a new ReturnRepository with the provided database connection.
func NewReturnRepository(db *sqlx.DB) *ReturnRepository {
	return &ReturnRepository{db: db}
}

type barRow struct {
	ID            string          `db:"id"`
	Symbol        string          `db:"symbol"`
	Period        string          `db:"period"`
	TradeDate     string          `db:"trade_date"`
	OpenPrice     sql.NullFloat64 `db:"open_price"`
	HighPrice     sql.NullFloat64 `db:"high_price"`
	LowPrice      sql.NullFloat64 `db:"low_price"`
	ClosePrice    float64         `db:"close_price"`
	Volume        sql.NullInt64   `db:"volume"`
	ChangePercent sql.NullFloat64 `db:"change_percent"`
}

func (r barRow) toModel() (model.PriceBar, error) {
	date, err := ParseTime(r.TradeDate)
	if err != nil {
		return model.PriceBar{}, fmt.Errorf("invalid trade date for %s: %w", r.Symbol, err)
	}
	bar := model.PriceBar{
		ID:         r.ID,
		Symbol:     r.Symbol,
		Period:     r.Period,
		TradeDate:  date,
		OpenPrice:  r.OpenPrice.Float64,
		HighPrice:  r.HighPrice.Float64,
		LowPrice:   r.LowPrice.Float64,
		ClosePrice: r.ClosePrice,
		Volume:     r.Volume.Int64,
	}
	if r.ChangePercent.Valid {
		v := r.ChangePercent.Float64
		bar.ChangePercent = &v
	}
	return bar, nil
}

// UpsertBars inserts bars or replaces the stored values of an existing
// (symbol, period, trade_date) within a single transaction.
func (r *ReturnRepository) UpsertBars(ctx context.Context, bars []model.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := tx.Rebind(`
		INSERT INTO eod_tick (id, symbol, period, trade_date, open_price, high_price, low_price, close_price, volume, change_percent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, period, trade_date) DO UPDATE SET
			open_price = excluded.open_price,
			high_price = excluded.high_price,
			low_price = excluded.low_price,
			close_price = excluded.close_price,
			volume = excluded.volume,
			change_percent = excluded.change_percent
	`)
	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		id := b.ID
		if id == "" {
			id = uuid.New().String()
		}
		var change sql.NullFloat64
		if b.ChangePercent != nil {
			change = sql.NullFloat64{Float64: *b.ChangePercent, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			id, b.Symbol, b.Period, FormatDate(b.TradeDate),
			b.OpenPrice, b.HighPrice, b.LowPrice, b.ClosePrice, b.Volume, change,
		); err != nil {
			return fmt.Errorf("failed to upsert %s on %s: %w", b.Symbol, FormatDate(b.TradeDate), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bars: %w", err)
	}
	return nil
}

// GetBars returns the stored bars of the given symbols and period ordered by symbol and date.
// Returns an empty slice if nothing is stored.
func (r *ReturnRepository) GetBars(ctx context.Context, period string, symbols []string) ([]model.PriceBar, error) {
	if len(symbols) == 0 {
		return []model.PriceBar{}, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, symbol, period, trade_date, open_price, high_price, low_price, close_price, volume, change_percent
		FROM eod_tick
		WHERE period = ? AND symbol IN (?)
		ORDER BY symbol, trade_date
	`, period, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to build bar query: %w", err)
	}

	var rows []barRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query eod_tick table: %w", err)
	}

	bars := make([]model.PriceBar, 0, len(rows))
	for _, row := range rows {
		bar, err := row.toModel()
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// GetReturns returns the return observations of the given symbols and period.
// Bars without a return (the first bar of each series) are skipped.
func (r *ReturnRepository) GetReturns(ctx context.Context, period string, symbols []string) ([]model.ReturnObservation, error) {
	bars, err := r.GetBars(ctx, period, symbols)
	if err != nil {
		return nil, err
	}
	observations := make([]model.ReturnObservation, 0, len(bars))
	for _, b := range bars {
		if o, ok := b.Observation(); ok {
			observations = append(observations, o)
		}
	}
	return observations, nil
}

// ListSymbols returns every symbol stored for a period, sorted.
func (r *ReturnRepository) ListSymbols(ctx context.Context, period string) ([]string, error) {
	symbols := []string{}
	if err := r.db.SelectContext(ctx, &symbols,
		r.db.Rebind(`SELECT DISTINCT symbol FROM eod_tick WHERE period = ? ORDER BY symbol`), period,
	); err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	return symbols, nil
}

// LatestBar returns the most recent stored bar of a symbol.
// ok is false when the symbol has no stored bars.
func (r *ReturnRepository) LatestBar(ctx context.Context, symbol, period string) (latest model.PriceBar, ok bool, err error) {
	var row barRow
	err = r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT id, symbol, period, trade_date, open_price, high_price, low_price, close_price, volume, change_percent
		FROM eod_tick
		WHERE symbol = ? AND period = ?
		ORDER BY trade_date DESC
		LIMIT 1
	`), symbol, period)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PriceBar{}, false, nil
	}
	if err != nil {
		return model.PriceBar{}, false, fmt.Errorf("failed to query latest bar for %s: %w", symbol, err)
	}
	bar, err := row.toModel()
	if err != nil {
		return model.PriceBar{}, false, err
	}
	return bar, true, nil
}
