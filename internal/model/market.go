package model

import "time"

// PriceBar is one stored end-of-period tick for an instrument.
// ChangePercent is nil for the first bar of a series, which has no previous close.
type PriceBar struct {
	ID            string    `json:"id" db:"id"`
	Symbol        string    `json:"symbol" db:"symbol"`
	Period        string    `json:"period" db:"period"`
	TradeDate     time.Time `json:"trade_date" db:"trade_date"`
	OpenPrice     float64   `json:"open_price" db:"open_price"`
	HighPrice     float64   `json:"high_price" db:"high_price"`
	LowPrice      float64   `json:"low_price" db:"low_price"`
	ClosePrice    float64   `json:"close_price" db:"close_price"`
	Volume        int64     `json:"volume" db:"volume"`
	ChangePercent *float64  `json:"change_percent" db:"change_percent"`
}

// Observation returns the bar as a return observation; ok is false when it has no return.
func (b PriceBar) Observation() (ReturnObservation, bool) {
	if b.ChangePercent == nil {
		return ReturnObservation{}, false
	}
	return ReturnObservation{TradeDate: b.TradeDate, Symbol: b.Symbol, ChangePercent: *b.ChangePercent}, true
}

// Holding is a user position from which portfolio weights are derived.
type Holding struct {
	Symbol   string  `json:"symbol"`
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// CurrentPrice is the latest known price of an instrument.
type CurrentPrice struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversionRate converts one unit of Currency into US dollars.
type ConversionRate struct {
	Currency  string    `json:"currency" db:"currency"`
	USDRate   float64   `json:"usd_rate" db:"usd_rate"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
