package model

import "time"

// HistoricalPrice is one stored close with its periodic return, as reported back to clients.
type HistoricalPrice struct {
	TradeDate     time.Time `json:"trade_date"`
	ClosePrice    float64   `json:"close_price"`
	ChangePercent *float64  `json:"change_percent"`
}

// SkippedSample is a risk-aversion value the optimiser could not solve.
type SkippedSample struct {
	Gamma  float64 `json:"gamma"`
	Reason string  `json:"reason"`
}

// StockStats holds annualised per-symbol statistics. Semivariance stays in native period units.
type StockStats struct {
	StdDev        map[string]Float            `json:"std_dev"`
	AvgReturn     map[string]Float            `json:"avg_return"`
	GeometricMean map[string]Float            `json:"geometric_mean"`
	Semivariance  map[string]Float            `json:"semivariance"`
	CorrMatrix    map[string]map[string]Float `json:"corr_matrix"`
}

// PortfolioStats describes one allocation. SharpeRatio is nil when it is undefined, in which
// case SharpeError says why.
type PortfolioStats struct {
	StdDev        Float            `json:"std_dev"`
	AvgReturn     Float            `json:"avg_return"`
	GeometricMean Float            `json:"geometric_mean"`
	SharpeRatio   *Float           `json:"sharpe_ratio"`
	SharpeError   string           `json:"sharpe_error,omitempty"`
	Drawdown      *DrawdownEpisode `json:"drawdown,omitempty"`
}

// NamedPortfolio is a notable allocation with its statistics.
type NamedPortfolio struct {
	Weights []Weight       `json:"weights"`
	Stats   PortfolioStats `json:"stats"`
}

// OptimisationReport is the full result of optimising a set of holdings.
type OptimisationReport struct {
	Period              string                       `json:"period"`
	Weights             []Weight                     `json:"weights"`
	OptimisationResults []FrontierPoint              `json:"optimisation_results"`
	SkippedSamples      []SkippedSample              `json:"skipped_samples"`
	HistoricalData      map[string][]HistoricalPrice `json:"historical_data"`
	StockStats          StockStats                   `json:"stock_stats"`
	PortfolioStats      PortfolioStats               `json:"portfolio_stats"`
	NamedPortfolios     map[string]NamedPortfolio    `json:"named_portfolios"`
}

// DrawdownReport holds per-symbol drawdowns and, when weights were given, the portfolio's.
type DrawdownReport struct {
	Symbols   map[string]DrawdownEpisode `json:"symbols"`
	Portfolio *DrawdownEpisode           `json:"portfolio,omitempty"`
}
