package apperrors

import "errors"

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrSymbolNotFound indicates that a symbol lookup returned no results upstream.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrNoPriceData indicates that no stored or upstream price history exists for a symbol.
	ErrNoPriceData = errors.New("no price data available")
)

// Business logic errors represent validation failures or constraint violations.
// These errors indicate that an operation cannot be completed due to business rules.
var (
	// ErrEmptyPortfolio indicates that an analysis was requested without holdings.
	ErrEmptyPortfolio = errors.New("portfolio has no holdings")

	// ErrInsufficientData indicates too few observations for a meaningful statistic.
	ErrInsufficientData = errors.New("insufficient return data")

	// ErrNegativeAmount indicates that a holding value is negative.
	ErrNegativeAmount = errors.New("amount cannot be negative")

	// Validation errors for required fields
	ErrInvalidSymbol   = errors.New("symbol is required")
	ErrInvalidCurrency = errors.New("currency is required")
	ErrInvalidPeriod   = errors.New("invalid period")
)

// Operation failure errors represent system-level failures when retrieving or processing data.
// These errors indicate that an operation failed, but not due to missing entities or validation issues.
var (
	// Market data operation errors
	ErrFailedToRetrieveReturns = errors.New("failed to retrieve returns")
	ErrFailedToFetchQuotes     = errors.New("failed to fetch quotes")
	ErrFailedToStoreQuotes     = errors.New("failed to store quotes")
	ErrFailedToRetrievePrice   = errors.New("failed to retrieve current price")
	ErrFailedToRetrieveRates   = errors.New("failed to retrieve conversion rates")

	// Analysis operation errors
	ErrFailedToOptimise       = errors.New("failed to optimise portfolio")
	ErrFailedToComputeStats   = errors.New("failed to compute statistics")
	ErrFailedToRenderChart    = errors.New("failed to render chart")
	ErrFailedToGetDrawdown    = errors.New("failed to compute drawdown")
	ErrFailedToGetVersionInfo = errors.New("failed to get version information")
)
