package request

// SymbolsRequest is a bare JSON array of ticker symbols, e.g. ["AAPL","MSFT"].
type SymbolsRequest []string

// CurrenciesRequest is a bare JSON array of ISO 4217 codes, e.g. ["EUR","GBP"].
type CurrenciesRequest []string
