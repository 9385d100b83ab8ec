package handlers

import (
	"net/http"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/analysis"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/api/request"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/api/response"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/service"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/validation"
)

// InstrumentHandler handles market data HTTP requests for equities and currencies.
type InstrumentHandler struct {
	marketDataService *service.MarketDataService
	defaultPeriod     analysis.Period
}

// NewInstrumentHandler creates a new InstrumentHandler.
func NewInstrumentHandler(marketDataService *service.MarketDataService, defaultPeriod analysis.Period) *InstrumentHandler {
	return &InstrumentHandler{
		marketDataService: marketDataService,
		defaultPeriod:     defaultPeriod,
	}
}

// Quotes fetches the price history of each symbol from Yahoo, stores it and returns the
// stored rows. Existing rows for the same symbol and trade date are replaced.
//
// Endpoint: POST /api/instruments/equities/quotes?period=monthly
// Request Body: ["AAPL", "MSFT"]
// Response: 200 OK with []model.PriceBar
// Error: 400 Bad Request for invalid symbols or period
// Error: 404 Not Found if a symbol is unknown upstream
// Error: 502 Bad Gateway if Yahoo cannot be reached
func (h *InstrumentHandler) Quotes(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r, h.defaultPeriod)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToFetchQuotes)
		return
	}

	req, err := parseJSON[request.SymbolsRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateSymbols(req); err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToFetchQuotes)
		return
	}

	bars, err := h.marketDataService.FetchQuotes(r.Context(), req, string(period))
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToFetchQuotes)
		return
	}

	response.RespondJSON(w, http.StatusOK, bars)
}

// CurrentPrice returns the latest price and its timestamp for each symbol.
// Symbols whose price cannot be fetched are left out of the response.
//
// Endpoint: POST /api/instruments/equities/current_price
// Request Body: ["AAPL", "MSFT"]
// Response: 200 OK with map of symbol to model.CurrentPrice
// Error: 400 Bad Request for invalid symbols
// Error: 500 Internal Server Error if the lookup fails
func (h *InstrumentHandler) CurrentPrice(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.SymbolsRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateSymbols(req); err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRetrievePrice)
		return
	}

	prices, err := h.marketDataService.CurrentPrices(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRetrievePrice)
		return
	}

	response.RespondJSON(w, http.StatusOK, prices)
}

// Currencies returns the USD value of one unit of each currency. USD itself is always 1;
// a currency with no known rate maps to null.
//
// Endpoint: POST /api/currencies
// Request Body: ["EUR", "GBP"]
// Response: 200 OK with map of currency to rate
// Error: 400 Bad Request for invalid currency codes
// Error: 500 Internal Server Error if the lookup fails
func (h *InstrumentHandler) Currencies(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CurrenciesRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCurrencies(req); err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRetrieveRates)
		return
	}

	rates, err := h.marketDataService.ConversionRates(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRetrieveRates)
		return
	}

	response.RespondJSON(w, http.StatusOK, rates)
}
