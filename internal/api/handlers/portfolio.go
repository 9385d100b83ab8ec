package handlers

import (
	"net/http"
	"strings"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/analysis"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/api/request"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/api/response"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/service"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/validation"
)

// PortfolioHandler handles portfolio analysis HTTP requests: optimisation, drawdowns and
// their chart renderings.
type PortfolioHandler struct {
	analysisService *service.AnalysisService
	defaultPeriod   analysis.Period
}

// NewPortfolioHandler creates a new PortfolioHandler. defaultPeriod is used when a request
// has no "period" query parameter.
func NewPortfolioHandler(analysisService *service.AnalysisService, defaultPeriod analysis.Period) *PortfolioHandler {
	return &PortfolioHandler{
		analysisService: analysisService,
		defaultPeriod:   defaultPeriod,
	}
}

// Optimise computes the efficient frontier and statistics for a set of holdings.
// Holdings are converted to USD value proportions before analysis; symbols without stored
// returns are fetched first.
//
// Endpoint: POST /api/portfolio/optimise?period=monthly
// Request Body: [{"symbol": "AAPL", "value": 1000, "currency": "USD"}, ...]
// Response: 200 OK with model.OptimisationReport
// Error: 400 Bad Request for invalid holdings or period
// Error: 404 Not Found if a symbol is unknown upstream
// Error: 422 Unprocessable Entity if there is not enough return history
// Error: 500 Internal Server Error if the optimisation fails
func (h *PortfolioHandler) Optimise(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r, h.defaultPeriod)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToOptimise)
		return
	}

	req, err := parseJSON[[]request.HoldingRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateHoldings(req); err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToOptimise)
		return
	}

	holdings := make([]model.Holding, len(req))
	for i, hr := range req {
		holdings[i] = model.Holding{
			Symbol:   strings.TrimSpace(hr.Symbol),
			Value:    *hr.Value,
			Currency: strings.ToUpper(strings.TrimSpace(hr.Currency)),
		}
	}

	report, err := h.analysisService.Optimise(r.Context(), holdings, period)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToOptimise)
		return
	}

	response.RespondJSON(w, http.StatusOK, report)
}

// Drawdown computes the maximum drawdown of each symbol and, when weights are given, of the
// weighted portfolio.
//
// Endpoint: POST /api/portfolio/drawdown?period=monthly
// Request Body: {"symbols": ["AAPL", "MSFT"], "weights": {"AAPL": 0.6, "MSFT": 0.4}}
// Response: 200 OK with model.DrawdownReport
// Error: 400 Bad Request for invalid symbols, weights or period
// Error: 404 Not Found if a symbol is unknown upstream
// Error: 500 Internal Server Error if the computation fails
func (h *PortfolioHandler) Drawdown(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r, h.defaultPeriod)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToGetDrawdown)
		return
	}

	req, err := parseJSON[request.DrawdownRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateDrawdown(req); err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToGetDrawdown)
		return
	}

	report, err := h.analysisService.Drawdowns(r.Context(), req.Symbols, toWeights(req.Symbols, req.Weights), period)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToGetDrawdown)
		return
	}

	response.RespondJSON(w, http.StatusOK, report)
}

// FrontierChart renders the efficient frontier of the given symbols as a PNG.
//
// Endpoint: GET /api/portfolio/frontier/chart?symbols=AAPL,MSFT&period=monthly
// Response: 200 OK with an image/png body
// Error: 400 Bad Request for invalid symbols or period
// Error: 500 Internal Server Error if the chart cannot be rendered
func (h *PortfolioHandler) FrontierChart(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r, h.defaultPeriod)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRenderChart)
		return
	}

	symbols := parseSymbolsParam(r)
	if err := validation.ValidateSymbols(symbols); err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRenderChart)
		return
	}

	png, err := h.analysisService.FrontierChart(r.Context(), symbols, period)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRenderChart)
		return
	}

	response.RespondPNG(w, png)
}

// DrawdownChart renders per-symbol drawdowns, and the portfolio's when weights are given,
// as a PNG.
//
// Endpoint: GET /api/portfolio/drawdown/chart?symbols=AAPL,MSFT&weights=AAPL:0.6,MSFT:0.4
// Response: 200 OK with an image/png body
// Error: 400 Bad Request for invalid symbols, weights or period
// Error: 500 Internal Server Error if the chart cannot be rendered
func (h *PortfolioHandler) DrawdownChart(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r, h.defaultPeriod)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRenderChart)
		return
	}

	weights, err := parseWeightsParam(r)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRenderChart)
		return
	}
	req := request.DrawdownRequest{Symbols: parseSymbolsParam(r), Weights: weights}
	if err := validation.ValidateDrawdown(req); err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRenderChart)
		return
	}

	png, err := h.analysisService.DrawdownChart(r.Context(), req.Symbols, toWeights(req.Symbols, req.Weights), period)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRenderChart)
		return
	}

	response.RespondPNG(w, png)
}
