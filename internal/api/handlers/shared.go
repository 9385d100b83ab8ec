package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/analysis"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/api/response"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/validation"
)

// maxBodyBytes caps request bodies; a holdings list is a few kilobytes at most.
const maxBodyBytes = 1 << 20

// parseJSON decodes the request body into a T.
func parseJSON[T any](r *http.Request) (T, error) {
	var v T
	if r.Body == nil {
		return v, errors.New("request body is empty")
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("invalid JSON: %w", err)
	}
	return v, nil
}

// statusFor maps service sentinels to HTTP status codes, most specific first.
var statusFor = []struct {
	err    error
	status int
}{
	{apperrors.ErrInvalidPeriod, http.StatusBadRequest},
	{analysis.ErrUnknownPeriod, http.StatusBadRequest},
	{analysis.ErrUnsupportedPeriod, http.StatusBadRequest},
	{apperrors.ErrEmptyPortfolio, http.StatusBadRequest},
	{apperrors.ErrNegativeAmount, http.StatusBadRequest},
	{apperrors.ErrInvalidSymbol, http.StatusBadRequest},
	{apperrors.ErrInvalidCurrency, http.StatusBadRequest},
	{apperrors.ErrSymbolNotFound, http.StatusNotFound},
	{apperrors.ErrInsufficientData, http.StatusUnprocessableEntity},
	{apperrors.ErrFailedToFetchQuotes, http.StatusBadGateway},
}

// respondServiceError writes err with the status its sentinel maps to.
// Unknown errors are reported as fallback with status 500.
func respondServiceError(w http.ResponseWriter, err error, fallback error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		response.RespondError(w, http.StatusBadRequest, "validation failed", verr.Fields)
		return
	}
	for _, m := range statusFor {
		if errors.Is(err, m.err) {
			response.RespondError(w, m.status, m.err.Error(), err.Error())
			return
		}
	}
	response.RespondError(w, http.StatusInternalServerError, fallback.Error(), err.Error())
}

// parsePeriod reads the "period" query parameter, defaulting to def.
// Only periods that can be annualised are accepted.
func parsePeriod(r *http.Request, def analysis.Period) (analysis.Period, error) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return def, nil
	}
	p, err := analysis.ParsePeriod(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrInvalidPeriod, err)
	}
	if _, ok := p.PeriodsPerYear(); !ok {
		return "", fmt.Errorf("%w: %q cannot be annualised", apperrors.ErrInvalidPeriod, raw)
	}
	return p, nil
}

// parseSymbolsParam splits a comma-separated "symbols" query parameter.
func parseSymbolsParam(r *http.Request) []string {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		return nil
	}
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// parseWeightsParam reads a "weights" query parameter of the form "AAPL:0.6,MSFT:0.4".
func parseWeightsParam(r *http.Request) (map[string]float64, error) {
	raw := r.URL.Query().Get("weights")
	if raw == "" {
		return nil, nil
	}
	weights := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		symbol, value, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, &validation.Error{Fields: map[string]string{"weights": fmt.Sprintf("%q is not SYMBOL:WEIGHT", pair)}}
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, &validation.Error{Fields: map[string]string{"weights." + symbol: "weight must be a number"}}
		}
		weights[strings.TrimSpace(symbol)] = w
	}
	return weights, nil
}

// toWeights converts a symbol to weight map into model weights, keeping the order of symbols.
func toWeights(symbols []string, weights map[string]float64) []model.Weight {
	if len(weights) == 0 {
		return nil
	}
	byUpper := make(map[string]float64, len(weights))
	for s, w := range weights {
		byUpper[strings.ToUpper(strings.TrimSpace(s))] += w
	}
	out := make([]model.Weight, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		out = append(out, model.Weight{Symbol: s, ValueProportion: byUpper[s]})
	}
	return out
}
