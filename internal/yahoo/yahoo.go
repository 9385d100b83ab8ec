package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
)

// DefaultBaseURL is the Yahoo Finance chart endpoint.
const DefaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Interval is a Yahoo bar size.
type Interval string

const (
	IntervalDaily   Interval = "1d"
	IntervalWeekly  Interval = "1wk"
	IntervalMonthly Interval = "1mo"
)

var (
	// ErrNoData indicates Yahoo returned no result or no usable closes for a symbol.
	ErrNoData = errors.New("no price data returned")

	// ErrUnknownInterval is returned by IntervalForPeriod for periods Yahoo has no bar size for.
	ErrUnknownInterval = errors.New("no yahoo interval for period")
)

// Client is the subset of the Yahoo Finance API the services depend on.
type Client interface {
	QueryHistory(ctx context.Context, symbol string, interval Interval, start, end time.Time) (Response, error)
	QueryRange(ctx context.Context, symbol string, interval Interval, rng string) (Response, error)
	ParseChart(yahooResult Response) (PriceChart, error)
}

// IntervalForPeriod maps a sampling period label ("daily", "weekly", "monthly") to a bar size.
func IntervalForPeriod(period string) (Interval, error) {
	switch period {
	case "daily":
		return IntervalDaily, nil
	case "weekly":
		return IntervalWeekly, nil
	case "monthly":
		return IntervalMonthly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownInterval, period)
	}
}

// FXSymbol returns the Yahoo ticker quoting one unit of currency in US dollars.
func FXSymbol(currency string) string {
	return strings.ToUpper(currency) + "USD=X"
}

// FinanceClient provides methods for fetching financial data from Yahoo Finance API.
// It wraps an HTTP client and provides convenient methods for querying stock prices
// and related financial data.
type FinanceClient struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures a FinanceClient.
type Option func(*FinanceClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(fc *FinanceClient) { fc.httpClient = c }
}

// WithBaseURL points the client at another chart endpoint, such as a test server.
func WithBaseURL(u string) Option {
	return func(fc *FinanceClient) { fc.baseURL = strings.TrimRight(u, "/") }
}

// NewFinanceClient creates a new Yahoo Finance client.
func NewFinanceClient(opts ...Option) *FinanceClient {
	c := &FinanceClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseChart converts a raw Yahoo Finance API response into a structured price chart.
// Rows without a close price are dropped; missing open, high, low or volume values are zero.
func (c *FinanceClient) ParseChart(yahooResult Response) (PriceChart, error) {
	if len(yahooResult.Chart.Result) == 0 {
		return PriceChart{}, ErrNoData
	}
	result := yahooResult.Chart.Result[0]

	if len(result.Timestamp) == 0 {
		return PriceChart{}, fmt.Errorf("%w for %s", ErrNoData, result.Meta.Symbol)
	}
	if len(result.Indicators.Quote) == 0 || len(result.Indicators.Quote[0].Close) == 0 {
		return PriceChart{}, fmt.Errorf("no close prices returned for %s", result.Meta.Symbol)
	}
	quote := result.Indicators.Quote[0]
	if len(quote.Close) != len(result.Timestamp) {
		return PriceChart{}, fmt.Errorf("mismatched data lengths for %s", result.Meta.Symbol)
	}

	indicators := make([]Indicators, 0, len(result.Timestamp))
	for i, v := range result.Timestamp {
		if quote.Close[i] == nil {
			continue
		}
		indicators = append(indicators, Indicators{
			Date:       time.Unix(v, 0).UTC(),
			PriceOpen:  floatAt(quote.Open, i),
			PriceClose: *quote.Close[i],
			Volume:     intAt(quote.Volume, i),
			PriceHigh:  floatAt(quote.High, i),
			PriceLow:   floatAt(quote.Low, i),
		})
	}

	chart := PriceChart{
		Symbol:             result.Meta.Symbol,
		Currency:           result.Meta.Currency,
		ExchangeName:       result.Meta.ExchangeName,
		FullExchangeName:   result.Meta.FullExchangeName,
		LongName:           result.Meta.LongName,
		Shortname:          result.Meta.Shortname,
		RegularMarketPrice: result.Meta.RegularMarketPrice,
		Indicators:         indicators,
	}
	if result.Meta.RegularMarketTime > 0 {
		chart.RegularMarketTime = time.Unix(result.Meta.RegularMarketTime, 0).UTC()
	}
	return chart, nil
}

func floatAt(values []*float64, i int) float64 {
	if i < len(values) && values[i] != nil {
		return *values[i]
	}
	return 0
}

func intAt(values []*int64, i int) int64 {
	if i < len(values) && values[i] != nil {
		return *values[i]
	}
	return 0
}

// LatestPrice returns the regular market price and its time, falling back to the last close
// when Yahoo sends no market price.
func (c PriceChart) LatestPrice() (float64, time.Time, bool) {
	if c.RegularMarketPrice > 0 {
		return c.RegularMarketPrice, c.RegularMarketTime, true
	}
	if n := len(c.Indicators); n > 0 {
		last := c.Indicators[n-1]
		return last.PriceClose, last.Date, true
	}
	return 0, time.Time{}, false
}

// Bars converts the chart into stored price bars for period ("daily", "weekly" or
// "monthly"). Dates are truncated to the day, and to the first of the month for monthly
// bars; when Yahoo returns two rows for the same date the later one wins. ChangePercent is
// the percentage change between consecutive closes and nil for the first bar. No missing
// periods are filled in.
func (c PriceChart) Bars(period string) []model.PriceBar {
	byDate := make(map[time.Time]Indicators, len(c.Indicators))
	for _, ind := range c.Indicators {
		byDate[normaliseDate(ind.Date, period)] = ind
	}
	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	bars := make([]model.PriceBar, 0, len(dates))
	for i, d := range dates {
		ind := byDate[d]
		bar := model.PriceBar{
			Symbol:     c.Symbol,
			Period:     period,
			TradeDate:  d,
			OpenPrice:  ind.PriceOpen,
			HighPrice:  ind.PriceHigh,
			LowPrice:   ind.PriceLow,
			ClosePrice: ind.PriceClose,
			Volume:     ind.Volume,
		}
		if i > 0 {
			if prev := byDate[dates[i-1]].PriceClose; prev != 0 {
				change := (ind.PriceClose/prev - 1) * 100
				bar.ChangePercent = &change
			}
		}
		bars = append(bars, bar)
	}
	return bars
}

func normaliseDate(t time.Time, period string) time.Time {
	t = t.UTC()
	if period == "monthly" {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// QueryRange fetches bars of the given interval over a Yahoo range such as "5d" or "max".
func (c *FinanceClient) QueryRange(ctx context.Context, symbol string, interval Interval, rng string) (Response, error) {
	q := url.Values{}
	q.Set("interval", string(interval))
	q.Set("range", rng)
	return c.querySymbol(ctx, symbol, q)
}

// QueryHistory fetches bars of the given interval between start and end.
func (c *FinanceClient) QueryHistory(ctx context.Context, symbol string, interval Interval, start, end time.Time) (Response, error) {
	q := url.Values{}
	q.Set("interval", string(interval))
	q.Set("period1", fmt.Sprintf("%d", start.Unix()))
	q.Set("period2", fmt.Sprintf("%d", end.Unix()))
	return c.querySymbol(ctx, symbol, q)
}

func (c *FinanceClient) querySymbol(ctx context.Context, symbol string, q url.Values) (Response, error) {
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())
	result, err := c.queryYahoo(ctx, endpoint)
	if err != nil {
		return Response{}, fmt.Errorf("yahoo query for %s: %w", symbol, err)
	}
	if len(result.Chart.Result) == 0 {
		return Response{}, fmt.Errorf("%w for symbol %s", ErrNoData, symbol)
	}
	return result, nil
}

// queryYahoo executes a request against the chart API, parses the JSON body and turns a
// Yahoo error object into an error.
func (c *FinanceClient) queryYahoo(ctx context.Context, endpoint string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Response{}, err
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		return Response{}, fmt.Errorf("unexpected response (status %d): %w", resp.StatusCode, err)
	}

	if response.Chart.Error != nil {
		if strings.EqualFold(response.Chart.Error.Code, "Not Found") {
			return response, fmt.Errorf("%w: %s", ErrNoData, response.Chart.Error.Description)
		}
		return response, fmt.Errorf("yahoo error: %s: %s", response.Chart.Error.Code, response.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return response, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return response, nil
}
