package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/yahoo"
)

// MockYahooClient is a mock implementation of yahoo.Client for testing.
// It returns a predefined response per symbol instead of making actual API calls, and is
// safe for the concurrent queries the services issue.
type MockYahooClient struct {
	mu        sync.Mutex
	responses map[string]yahoo.Response
	errors    map[string]error
	queries   map[string]int
}

// NewMockYahooClient creates a mock Yahoo client without any data. Unknown symbols fail
// with yahoo.ErrNoData, like Yahoo's "Not Found" error.
func NewMockYahooClient() *MockYahooClient {
	return &MockYahooClient{
		responses: make(map[string]yahoo.Response),
		errors:    make(map[string]error),
		queries:   make(map[string]int),
	}
}

// WithResponse configures the response returned for symbol.
func (m *MockYahooClient) WithResponse(symbol string, resp yahoo.Response) *MockYahooClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[symbol] = resp
	return m
}

// WithError configures the error returned for symbol.
func (m *MockYahooClient) WithError(symbol string, err error) *MockYahooClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[symbol] = err
	return m
}

// QueryCount returns how many times symbol was queried.
func (m *MockYahooClient) QueryCount(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries[symbol]
}

// TotalQueries returns the number of queries over all symbols.
func (m *MockYahooClient) TotalQueries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.queries {
		total += n
	}
	return total
}

func (m *MockYahooClient) query(ctx context.Context, symbol string) (yahoo.Response, error) {
	if err := ctx.Err(); err != nil {
		return yahoo.Response{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries[symbol]++
	if err, ok := m.errors[symbol]; ok {
		return yahoo.Response{}, err
	}
	resp, ok := m.responses[symbol]
	if !ok {
		return yahoo.Response{}, fmt.Errorf("%w for symbol %s", yahoo.ErrNoData, symbol)
	}
	return resp, nil
}

// QueryRange returns the configured response for symbol.
func (m *MockYahooClient) QueryRange(ctx context.Context, symbol string, _ yahoo.Interval, _ string) (yahoo.Response, error) {
	return m.query(ctx, symbol)
}

// QueryHistory returns the configured response for symbol.
func (m *MockYahooClient) QueryHistory(ctx context.Context, symbol string, _ yahoo.Interval, _, _ time.Time) (yahoo.Response, error) {
	return m.query(ctx, symbol)
}

// ParseChart delegates to the real ParseChart method since it's pure logic with no side effects.
func (m *MockYahooClient) ParseChart(yahooResult yahoo.Response) (yahoo.PriceChart, error) {
	client := yahoo.NewFinanceClient()
	return client.ParseChart(yahooResult)
}

// CreateMonthlyYahooResponse creates a Yahoo response with one bar per month starting at
// start, closing at the given prices.
func CreateMonthlyYahooResponse(symbol string, start time.Time, closes ...float64) yahoo.Response {
	timestamps := make([]int64, len(closes))
	opens := make([]*float64, len(closes))
	highs := make([]*float64, len(closes))
	lows := make([]*float64, len(closes))
	closePrices := make([]*float64, len(closes))
	volumes := make([]*int64, len(closes))

	for i, c := range closes {
		date := time.Date(start.Year(), start.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		timestamps[i] = date.Unix()

		closePrice := c
		open := c * 0.99
		high := c * 1.01
		low := c * 0.98
		volume := int64(1000000 + i*10000)

		opens[i] = &open
		highs[i] = &high
		lows[i] = &low
		closePrices[i] = &closePrice
		volumes[i] = &volume
	}

	return yahoo.Response{
		Chart: yahoo.Chart{
			Result: []yahoo.Result{
				{
					Meta: yahoo.Meta{
						Symbol:           symbol,
						Currency:         "USD",
						ExchangeName:     "NMS",
						FullExchangeName: "NASDAQ",
						LongName:         symbol + " Inc.",
						Shortname:        symbol,
					},
					Timestamp: timestamps,
					Indicators: yahoo.IndicatorsContainer{
						Quote: []yahoo.Quote{
							{
								Open:   opens,
								High:   highs,
								Low:    lows,
								Close:  closePrices,
								Volume: volumes,
							},
						},
					},
				},
			},
		},
	}
}

// CreateQuoteYahooResponse creates a Yahoo response carrying only a regular market price,
// as returned for current prices and currency pairs.
func CreateQuoteYahooResponse(symbol string, price float64, at time.Time) yahoo.Response {
	return yahoo.Response{
		Chart: yahoo.Chart{
			Result: []yahoo.Result{
				{
					Meta: yahoo.Meta{
						Symbol:             symbol,
						Currency:           "USD",
						RegularMarketPrice: price,
						RegularMarketTime:  at.Unix(),
					},
					Timestamp: []int64{at.Unix()},
					Indicators: yahoo.IndicatorsContainer{
						Quote: []yahoo.Quote{
							{Close: []*float64{&price}},
						},
					},
				},
			},
		},
	}
}
