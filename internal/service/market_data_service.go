package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/repository"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/yahoo"
)

const (
	// historyRange is the Yahoo range requested when a symbol's history is (re)loaded.
	historyRange = "10y"

	// fetchConcurrency bounds parallel upstream requests.
	fetchConcurrency = 4
)

// MarketDataService loads price history, current prices and currency rates from Yahoo and
// keeps the return series store up to date.
type MarketDataService struct {
	returnRepo   *repository.ReturnRepository
	currencyRepo *repository.CurrencyRepository
	yahooClient  yahoo.Client
	logger       *zap.Logger
	now          func() time.Time
}

// NewMarketDataService creates a new MarketDataService.
func NewMarketDataService(
	returnRepo *repository.ReturnRepository,
	currencyRepo *repository.CurrencyRepository,
	yahooClient yahoo.Client,
	logger *zap.Logger,
) *MarketDataService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketDataService{
		returnRepo:   returnRepo,
		currencyRepo: currencyRepo,
		yahooClient:  yahooClient,
		logger:       logger.Named("market_data"),
		now:          time.Now,
	}
}

// FetchQuotes loads the history of every symbol from Yahoo, stores it and returns the
// stored bars. A symbol Yahoo does not know fails the whole call with ErrSymbolNotFound.
func (s *MarketDataService) FetchQuotes(ctx context.Context, symbols []string, period string) ([]model.PriceBar, error) {
	interval, err := yahoo.IntervalForPeriod(period)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidPeriod, err)
	}
	symbols = normaliseCodes(symbols)
	if len(symbols) == 0 {
		return []model.PriceBar{}, nil
	}

	var (
		mu      sync.Mutex
		fetched []model.PriceBar
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, symbol := range symbols {
		g.Go(func() error {
			bars, err := s.fetchHistory(gctx, symbol, interval, period)
			if err != nil {
				return err
			}
			mu.Lock()
			fetched = append(fetched, bars...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.returnRepo.UpsertBars(ctx, fetched); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToStoreQuotes, err)
	}
	s.logger.Info("stored quotes", zap.Strings("symbols", symbols), zap.String("period", period), zap.Int("bars", len(fetched)))

	bars, err := s.returnRepo.GetBars(ctx, period, symbols)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveReturns, err)
	}
	return bars, nil
}

func (s *MarketDataService) fetchHistory(ctx context.Context, symbol string, interval yahoo.Interval, period string) ([]model.PriceBar, error) {
	resp, err := s.yahooClient.QueryRange(ctx, symbol, interval, historyRange)
	if err != nil {
		if errors.Is(err, yahoo.ErrNoData) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrSymbolNotFound, symbol)
		}
		return nil, fmt.Errorf("%w for %s: %w", apperrors.ErrFailedToFetchQuotes, symbol, err)
	}
	chart, err := s.yahooClient.ParseChart(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrSymbolNotFound, symbol, err)
	}
	// Store under the requested symbol even when Yahoo echoes a different spelling.
	chart.Symbol = symbol
	return chart.Bars(period), nil
}

// EnsureReturns returns the stored bars of every symbol, fetching and storing the symbols
// that have no stored history yet.
func (s *MarketDataService) EnsureReturns(ctx context.Context, symbols []string, period string) ([]model.PriceBar, error) {
	symbols = normaliseCodes(symbols)
	bars, err := s.returnRepo.GetBars(ctx, period, symbols)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveReturns, err)
	}

	present := make(map[string]bool, len(symbols))
	for _, b := range bars {
		present[b.Symbol] = true
	}
	var missing []string
	for _, symbol := range symbols {
		if !present[symbol] {
			missing = append(missing, symbol)
		}
	}
	if len(missing) == 0 {
		return bars, nil
	}

	s.logger.Info("fetching missing symbols", zap.Strings("symbols", missing), zap.String("period", period))
	fetched, err := s.FetchQuotes(ctx, missing, period)
	if err != nil {
		return nil, err
	}
	return append(bars, fetched...), nil
}

// RefreshAll reloads the history of every stored symbol of a period. It returns the
// number of symbols refreshed.
func (s *MarketDataService) RefreshAll(ctx context.Context, period string) (int, error) {
	symbols, err := s.returnRepo.ListSymbols(ctx, period)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveReturns, err)
	}
	if len(symbols) == 0 {
		return 0, nil
	}
	if _, err := s.FetchQuotes(ctx, symbols, period); err != nil {
		return 0, err
	}
	return len(symbols), nil
}

// CurrentPrices returns the latest price of each symbol. Symbols whose price cannot be
// retrieved are logged and left out of the result.
func (s *MarketDataService) CurrentPrices(ctx context.Context, symbols []string) (map[string]model.CurrentPrice, error) {
	symbols = normaliseCodes(symbols)
	var (
		mu     sync.Mutex
		prices = make(map[string]model.CurrentPrice, len(symbols))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, symbol := range symbols {
		g.Go(func() error {
			price, err := s.latestPrice(gctx, symbol)
			if err != nil {
				s.logger.Warn("could not retrieve price", zap.String("symbol", symbol), zap.Error(err))
				return nil
			}
			mu.Lock()
			prices[symbol] = price
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrievePrice, err)
	}
	return prices, nil
}

func (s *MarketDataService) latestPrice(ctx context.Context, symbol string) (model.CurrentPrice, error) {
	resp, err := s.yahooClient.QueryRange(ctx, symbol, yahoo.IntervalDaily, "5d")
	if err != nil {
		return model.CurrentPrice{}, err
	}
	chart, err := s.yahooClient.ParseChart(resp)
	if err != nil {
		return model.CurrentPrice{}, err
	}
	price, at, ok := chart.LatestPrice()
	if !ok {
		return model.CurrentPrice{}, fmt.Errorf("%w: %s", apperrors.ErrNoPriceData, symbol)
	}
	if at.IsZero() {
		at = s.now().UTC()
	}
	return model.CurrentPrice{Symbol: symbol, Price: price, Currency: chart.Currency, Timestamp: at}, nil
}

// ConversionRates returns the USD value of one unit of each currency. USD is always 1.
// A rate Yahoo cannot provide falls back to the last stored rate, and is nil when none
// was ever stored.
func (s *MarketDataService) ConversionRates(ctx context.Context, currencies []string) (map[string]*float64, error) {
	codes := normaliseCodes(currencies)
	rates := make(map[string]*float64, len(codes))
	var toFetch []string
	for _, code := range codes {
		if code == "USD" {
			one := 1.0
			rates[code] = &one
			continue
		}
		toFetch = append(toFetch, code)
	}
	if len(toFetch) == 0 {
		return rates, nil
	}

	var mu sync.Mutex
	var failed []string
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, code := range toFetch {
		g.Go(func() error {
			price, err := s.latestPrice(gctx, yahoo.FXSymbol(code))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("could not retrieve conversion rate", zap.String("currency", code), zap.Error(err))
				failed = append(failed, code)
				return nil
			}
			rate := price.Price
			rates[code] = &rate
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, code := range toFetch {
		if r := rates[code]; r != nil {
			if err := s.currencyRepo.UpsertRate(ctx, model.ConversionRate{Currency: code, USDRate: *r, UpdatedAt: s.now()}); err != nil {
				s.logger.Warn("could not store conversion rate", zap.String("currency", code), zap.Error(err))
			}
		}
	}

	if len(failed) > 0 {
		stored, err := s.currencyRepo.GetRates(ctx, failed)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveRates, err)
		}
		for _, code := range failed {
			if r, ok := stored[code]; ok {
				rate := r.USDRate
				rates[code] = &rate
			} else {
				rates[code] = nil
			}
		}
	}
	return rates, nil
}

// normaliseCodes trims, upper-cases and deduplicates symbols or currency codes, keeping
// first-seen order and dropping blanks.
func normaliseCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
