package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/analysis"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/charts"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/optimisation"
)

// Names of the allocations reported in OptimisationReport.NamedPortfolios.
const (
	PortfolioCurrent         = "current"
	PortfolioMinimumVariance = "minimum_variance"
	PortfolioMaximumSharpe   = "maximum_sharpe"
)

// AnalysisOptions tunes the AnalysisService.
type AnalysisOptions struct {
	// RiskFreeRate is the annual rate, in percent, used for Sharpe ratios.
	RiskFreeRate float64
	// Timeout bounds a single frontier sweep. Zero means no limit beyond the caller's context.
	Timeout time.Duration
}

// AnalysisService computes portfolio statistics, drawdowns and efficient frontiers from the
// stored return series.
type AnalysisService struct {
	marketData *MarketDataService
	optimiser  *optimisation.Optimiser
	opts       AnalysisOptions
	logger     *zap.Logger
}

// NewAnalysisService creates a new AnalysisService.
func NewAnalysisService(
	marketData *MarketDataService,
	optimiser *optimisation.Optimiser,
	opts AnalysisOptions,
	logger *zap.Logger,
) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisService{
		marketData: marketData,
		optimiser:  optimiser,
		opts:       opts,
		logger:     logger.Named("analysis"),
	}
}

// loadMatrix makes sure every symbol has stored returns and pivots them.
// It returns the bars as well, for callers that report prices.
func (s *AnalysisService) loadMatrix(ctx context.Context, symbols []string, period analysis.Period) (*analysis.ReturnMatrix, []model.PriceBar, error) {
	symbols = normaliseCodes(symbols)
	if len(symbols) == 0 {
		return nil, nil, apperrors.ErrEmptyPortfolio
	}
	bars, err := s.marketData.EnsureReturns(ctx, symbols, string(period))
	if err != nil {
		return nil, nil, err
	}

	observations := make([]model.ReturnObservation, 0, len(bars))
	for _, b := range bars {
		if o, ok := b.Observation(); ok {
			observations = append(observations, o)
		}
	}
	matrix, err := analysis.Pivot(observations)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToComputeStats, err)
	}

	present := make(map[string]bool, len(matrix.Symbols))
	for _, symbol := range matrix.Symbols {
		present[symbol] = true
	}
	for _, symbol := range symbols {
		if !present[symbol] {
			return nil, nil, fmt.Errorf("%w: no returns for %s", apperrors.ErrInsufficientData, symbol)
		}
	}
	return matrix, bars, nil
}

// Optimise derives weights from the holdings, loads (and if necessary fetches) the return
// series of every symbol and reports per-symbol statistics, the statistics of the current
// allocation and the efficient frontier.
func (s *AnalysisService) Optimise(ctx context.Context, holdings []model.Holding, period analysis.Period) (*model.OptimisationReport, error) {
	if err := validateHoldings(holdings); err != nil {
		return nil, err
	}
	if _, ok := period.PeriodsPerYear(); !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidPeriod, period)
	}

	rates, err := s.marketData.ConversionRates(ctx, holdingCurrencies(holdings))
	if err != nil {
		return nil, err
	}
	weights := ValueProportions(holdings, rates)

	matrix, bars, err := s.loadMatrix(ctx, holdingSymbols(holdings), period)
	if err != nil {
		return nil, err
	}

	stats, err := newSymbolStats(matrix, period)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToComputeStats, err)
	}

	frontier, err := s.frontier(ctx, matrix, period)
	if err != nil {
		return nil, err
	}

	report := &model.OptimisationReport{
		Period:              string(period),
		Weights:             weights,
		OptimisationResults: frontier.Points,
		SkippedSamples:      make([]model.SkippedSample, len(frontier.Skipped)),
		HistoricalData:      historicalData(bars),
		StockStats:          stats.report(),
		NamedPortfolios:     make(map[string]model.NamedPortfolio, 3),
	}
	for i, skipped := range frontier.Skipped {
		report.SkippedSamples[i] = model.SkippedSample{Gamma: skipped.Gamma, Reason: skipped.Reason}
	}

	report.PortfolioStats, err = s.portfolioStats(matrix, stats, weights, period)
	if err != nil {
		return nil, err
	}
	report.NamedPortfolios[PortfolioCurrent] = model.NamedPortfolio{Weights: weights, Stats: report.PortfolioStats}

	if len(frontier.Points) > 0 {
		mvp := frontier.Points[0]
		named, err := s.namedPortfolio(matrix, stats, mvp.Weights, period)
		if err != nil {
			return nil, err
		}
		report.NamedPortfolios[PortfolioMinimumVariance] = named
	}
	if best, _, ok := optimisation.MaxSharpe(frontier.Points, s.opts.RiskFreeRate); ok {
		named, err := s.namedPortfolio(matrix, stats, best.Weights, period)
		if err != nil {
			return nil, err
		}
		report.NamedPortfolios[PortfolioMaximumSharpe] = named
	}

	s.logger.Info("portfolio optimised",
		zap.Strings("symbols", matrix.Symbols),
		zap.String("period", string(period)),
		zap.Int("frontier_points", len(frontier.Points)),
		zap.Int("skipped_samples", len(frontier.Skipped)),
	)
	return report, nil
}

// Frontier traces the efficient frontier of a set of symbols.
func (s *AnalysisService) Frontier(ctx context.Context, symbols []string, period analysis.Period) (*optimisation.FrontierResult, error) {
	matrix, _, err := s.loadMatrix(ctx, symbols, period)
	if err != nil {
		return nil, err
	}
	return s.frontier(ctx, matrix, period)
}

func (s *AnalysisService) frontier(ctx context.Context, matrix *analysis.ReturnMatrix, period analysis.Period) (*optimisation.FrontierResult, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	result, err := s.optimiser.FrontierFromMatrix(ctx, matrix, period)
	if err != nil {
		if errors.Is(err, analysis.ErrUnsupportedPeriod) {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidPeriod, err)
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToOptimise, err)
	}
	return result, nil
}

// Drawdowns returns the drawdown of every symbol and, when weights are given, of the
// weighted portfolio.
func (s *AnalysisService) Drawdowns(ctx context.Context, symbols []string, weights []model.Weight, period analysis.Period) (*model.DrawdownReport, error) {
	matrix, _, err := s.loadMatrix(ctx, symbols, period)
	if err != nil {
		return nil, err
	}
	perSymbol, err := matrix.SymbolDrawdowns()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToGetDrawdown, err)
	}
	report := &model.DrawdownReport{Symbols: perSymbol}
	if len(weights) > 0 {
		episode, err := matrix.PortfolioDrawdown(model.WeightMap(weights))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToGetDrawdown, err)
		}
		report.Portfolio = &episode
	}
	return report, nil
}

// FrontierChart renders the efficient frontier of a set of symbols as a PNG.
func (s *AnalysisService) FrontierChart(ctx context.Context, symbols []string, period analysis.Period) ([]byte, error) {
	result, err := s.Frontier(ctx, symbols, period)
	if err != nil {
		return nil, err
	}
	png, err := charts.FrontierPNG(result.Points)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRenderChart, err)
	}
	return png, nil
}

// DrawdownChart renders per-symbol drawdowns, plus the portfolio's when weights are given,
// as a PNG.
func (s *AnalysisService) DrawdownChart(ctx context.Context, symbols []string, weights []model.Weight, period analysis.Period) ([]byte, error) {
	report, err := s.Drawdowns(ctx, symbols, weights, period)
	if err != nil {
		return nil, err
	}
	series := make(map[string]model.DrawdownEpisode, len(report.Symbols)+1)
	for symbol, episode := range report.Symbols {
		series[symbol] = episode
	}
	if report.Portfolio != nil {
		series["portfolio"] = *report.Portfolio
	}
	png, err := charts.DrawdownPNG("Drawdown", series)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRenderChart, err)
	}
	return png, nil
}

func (s *AnalysisService) namedPortfolio(matrix *analysis.ReturnMatrix, stats *symbolStats, weights []model.Weight, period analysis.Period) (model.NamedPortfolio, error) {
	ps, err := s.portfolioStats(matrix, stats, weights, period)
	if err != nil {
		return model.NamedPortfolio{}, err
	}
	return model.NamedPortfolio{Weights: weights, Stats: ps}, nil
}

// portfolioStats computes the annualised statistics and drawdown of one allocation.
// An undefined Sharpe ratio is reported, not invented.
func (s *AnalysisService) portfolioStats(matrix *analysis.ReturnMatrix, stats *symbolStats, weights []model.Weight, period analysis.Period) (model.PortfolioStats, error) {
	avgReturn := analysis.PortfolioReturn(weights, stats.avgReturn)
	stdDev, err := analysis.PortfolioStdDev(weights, stats.stdDev, stats.corr)
	if err != nil {
		return model.PortfolioStats{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToComputeStats, err)
	}
	weightMap := model.WeightMap(weights)
	geometric, err := analysis.ConvertMean(matrix.GeometricMean(weightMap), period, analysis.Yearly)
	if err != nil {
		return model.PortfolioStats{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToComputeStats, err)
	}

	ps := model.PortfolioStats{
		StdDev:        model.Float(stdDev),
		AvgReturn:     model.Float(avgReturn),
		GeometricMean: model.Float(geometric),
	}
	if math.IsNaN(stdDev) || math.IsNaN(avgReturn) {
		ps.SharpeError = apperrors.ErrInsufficientData.Error()
	} else if sharpe, err := analysis.SharpeRatio(avgReturn, stdDev, s.opts.RiskFreeRate); err != nil {
		ps.SharpeError = err.Error()
	} else {
		v := model.Float(sharpe)
		ps.SharpeRatio = &v
	}

	episode, err := matrix.PortfolioDrawdown(weightMap)
	if err != nil {
		return model.PortfolioStats{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToGetDrawdown, err)
	}
	ps.Drawdown = &episode
	return ps, nil
}

// symbolStats holds annualised per-symbol statistics of one return matrix.
type symbolStats struct {
	stdDev        map[string]float64
	avgReturn     map[string]float64
	geometricMean map[string]float64
	semivariance  map[string]float64
	corr          *analysis.SymbolMatrix
}

func newSymbolStats(matrix *analysis.ReturnMatrix, period analysis.Period) (*symbolStats, error) {
	stdDev, err := analysis.ConvertStdDevs(matrix.StdDevs(), period, analysis.Yearly)
	if err != nil {
		return nil, err
	}
	avgReturn, err := analysis.ConvertMeans(matrix.Means(), period, analysis.Yearly)
	if err != nil {
		return nil, err
	}
	geometric := make(map[string]float64, len(matrix.Symbols))
	for _, symbol := range matrix.Symbols {
		g, err := matrix.SymbolGeometricMean(symbol)
		if err != nil {
			return nil, err
		}
		geometric[symbol] = g
	}
	geometric, err = analysis.ConvertMeans(geometric, period, analysis.Yearly)
	if err != nil {
		return nil, err
	}
	return &symbolStats{
		stdDev:        stdDev,
		avgReturn:     avgReturn,
		geometricMean: geometric,
		semivariance:  matrix.Semivariances(),
		corr:          matrix.Correlation(),
	}, nil
}

func (s *symbolStats) report() model.StockStats {
	return model.StockStats{
		StdDev:        model.FloatMap(s.stdDev),
		AvgReturn:     model.FloatMap(s.avgReturn),
		GeometricMean: model.FloatMap(s.geometricMean),
		Semivariance:  model.FloatMap(s.semivariance),
		CorrMatrix:    model.FloatMatrix(s.corr.ToMap()),
	}
}

// historicalData groups bars per symbol, in date order.
func historicalData(bars []model.PriceBar) map[string][]model.HistoricalPrice {
	out := make(map[string][]model.HistoricalPrice)
	for _, b := range bars {
		out[b.Symbol] = append(out[b.Symbol], model.HistoricalPrice{
			TradeDate:     b.TradeDate,
			ClosePrice:    b.ClosePrice,
			ChangePercent: b.ChangePercent,
		})
	}
	for _, rows := range out {
		sort.Slice(rows, func(i, j int) bool { return rows[i].TradeDate.Before(rows[j].TradeDate) })
	}
	return out
}
