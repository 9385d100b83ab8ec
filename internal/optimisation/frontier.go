// Package optimisation traces the long-only efficient frontier by sweeping a risk-aversion
// parameter through a mean-variance quadratic program.
package optimisation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/analysis"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/model"
)

// Defaults for the risk-aversion sweep.
const (
	DefaultSamples       = 200
	DefaultGammaMax      = 1e3
	DefaultGammaMin      = 1e-3
	DefaultMaxIterations = 20000
	DefaultTolerance     = 1e-10
)

// ErrNoSymbols is returned when the return series holds no instruments.
var ErrNoSymbols = errors.New("return series contains no symbols")

// Config controls the sweep. Zero fields fall back to the defaults above.
type Config struct {
	Samples       int
	GammaMax      float64
	GammaMin      float64
	Workers       int
	MaxIterations int
	Tolerance     float64
}

// SkippedSample records a risk-aversion value whose problem could not be solved.
type SkippedSample struct {
	Gamma  float64 `json:"gamma"`
	Reason string  `json:"reason"`
	Err    error   `json:"-"`
}

// FrontierResult is the deduplicated frontier in sweep order plus the samples that failed.
type FrontierResult struct {
	Points  []model.FrontierPoint
	Skipped []SkippedSample
}

// Optimiser computes efficient frontiers. It holds no per-call state and is safe for
// concurrent use.
type Optimiser struct {
	cfg    Config
	logger *zap.Logger
}

// NewOptimiser creates an Optimiser; a nil logger disables logging.
func NewOptimiser(cfg Config, logger *zap.Logger) *Optimiser {
	if cfg.Samples <= 0 {
		cfg.Samples = DefaultSamples
	}
	if cfg.GammaMax <= 0 {
		cfg.GammaMax = DefaultGammaMax
	}
	if cfg.GammaMin <= 0 {
		cfg.GammaMin = DefaultGammaMin
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimiser{cfg: cfg, logger: logger.Named("optimiser")}
}

// GammaGrid returns samples risk-aversion values spaced evenly in log10 from max down to
// min, both inclusive.
func GammaGrid(samples int, max, min float64) []float64 {
	if samples <= 0 {
		return nil
	}
	if samples == 1 {
		return []float64{max}
	}
	hi, lo := math.Log10(max), math.Log10(min)
	stepSize := (lo - hi) / float64(samples-1)
	grid := make([]float64, samples)
	for i := range grid {
		grid[i] = math.Pow(10, hi+float64(i)*stepSize)
	}
	grid[samples-1] = min
	return grid
}

// Frontier pivots the observations and traces the efficient frontier. period labels the
// sampling frequency of the observations and is used only to annualise results.
func (o *Optimiser) Frontier(ctx context.Context, observations []model.ReturnObservation, period analysis.Period) (*FrontierResult, error) {
	matrix, err := analysis.Pivot(observations)
	if err != nil {
		return nil, err
	}
	return o.FrontierFromMatrix(ctx, matrix, period)
}

// FrontierFromMatrix traces the efficient frontier of an already pivoted return matrix.
//
// For every γ in the grid it maximises wᵀμ − γ·wᵀΣw over fully invested long-only weights.
// A γ that cannot be solved is recorded in Skipped and does not stop the sweep. Points are
// returned in descending γ order with duplicates on (std-dev, mean) rounded to three
// decimals removed, so the first point is the minimum-variance portfolio.
func (o *Optimiser) FrontierFromMatrix(ctx context.Context, matrix *analysis.ReturnMatrix, period analysis.Period) (*FrontierResult, error) {
	if len(matrix.Symbols) == 0 {
		return nil, ErrNoSymbols
	}
	if _, err := analysis.ConvertMean(0, period, analysis.Yearly); err != nil {
		return nil, err
	}

	cov := matrix.Covariance()
	problem, err := newMeanVarianceProblem(matrix.MeanVector(), cov.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to build optimisation problem: %w", err)
	}

	grid := GammaGrid(o.cfg.Samples, o.cfg.GammaMax, o.cfg.GammaMin)
	outcomes := make([]sampleOutcome, len(grid))

	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)
	for i, gamma := range grid {
		g.Go(func() error {
			outcomes[i] = o.solveSample(ctx, problem, matrix, gamma, period)
			return nil
		})
	}
	_ = g.Wait()

	result := &FrontierResult{}
	points := make([]model.FrontierPoint, 0, len(outcomes))
	for _, out := range outcomes {
		if out.err != nil {
			o.logger.Warn("frontier sample skipped", zap.Float64("gamma", out.gamma), zap.Error(out.err))
			result.Skipped = append(result.Skipped, SkippedSample{Gamma: out.gamma, Reason: out.err.Error(), Err: out.err})
			continue
		}
		points = append(points, out.point)
	}
	result.Points = Dedupe(points)

	o.logger.Debug("frontier traced",
		zap.Int("symbols", len(matrix.Symbols)),
		zap.Int("samples", len(grid)),
		zap.Int("points", len(result.Points)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

type sampleOutcome struct {
	gamma float64
	point model.FrontierPoint
	err   error
}

func (o *Optimiser) solveSample(
	ctx context.Context,
	problem *meanVarianceProblem,
	matrix *analysis.ReturnMatrix,
	gamma float64,
	period analysis.Period,
) sampleOutcome {
	out := sampleOutcome{gamma: gamma}
	if err := ctx.Err(); err != nil {
		out.err = err
		return out
	}

	w, err := problem.solve(ctx, gamma, o.cfg.MaxIterations, o.cfg.Tolerance)
	if err != nil {
		out.err = err
		return out
	}

	arithmeticMean, err := analysis.ConvertMean(problem.expectedReturn(w), period, analysis.Yearly)
	if err != nil {
		out.err = err
		return out
	}
	stdDev, err := analysis.ConvertStdDev(math.Sqrt(math.Max(problem.variance(w), 0)), period, analysis.Yearly)
	if err != nil {
		out.err = err
		return out
	}

	weights := make([]model.Weight, len(w))
	for i, symbol := range matrix.Symbols {
		weights[i] = model.Weight{Symbol: symbol, ValueProportion: w[i]}
	}
	geometricMean, err := analysis.ConvertMean(matrix.GeometricMean(model.WeightMap(weights)), period, analysis.Yearly)
	if err != nil {
		out.err = err
		return out
	}

	out.point = model.FrontierPoint{
		Gamma:          gamma,
		StdDev:         stdDev,
		ArithmeticMean: arithmeticMean,
		GeometricMean:  geometricMean,
		Weights:        weights,
	}
	return out
}

// Dedupe drops points whose standard deviation and arithmetic mean round to the same three
// decimals as an earlier point, keeping the first occurrence.
func Dedupe(points []model.FrontierPoint) []model.FrontierPoint {
	type key struct{ stdDev, mean float64 }
	seen := make(map[key]struct{}, len(points))
	out := make([]model.FrontierPoint, 0, len(points))
	for _, p := range points {
		k := key{round3(p.StdDev), round3(p.ArithmeticMean)}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}

func round3(v float64) float64 {
	return math.RoundToEven(v*1000) / 1000
}

// MaxSharpe returns the frontier point with the highest Sharpe ratio. Points with zero
// standard deviation have no Sharpe ratio and are ignored. ok is false when no point qualifies.
func MaxSharpe(points []model.FrontierPoint, riskFreeRate float64) (best model.FrontierPoint, ratio float64, ok bool) {
	for _, p := range points {
		r, err := analysis.SharpeRatio(p.ArithmeticMean, p.StdDev, riskFreeRate)
		if err != nil || math.IsNaN(r) {
			continue
		}
		if !ok || r > ratio {
			best, ratio, ok = p, r, true
		}
	}
	return best, ratio, ok
}
