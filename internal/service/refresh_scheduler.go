package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// refreshTimeout bounds a single scheduled refresh.
const refreshTimeout = 10 * time.Minute

// RefreshScheduler periodically reloads the history of every stored symbol so that analyses
// run on recent data without fetching on the request path.
type RefreshScheduler struct {
	cron       *cron.Cron
	marketData *MarketDataService
	period     string
	logger     *zap.Logger
}

// NewRefreshScheduler creates a scheduler running a refresh of period on the standard
// five-field cron schedule spec. Overlapping runs are skipped.
func NewRefreshScheduler(
	marketData *MarketDataService,
	spec string,
	period string,
	logger *zap.Logger,
) (*RefreshScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("refresh")
	cl := cronLogger{logger.Sugar()}

	s := &RefreshScheduler{
		cron:       cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		marketData: marketData,
		period:     period,
		logger:     logger,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the scheduler in the background.
func (s *RefreshScheduler) Start() {
	s.cron.Start()
	s.logger.Info("refresh scheduler started", zap.String("period", s.period))
}

// Stop stops scheduling and waits for a running refresh to finish or ctx to expire.
func (s *RefreshScheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce refreshes every stored symbol now and returns how many were refreshed.
func (s *RefreshScheduler) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.marketData.RefreshAll(ctx, s.period)
	if err != nil {
		return 0, err
	}
	s.logger.Info("refreshed stored symbols", zap.Int("symbols", n), zap.Duration("duration", time.Since(start)))
	return n, nil
}

func (s *RefreshScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("scheduled refresh failed", zap.Error(err))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
