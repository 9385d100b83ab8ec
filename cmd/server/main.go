package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/api"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/config"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/database"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/logger"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/optimisation"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/repository"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/service"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/version"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/yahoo"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx := context.Background()

	// Open database connection
	db, err := database.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	zl.Info("connected to database", zap.String("driver", cfg.Database.Driver), zap.String("version", version.Version))

	// Create repositories
	returnRepo := repository.NewReturnRepository(db)
	currencyRepo := repository.NewCurrencyRepository(db)

	yahooClient := yahoo.NewFinanceClient(
		yahoo.WithHTTPClient(&http.Client{Timeout: cfg.MarketData.HTTPTimeout}),
	)

	// Create services
	systemService := service.NewSystemService(db, map[string]bool{
		"charts":            true,
		"scheduled_refresh": cfg.MarketData.RefreshEnabled,
		"api_key":           cfg.Security.APIKey != "",
	})
	marketDataService := service.NewMarketDataService(returnRepo, currencyRepo, yahooClient, zl)
	optimiser := optimisation.NewOptimiser(optimisation.Config{
		Samples:       cfg.Optimisation.Samples,
		GammaMax:      cfg.Optimisation.GammaMax,
		GammaMin:      cfg.Optimisation.GammaMin,
		Workers:       cfg.Optimisation.Workers,
		MaxIterations: cfg.Optimisation.MaxIterations,
		Tolerance:     cfg.Optimisation.Tolerance,
	}, zl)
	analysisService := service.NewAnalysisService(marketDataService, optimiser, service.AnalysisOptions{
		RiskFreeRate: cfg.Optimisation.RiskFreeRate,
		Timeout:      cfg.Optimisation.Timeout,
	}, zl)

	var scheduler *service.RefreshScheduler
	if cfg.MarketData.RefreshEnabled {
		scheduler, err = service.NewRefreshScheduler(marketDataService, cfg.MarketData.RefreshCron, cfg.Optimisation.Period, zl)
		if err != nil {
			return err
		}
		scheduler.Start()
	}

	// Create router
	router := api.NewRouter(systemService, analysisService, marketDataService, cfg, zl)

	// Create HTTP server. The write timeout leaves room for a full frontier sweep that
	// first has to fetch missing history.
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Optimisation.Timeout + 2*cfg.MarketData.HTTPTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		zl.Info("starting server", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	zl.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			zl.Warn("refresh still running at shutdown", zap.Error(err))
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	zl.Info("server exited")
	return nil
}
