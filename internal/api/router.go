package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/analysis"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/api/handlers"
	custommiddleware "github.com/ndewijer/Portfolio-Analysis-Backend/internal/api/middleware"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/config"
	"github.com/ndewijer/Portfolio-Analysis-Backend/internal/service"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	systemService *service.SystemService,
	analysisService *service.AnalysisService,
	marketDataService *service.MarketDataService,
	cfg *config.Config,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(logger))
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	period := analysis.Period(cfg.Optimisation.Period)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(systemService)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		// Everything below may call Yahoo or write to the database.
		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.APIKey(cfg.Security.APIKey))

			r.Route("/portfolio", func(r chi.Router) {
				portfolioHandler := handlers.NewPortfolioHandler(analysisService, period)
				r.Post("/optimise", portfolioHandler.Optimise)
				r.Post("/drawdown", portfolioHandler.Drawdown)
				r.Get("/frontier/chart", portfolioHandler.FrontierChart)
				r.Get("/drawdown/chart", portfolioHandler.DrawdownChart)
			})

			instrumentHandler := handlers.NewInstrumentHandler(marketDataService, period)
			r.Route("/instruments/equities", func(r chi.Router) {
				r.Post("/quotes", instrumentHandler.Quotes)
				r.Post("/current_price", instrumentHandler.CurrentPrice)
			})
			r.Post("/currencies", instrumentHandler.Currencies)
		})
	})

	return r
}
