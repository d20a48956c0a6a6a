package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/maxpower-app/wallet-backend/internal/api/handler"
	"github.com/maxpower-app/wallet-backend/internal/api/middleware"
	"github.com/maxpower-app/wallet-backend/internal/api/spec"
	"github.com/maxpower-app/wallet-backend/internal/config"
	"github.com/maxpower-app/wallet-backend/internal/domain"
	"github.com/maxpower-app/wallet-backend/internal/idempotency"
	"github.com/maxpower-app/wallet-backend/internal/service"
	"github.com/maxpower-app/wallet-backend/internal/store"
)

// Services bundles the wired service layer for the router.
type Services struct {
	Accounts   *service.AccountService
	Ledger     *service.LedgerService
	Wallet     *service.WalletService
	Settlement *service.SettlementService
	Credit     *service.CreditService
	Settings   *service.SettingsService
}

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     store.Store
	services  Services
	idemStore *idempotency.Store
}

func NewRouter(cfg *config.Config, logger *zap.Logger, st store.Store, services Services, idemStore *idempotency.Store) *Router {
	return &Router{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		services:  services,
		idemStore: idemStore,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.store)
	accountHandler := handler.NewAccountHandler(api.services.Accounts, api.services.Ledger)
	walletHandler := handler.NewWalletHandler(api.services.Wallet, api.services.Settings)
	adminHandler := handler.NewAdminHandler(api.services.Settlement, api.services.Credit, api.services.Ledger, api.services.Settings)

	// Operational surface
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Get("/v1/referrals/{code}", accountHandler.CheckReferral)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Post("/v1/accounts", accountHandler.CreateAccount)
		r.Get("/v1/accounts/me", accountHandler.Me)
		r.Get("/v1/accounts/me/transactions", accountHandler.Transactions)
		r.Get("/v1/accounts/me/referrals", accountHandler.ReferralCount)

		r.Get("/v1/wallet/payment-number", walletHandler.PaymentNumber)
		r.With(middleware.IdempotencyMiddleware(api.idemStore, api.logger)).
			Post("/v1/wallet/activation", walletHandler.SubmitActivation)
		r.With(middleware.IdempotencyMiddleware(api.idemStore, api.logger)).
			Post("/v1/wallet/withdrawals", walletHandler.RequestWithdrawal)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAdmin))

			r.Get("/v1/admin/transactions", adminHandler.ListTransactions)
			r.Post("/v1/admin/transactions/{id}/approve", adminHandler.Approve)
			r.Post("/v1/admin/transactions/{id}/reject", adminHandler.Reject)
			r.With(middleware.IdempotencyMiddleware(api.idemStore, api.logger)).
				Post("/v1/admin/credits", adminHandler.Credit)
			r.Get("/v1/admin/settings", adminHandler.Settings)
			r.Put("/v1/admin/settings/payment-number", adminHandler.SetPaymentNumber)
		})
	})

	return r
}
