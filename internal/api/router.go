package api

import (
	"github.com/autogcm/rewards-ledger/internal/api/handler"
	"github.com/autogcm/rewards-ledger/internal/api/middleware"
	"github.com/autogcm/rewards-ledger/internal/api/spec"
	"github.com/autogcm/rewards-ledger/internal/config"
	"github.com/autogcm/rewards-ledger/internal/idempotency"
	"github.com/autogcm/rewards-ledger/internal/repository"
	"github.com/autogcm/rewards-ledger/internal/service"
	"github.com/autogcm/rewards-ledger/internal/snapshot"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *pgxpool.Pool
	store     *repository.Store
	idemStore *idempotency.Store
	redis     redis.Cmdable
}

func NewRouter(cfg *config.Config, logger *zap.Logger, db *pgxpool.Pool, store *repository.Store, idemStore *idempotency.Store, redisClient redis.Cmdable) *Router {
	return &Router{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		store:     store,
		idemStore: idemStore,
		redis:     redisClient,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))

	// Services
	snapshots := snapshot.NewStore(api.redis, api.cfg.SnapshotTTL)
	balanceSvc := service.NewBalanceService(api.store, snapshots)
	withdrawalSvc := service.NewWithdrawalService(api.store)
	reviewSvc := service.NewReviewService(api.store)

	// Handlers
	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	balanceHandler := handler.NewBalanceHandler(balanceSvc)
	withdrawalHandler := handler.NewWithdrawalHandler(withdrawalSvc, balanceSvc, reviewSvc)

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Get("/healthz", healthHandler.Live)
		r.Get("/readyz", healthHandler.Ready)
		r.Get("/openapi.yaml", spec.OpenAPIHandler())
	})
	r.Handle("/metrics", promhttp.Handler())

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Get("/v1/balance", balanceHandler.GetBalance)
		r.Get("/v1/profile", balanceHandler.GetProfile)

		r.Get("/v1/withdrawals", withdrawalHandler.ListWithdrawals)
		r.With(middleware.IdempotencyMiddleware(api.idemStore, api.logger)).
			Post("/v1/withdrawals", withdrawalHandler.CreateWithdrawal)

		r.With(middleware.RequireRole("admin")).
			Patch("/v1/withdrawals/{id}/status", withdrawalHandler.ResolveWithdrawal)
	})

	return r
}
