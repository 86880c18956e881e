package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/upb/coffee-shop/auth"
	"github.com/upb/coffee-shop/config"
	"github.com/upb/coffee-shop/handlers"
	"github.com/upb/coffee-shop/internal/observability"
	"github.com/upb/coffee-shop/middleware"
	"github.com/upb/coffee-shop/repositories"
	"github.com/upb/coffee-shop/repositories/postgres"
	"github.com/upb/coffee-shop/services"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger
	Redis  *redis.Client

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Drinks    repositories.DrinkRepository
	TxManager repositories.TransactionManager

	// Observability
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	// Auth; KeySet is nil when no identity provider is configured
	KeySet    *auth.KeySetCache
	Verifier  middleware.TokenVerifier
	AuthGuard *middleware.AuthGuard

	// Services and handlers
	DrinkService  *services.DrinkService
	DrinkHandler  *handlers.DrinkHandler
	HealthHandler *handlers.HealthHandler
}

// NewDependencies opens the database described by cfg and wires everything on top of it
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesFromFactory(ctx, cfg, logger, factory)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesFromFactory wires the application around an existing repository factory
func NewDependenciesFromFactory(ctx context.Context, cfg *config.Config, logger *zap.Logger, factory *postgres.RepositoryFactory) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	deps.initRepositories()
	deps.initMetrics()
	deps.initRedis(ctx)
	deps.initAuth()
	deps.initServices()

	logger.Info("all dependencies initialized successfully",
		zap.Bool("auth_enabled", deps.KeySet != nil),
		zap.Bool("shared_key_cache", deps.Redis != nil))
	return deps, nil
}

func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()
	d.Drinks = repos.Drinks
	d.TxManager = d.RepoFactory.GetTransactionManager()
}

func (d *Dependencies) initMetrics() {
	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(d.DB.DB, "drinks"),
	)
	d.Metrics = observability.NewMetrics(d.Registry)
}

// initRedis connects the shared key set cache. Failure degrades to a per-process cache.
func (d *Dependencies) initRedis(ctx context.Context) {
	if d.Config.Redis.URL == "" {
		return
	}

	client, err := auth.NewRedisClient(ctx, d.Config.Redis.URL)
	if err != nil {
		d.Logger.Warn("redis unavailable, key set cache is per process", zap.Error(err))
		return
	}
	d.Redis = client
}

func (d *Dependencies) initAuth() {
	authCfg := d.Config.Auth0
	if !authCfg.Enabled() {
		d.Logger.Warn("AUTH0_DOMAIN not configured, protected routes will reject every request")
		d.Verifier = rejectAllVerifier{}
		d.AuthGuard = middleware.NewAuthGuard(d.Verifier, d.Logger, d.Metrics)
		return
	}

	keyCfg := auth.KeySetConfig{
		JWKSURL:            authCfg.JWKSURL(),
		CacheTTL:           authCfg.JWKSCacheTTL,
		FetchTimeout:       authCfg.JWKSFetchTimeout,
		MinRefreshInterval: authCfg.JWKSMinRefresh,
		Logger:             d.Logger.Named("jwks"),
		Metrics:            d.Metrics,
	}
	if d.Redis != nil {
		keyCfg.Store = auth.NewRedisKeySetStore(d.Redis, keyCfg.JWKSURL)
	}

	d.KeySet = auth.NewKeySetCache(keyCfg)
	d.Verifier = auth.NewVerifier(d.KeySet, auth.VerifierConfig{
		Issuer:     authCfg.Issuer(),
		Audience:   authCfg.Audience,
		Algorithms: authCfg.Algorithms,
		ClockSkew:  authCfg.ClockSkew,
	})
	d.AuthGuard = middleware.NewAuthGuard(d.Verifier, d.Logger.Named("auth"), d.Metrics)

	d.Logger.Info("token verification configured",
		zap.String("issuer", authCfg.Issuer()),
		zap.String("audience", authCfg.Audience),
		zap.Strings("algorithms", authCfg.Algorithms))
}

func (d *Dependencies) initServices() {
	d.DrinkService = services.NewDrinkService(d.Drinks, d.TxManager, d.Logger.Named("drinks"))
	d.DrinkHandler = handlers.NewDrinkHandler(d.DrinkService, d.Logger)

	var keys handlers.KeySetStatter
	if d.KeySet != nil {
		keys = d.KeySet
	}
	d.HealthHandler = handlers.NewHealthHandler(d.DB.DB, keys, d.Logger)
}

// rejectAllVerifier rejects all tokens (used when no identity provider is configured)
type rejectAllVerifier struct{}

func (rejectAllVerifier) Verify(context.Context, string) (*auth.Claims, error) {
	return nil, auth.NewAuthError(auth.ErrCodeUnauthorized, "Authentication is not configured.", nil)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
