package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"wellness-gatekeeper/config"
	"wellness-gatekeeper/database"
	adminapi "wellness-gatekeeper/internal/api/admin"
	"wellness-gatekeeper/internal/api/gatekeeper"
	"wellness-gatekeeper/internal/api/plans"
	stripewebhooks "wellness-gatekeeper/internal/api/stripewebhook"
	"wellness-gatekeeper/internal/api/users"
	routes "wellness-gatekeeper/internal/app/http"
	"wellness-gatekeeper/internal/app/http/middleware"
	"wellness-gatekeeper/internal/auth"
	"wellness-gatekeeper/internal/clock"
	"wellness-gatekeeper/internal/debugreport"
	"wellness-gatekeeper/internal/domain/access"
	"wellness-gatekeeper/internal/infra/cache"
	"wellness-gatekeeper/internal/metrics"
	"wellness-gatekeeper/internal/repository"
	"wellness-gatekeeper/internal/session"
)

func main() {
	cfg, err := config.LoadEnv()
	if err != nil {
		// No logger yet.
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()
	if cfg.DotenvErr != nil {
		logger.Debug("no .env file loaded", zap.Error(cfg.DotenvErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("gatekeeper stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("gatekeeper stopped gracefully")
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := database.Open(cfg.DBURL)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()
	logger.Info("database connected and migrated")

	var profiles repository.ProfileStore = repository.NewGormProfileStore(db)
	planStore := repository.NewGormPlanStore(db)

	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("redis unavailable, profile cache disabled", zap.Error(err))
		} else {
			defer func() { _ = client.Close() }()
			profiles = repository.NewCachedProfileStore(profiles, cache.New(client, "gatekeeper:"), cfg.ProfileCacheTTL, logger)
			logger.Info("profile cache enabled", zap.String("addr", cfg.RedisAddr))
		}
	}

	verifier, err := auth.NewVerifier(ctx, auth.Options{
		JWTSecret:    cfg.JWTSecret,
		OIDCIssuer:   cfg.OIDCIssuer,
		OIDCClientID: cfg.OIDCClientID,
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	clk := clock.System{}
	reporter := debugreport.NewReporter(debugreport.LogSink{Logger: logger.Named("debugreport")}, debugreport.Options{
		Clock:  clk,
		Logger: logger,
	})
	defer reporter.Close()

	catalog := access.DefaultCatalog()
	manager := session.NewManager(session.ManagerConfig{
		Entitlement: session.EntitlementConfig{
			Store:           profiles,
			Catalog:         catalog,
			Clock:           clk,
			Logger:          logger.Named("session"),
			Reporter:        reporter,
			Metrics:         m,
			RecheckInterval: cfg.RecheckInterval,
			CoalesceWindow:  cfg.CoalesceWindow,
		},
		Gate:    access.NewRouteGate(access.DefaultRouteGateConfig()),
		IdleTTL: cfg.SessionIdleTTL,
	})
	defer manager.Close()
	go manager.Run(ctx)

	var (
		prices plans.PriceSource
		subs   stripewebhooks.SubscriptionSource
	)
	if cfg.StripeEnabled() {
		prices = plans.NewStripePrices(cfg.StripeSecretKey)
		subs = stripewebhooks.NewStripeSubscriptions(cfg.StripeSecretKey)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, plan sync disabled")
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.ZapLogger(logger.Named("http")),
		m.GinMiddleware(),
		gin.Recovery(),
		cors.New(cors.Config{
			AllowOrigins:     []string{cfg.CORSOrigin},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	routes.RegisterRoutes(r, routes.Deps{
		Verifier:   verifier,
		Sessions:   manager,
		Profiles:   profiles,
		Logger:     logger,
		Users:      users.NewHandler(profiles, manager, clk, cfg.TrialLength(), logger),
		Gatekeeper: gatekeeper.NewHandler(manager, logger),
		Admin:      adminapi.NewHandler(profiles, catalog, clk, logger),
		Plans:      plans.NewHandler(planStore, prices, cfg.StripeProductID, logger),
		Webhook:    stripewebhooks.NewHandler(cfg.StripeWebhookSecret, profiles, planStore, subs, manager, clk, logger),
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gatekeeper listening", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
