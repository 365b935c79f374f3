package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shadi-events/gatehouse/pkg/api"
	"github.com/shadi-events/gatehouse/pkg/audit"
	"github.com/shadi-events/gatehouse/pkg/authn"
	"github.com/shadi-events/gatehouse/pkg/config"
	"github.com/shadi-events/gatehouse/pkg/gatehouse"
	"github.com/shadi-events/gatehouse/pkg/idp"
	"github.com/shadi-events/gatehouse/pkg/observability"
	"github.com/shadi-events/gatehouse/pkg/principal"
	"github.com/shadi-events/gatehouse/pkg/scope"
	"github.com/shadi-events/gatehouse/pkg/sso"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Postgres
	db, err := sql.Open("postgres", cfg.Storage.PostgresURL)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.Storage.PostgresMaxConns)
	defer db.Close()

	ctx := context.Background()
	if err := principal.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("principal migrations failed")
		os.Exit(1)
	}
	if err := scope.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("scope migrations failed")
		os.Exit(1)
	}
	if err := audit.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("audit migrations failed")
		os.Exit(1)
	}

	auditLog := audit.NewLogger(os.Stdout).WithSink(audit.NewStore(db))

	// Redis principal cache (optional)
	var redisClient *redis.Client
	var cache *principal.Cache
	if cfg.Storage.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Storage.RedisURL)
		if err != nil {
			logger.WithError(err).Error("invalid redis URL")
			os.Exit(1)
		}
		if cfg.Storage.RedisPassword != "" {
			opts.Password = cfg.Storage.RedisPassword
		}
		opts.DB = cfg.Storage.RedisDB
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		cache = principal.NewCache(redisClient, cfg.Storage.CacheTTL)
	}

	// Identity provider client and token validation
	provider := idp.NewClient(idp.Config{
		Domain:         cfg.Provider.Domain,
		ClientID:       cfg.Provider.ClientID,
		ClientSecret:   cfg.Provider.ClientSecret,
		RequestTimeout: cfg.Provider.RequestTimeout,
	}, logger, metrics)

	keyCache := authn.NewKeyCache(provider, cfg.Provider.SigningKeyTTL, metrics)
	validator := authn.NewValidator(authn.ValidatorConfig{
		IssuerDomain:    cfg.Provider.Domain,
		Audience:        cfg.Provider.Audience,
		ClaimsNamespace: cfg.Provider.ClaimsNamespace,
	}, keyCache, metrics)

	// Stores and the sync pipeline
	principals := principal.NewStore(db)
	scopes := scope.NewStore(db)
	orch := principal.NewOrchestrator(provider, principals, scopes, logger, metrics, auditLog).WithCache(cache)
	state := principal.NewStateStore(principals, cache, orch, cfg.Authz.StalenessWindow, logger, metrics)

	engine := gatehouse.NewService(validator, state, scope.NewResolver(scopes, logger), logger, metrics, auditLog)

	apiServer := api.NewServer(engine, principals, orch, scopes, logger, metrics, auditLog)

	// Browser login flow (optional; API clients use bearer tokens)
	if cfg.Login.Enabled() {
		flow, err := sso.NewFlow(ctx, sso.Config{
			IssuerURL:    cfg.Provider.IssuerURL(),
			ClientID:     cfg.Login.ClientID,
			ClientSecret: cfg.Login.ClientSecret,
			RedirectURL:  cfg.Login.RedirectURL,
		})
		if err != nil {
			logger.WithError(err).Error("failed to initialize login flow")
			os.Exit(1)
		}
		apiServer.EnableLogin(flow)
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes
	healthMux := http.NewServeMux()
	health := observability.NewHealthChecker(db, redisClient)
	observability.RegisterHealthRoutes(healthMux, health)
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler(registry))
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", server.Addr).Info("gatehouse listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown failed")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("health server shutdown failed")
	}
}
