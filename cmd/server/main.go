package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finbank/backend/internal/application/account"
	"github.com/finbank/backend/internal/application/catalog"
	"github.com/finbank/backend/internal/application/customer"
	"github.com/finbank/backend/internal/infrastructure/auth"
	"github.com/finbank/backend/internal/infrastructure/broker"
	"github.com/finbank/backend/internal/infrastructure/cache"
	"github.com/finbank/backend/internal/infrastructure/clock"
	"github.com/finbank/backend/internal/infrastructure/config"
	"github.com/finbank/backend/internal/infrastructure/logger"
	"github.com/finbank/backend/internal/infrastructure/persistence"
	"github.com/finbank/backend/internal/infrastructure/ratelimit"
	"github.com/finbank/backend/internal/interfaces/http/handler"
	"github.com/finbank/backend/internal/interfaces/http/middleware"
	"github.com/finbank/backend/internal/interfaces/http/router"
	"github.com/finbank/backend/internal/validation"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting gateway",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	clk := clock.System{}

	// Shared cache store
	store, err := cache.NewRedisStore(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("error closing redis", zap.Error(err))
		}
	}()
	log.Info("redis connected")

	// Database and repositories
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&persistence.DatabaseConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, gormLog)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database", zap.Error(err))
		}
	}()
	if err := db.Migrate(); err != nil {
		log.Fatal("failed to migrate schema", zap.Error(err))
	}
	log.Info("database connected")

	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)
	accountRepo := persistence.NewGormAccountRepository(db.DB)

	// Authorities on the shared store
	jwtService := auth.NewJWTService(auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	}, clk)
	sessions := auth.NewSessionAuthority(store, auth.SessionConfig{
		Lifetime:    cfg.Session.Lifetime,
		IdleTimeout: cfg.Session.IdleTimeout,
	}, log)
	tokens := auth.NewTokenAuthority(store, cfg.Token.Expiration, log)
	limiter := ratelimit.NewLimiter(store, log)

	// Broker, correlators, responders
	bus, err := broker.NewNATSBus(broker.NATSConfig{
		URL:           cfg.NATS.URL,
		Name:          cfg.App.Name,
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to nats", zap.Error(err))
	}
	defer bus.Close()
	log.Info("nats connected", zap.String("url", cfg.NATS.URL))

	customerService := customer.NewService(customerRepo)
	catalogService := catalog.NewService(productRepo)

	customerResponder := validation.NewResponder(bus, validation.ResponderConfig{
		RequestSubject: validation.CustomerRequestSubject,
		ReplySubject:   validation.CustomerResponseSubject,
		Lookup:         customerService.Lookup,
		LookupTimeout:  cfg.Validation.LookupTimeout,
	}, clk, log)
	if err := customerResponder.Start(); err != nil {
		log.Fatal("failed to start customer responder", zap.Error(err))
	}
	defer customerResponder.Stop()

	productResponder := validation.NewResponder(bus, validation.ResponderConfig{
		RequestSubject: validation.ProductRequestSubject,
		ReplySubject:   validation.ProductResponseSubject,
		Lookup:         catalogService.Lookup,
		LookupTimeout:  cfg.Validation.LookupTimeout,
	}, clk, log)
	if err := productResponder.Start(); err != nil {
		log.Fatal("failed to start product responder", zap.Error(err))
	}
	defer productResponder.Stop()

	customerCorrelator, err := validation.NewCorrelator(bus,
		validation.CustomerRequestSubject, validation.CustomerResponseSubject,
		validation.WithClock(clk), validation.WithLogger(log))
	if err != nil {
		log.Fatal("failed to start customer correlator", zap.Error(err))
	}
	defer func() { _ = customerCorrelator.Close() }()

	productCorrelator, err := validation.NewCorrelator(bus,
		validation.ProductRequestSubject, validation.ProductResponseSubject,
		validation.WithClock(clk), validation.WithLogger(log))
	if err != nil {
		log.Fatal("failed to start product correlator", zap.Error(err))
	}
	defer func() { _ = productCorrelator.Close() }()

	accountService := account.NewService(accountRepo, customerCorrelator, productCorrelator, cfg.Validation.CallTimeout)

	// HTTP engine and middleware chain
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("failed to set trusted proxies", zap.Error(err))
		}
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.AccessLog(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS(corsConfig))
	if cfg.HTTP.RateLimitEnabled {
		engine.Use(middleware.RateLimit(limiter, middleware.RateLimitConfig{
			Enabled:     true,
			MaxRequests: cfg.HTTP.RateLimitRequests,
			Window:      cfg.HTTP.RateLimitWindow,
		}, log))
		log.Info("rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}
	engine.Use(middleware.NewIdentityFilter(jwtService, sessions, log).Handler())

	// Gateway-local endpoints
	systemHandler := handler.NewSystemHandler(version, map[string]handler.CheckFunc{
		"cache": store.Ping,
		"broker": func(context.Context) error {
			if !bus.Healthy() {
				return broker.ErrClosed
			}
			return nil
		},
		"database": func(context.Context) error { return db.Ping() },
	})
	systemHandler.Register(engine)

	authGroup := engine.Group("/auth")
	if cfg.HTTP.AuthRateLimitEnabled {
		authGroup.Use(middleware.RateLimit(limiter, middleware.RateLimitConfig{
			Enabled:     true,
			MaxRequests: cfg.HTTP.AuthRateLimitRequests,
			Window:      cfg.HTTP.AuthRateLimitWindow,
			KeyFunc:     func(c *gin.Context) string { return "auth:" + c.ClientIP() },
		}, log))
	}
	handler.NewAuthHandler(customerService, sessions, tokens, log).Register(authGroup)

	handler.NewAccountHandler(accountService, log).Register(engine.Group("/api/v1"))

	// Reverse-proxy table for the sibling services
	routes := make([]router.Route, 0, len(cfg.Routes))
	for _, rc := range cfg.Routes {
		routes = append(routes, router.Route{
			Name:        rc.Name,
			Prefix:      rc.Prefix,
			Target:      rc.Target,
			StripPrefix: rc.StripPrefix,
			DocsPath:    rc.DocsPath,
		})
	}
	proxyRouter, err := router.New(routes, log)
	if err != nil {
		log.Fatal("invalid route table", zap.Error(err))
	}
	proxyRouter.Mount(engine)
	log.Info("route table mounted", zap.Int("routes", len(routes)))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}
	log.Info("server exited gracefully")
}
