package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"herald/internal/config"
	"herald/internal/constants"
	"herald/internal/dispatch"
	"herald/internal/gateway"
	"herald/internal/history"
	"herald/internal/logger"
	"herald/internal/notification"
	"herald/pkg/bootstrap"
	"herald/pkg/circuitbreaker"
	"herald/pkg/health"
	"herald/pkg/metrics"
	"herald/pkg/middleware"
	"herald/pkg/migrations"
	"herald/pkg/ratelimit"
	"herald/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redis          *redis.Client
	mongoClient    *mongo.Client
	tracerProvider *tracing.TracerProvider
	router         *gin.Engine
	server         *http.Server

	rules      notification.Service
	channels   notification.ChannelService
	history    history.Service
	dispatcher dispatch.Service
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.initStores(ctx); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := a.InitBroker(constants.ServiceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	metrics.RegisterNotificationMetrics()
	metrics.RegisterAPIMetrics()
	if a.Config.KafkaEnabled() {
		metrics.RegisterBrokerMetrics()
	}
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initServices(ctx); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	a.initRouter(ctx)
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeout(),
		WriteTimeout: a.Config.Server.WriteTimeout(),
	}

	return nil
}

// initStores connects PostgreSQL (required) and the optional Redis and
// MongoDB stores. MongoDB becomes required when it backs the history ledger.
func (a *App) initStores(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		a.Logger.WarnwCtx(ctx, "Redis unavailable, server info cache disabled", "error", err)
	}
	a.redis = rdb

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		if a.Config.History.Backend == config.HistoryBackendMongoDB {
			return err
		}
		a.Logger.WarnwCtx(ctx, "MongoDB unavailable, continuing without it", "error", err)
	}
	a.mongoClient = mongoClient

	return nil
}

func (a *App) initServices(ctx context.Context) error {
	store := notification.NewPostgresRepository(a.db)

	conditions, err := notification.NewConditionEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create condition evaluator: %w", err)
	}

	ruleOpts := []notification.ServiceOption{
		notification.WithConditions(conditions),
		notification.WithLogger(a.Logger),
	}
	if a.Producer != nil && a.Config.Broker.Kafka.RuleEventsTopic != "" {
		publisher := notification.NewRuleEventPublisher(a.Producer, a.Config.Broker.Kafka.RuleEventsTopic)
		ruleOpts = append(ruleOpts, notification.WithRuleEvents(publisher))
	}
	a.rules = notification.NewService(store, store, ruleOpts...)

	gw := a.newGateway()
	a.channels = notification.NewChannelService(store, gw, a.Logger)

	ledger, err := a.newHistoryRepository(ctx)
	if err != nil {
		return err
	}
	a.history = history.NewService(ledger, store, history.WithLogger(a.Logger))

	a.dispatcher = dispatch.NewService(a.rules, store, a.history, gw,
		dispatch.WithConditions(conditions),
		dispatch.WithLogger(a.Logger),
	)
	return nil
}

// newGateway layers the optional circuit breaker and server info cache over
// the HTTP client.
func (a *App) newGateway() gateway.Client {
	var gw gateway.Client = gateway.NewHTTPClientWithTimeout(a.Config.Gateway.Timeout, gateway.WithLogger(a.Logger))

	if cbCfg := a.Config.CircuitBreaker; cbCfg.Enabled {
		base := circuitbreaker.DefaultConfig("push_gateway")
		if cbCfg.MaxRequests > 0 {
			base.MaxRequests = cbCfg.MaxRequests
		}
		if cbCfg.Interval > 0 {
			base.Interval = cbCfg.Interval
		}
		if cbCfg.Timeout > 0 {
			base.Timeout = cbCfg.Timeout
		}
		if cbCfg.FailureRatio > 0 {
			base.FailureRatio = cbCfg.FailureRatio
		}
		if cbCfg.MinRequests > 0 {
			base.MinRequests = cbCfg.MinRequests
		}
		gw = gateway.NewBreakerClient(gw, circuitbreaker.NewRegistry(base))
	}

	if a.redis != nil {
		ttl := time.Duration(a.Config.Gateway.InfoCacheTTLSeconds) * time.Second
		gw = gateway.NewCachedClient(gw, a.redis, ttl, a.Logger)
	}

	return gw
}

func (a *App) newHistoryRepository(ctx context.Context) (history.Repository, error) {
	if a.Config.History.Backend != config.HistoryBackendMongoDB {
		return history.NewPostgresRepository(sqlx.NewDb(a.db, "postgres")), nil
	}

	dbName := a.Config.Database.MongoDB.Database
	if dbName == "" {
		dbName = constants.DefaultMongoDBName
	}
	mongoDB := a.mongoClient.Database(dbName)
	if err := migrations.EnsureHistoryIndexes(ctx, mongoDB, constants.HistoryCollectionName); err != nil {
		return nil, err
	}
	return history.NewMongoRepository(mongoDB, constants.HistoryCollectionName), nil
}

func (a *App) initRouter(ctx context.Context) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	if rl := a.Config.API.RateLimit; rl.Enabled {
		limiter := ratelimit.NewPerClient(ctx, ratelimit.Config{
			RPS:             rl.RPS,
			Burst:           rl.Burst,
			CleanupInterval: time.Duration(rl.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(rl.MaxAge) * time.Second,
		})
		router.Use(limiter.Middleware())
		a.Logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rl.RPS, "burst", rl.Burst)
	}

	notification.NewHandler(a.rules, a.channels, a.Logger).RegisterRoutes(router)
	history.NewHandler(a.history, a.Logger).RegisterRoutes(router)
	dispatch.NewHandler(a.dispatcher, a.Logger).RegisterRoutes(router)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	if a.redis != nil {
		healthRegistry.RegisterOptional(health.NewRedisChecker(a.redis))
	}
	if a.mongoClient != nil {
		if a.Config.History.Backend == config.HistoryBackendMongoDB {
			healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
		} else {
			healthRegistry.RegisterOptional(health.NewMongoDBChecker(a.mongoClient))
		}
	}
	if a.Config.KafkaEnabled() {
		healthRegistry.RegisterOptional(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if a.Consumer != nil {
		events := dispatch.NewEventHandler(a.dispatcher, a.Logger)
		topic := a.Config.Broker.Kafka.EventsTopic
		g.Go(func() error {
			a.Logger.InfowCtx(gCtx, "Starting event consumer", "topic", topic)
			return a.Consumer.Consume(gCtx, topic, events.HandleEvent)
		})
	}

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.db, a.mongoClient)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
