package app

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libdb "swapwatch/backend/libs/db"
	libredis "swapwatch/backend/libs/redis"
	"swapwatch/backend/services/monitoring-service/internal/alerts"
	"swapwatch/backend/services/monitoring-service/internal/auth"
	"swapwatch/backend/services/monitoring-service/internal/clients"
	"swapwatch/backend/services/monitoring-service/internal/config"
	httpserver "swapwatch/backend/services/monitoring-service/internal/http"
	"swapwatch/backend/services/monitoring-service/internal/http/handlers"
	"swapwatch/backend/services/monitoring-service/internal/http/middleware"
	redisstore "swapwatch/backend/services/monitoring-service/internal/redis"
	"swapwatch/backend/services/monitoring-service/internal/repository"
	"swapwatch/backend/services/monitoring-service/internal/session"
	"swapwatch/backend/services/monitoring-service/internal/store"
	"swapwatch/backend/services/monitoring-service/internal/stream"
	"swapwatch/backend/services/monitoring-service/internal/ws"
)

const serviceSubject = "monitoring-service"

// App wires monitoring-service dependencies.
type App struct {
	server      *httpserver.Server
	session     *session.Session
	hub         *ws.Hub
	db          *sql.DB
	redisClient *redis.Client
	autoSelect  bool
	stopViewers context.CancelFunc
	logger      *zap.Logger
}

// New constructs the application graph. ctx bounds the startup connection checks.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{autoSelect: cfg.AutoSelectFirst(), logger: logger}

	tokenService := auth.NewTokenService(cfg.JWT.Secret, cfg.ServiceTokenTTL())
	var tokens auth.TokenSource = auth.NewServiceTokenSource(tokenService, serviceSubject)
	if cfg.Upstream.Token != "" {
		tokens = auth.StaticTokenSource(cfg.Upstream.Token)
	}

	httpClient := clients.NewDefaultHTTPClient(cfg.HTTPTimeout())
	batteryClient := clients.NewBatteryClient(cfg.Upstream.BatteryURL, httpClient, tokens, logger)

	var catalog session.StationCatalog
	if cfg.Database.DSN != "" {
		sqlDB, err := libdb.NewPostgresDB(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		a.db = sqlDB
		catalog = repository.NewStationRepository(sqlDB)
	} else {
		catalog = clients.NewStationsClient(cfg.Upstream.StationsURL, httpClient, tokens)
	}

	a.hub = ws.NewHub(cfg.PingInterval(), logger)
	sinks := []alerts.Sink{alerts.NewLogSink(logger), a.hub}
	if cfg.RedisEnabled() {
		redisClient, err := libredis.NewRedisClient(ctx, libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redisClient = redisClient
		sinks = append(sinks, redisstore.NewAlertPublisher(redisClient, 0))
	}

	streamClient := stream.NewClient(cfg.StreamBaseURL(), stream.Options{
		PingInterval: cfg.PingInterval(),
		WriteTimeout: cfg.WriteTimeout(),
		ReadLimit:    cfg.WebSocket.ReadLimitBytes,
	}, logger)

	a.session = session.New(session.Deps{
		Store:     store.New(),
		Loader:    batteryClient,
		Details:   batteryClient,
		Catalog:   catalog,
		Streams:   session.NewStreamOpener(streamClient),
		Tokens:    tokens,
		Alerts:    alerts.NewDispatcher(logger, sinks...),
		Observers: []session.Observer{a.hub},
		Logger:    logger,
	})

	viewerCtx, stopViewers := context.WithCancel(context.Background())
	a.stopViewers = stopViewers
	viewers := ws.NewServer(viewerCtx, a.hub, a.session, ws.Options{
		PingInterval: cfg.PingInterval(),
		WriteTimeout: cfg.WriteTimeout(),
	}, logger)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Monitoring:    handlers.NewMonitoringHandlers(a.session, logger),
		Viewers:       viewers.HandleWS,
		HealthHandler: handlers.NewHealthHandler(),
	}, middleware.AuthMiddleware(tokenService, auth.RoleStaff, auth.RoleAdmin))

	a.server = httpserver.NewServer(
		cfg.HTTPAddress(),
		router,
		logger,
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)
	return a, nil
}

// Handler returns the HTTP handler with middleware applied.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Session returns the monitoring session.
func (a *App) Session() *session.Session {
	return a.session
}

// Run serves HTTP traffic until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Start(ctx)
	if a.autoSelect {
		go a.selectDefaultStation(ctx)
	}
	return a.server.Run(ctx)
}

func (a *App) selectDefaultStation(ctx context.Context) {
	stations, err := a.session.ListStations(ctx)
	if err != nil {
		a.logger.Warn("default station lookup failed", zap.Error(err))
		return
	}
	if len(stations) == 0 {
		a.logger.Info("no operational stations to monitor")
		return
	}
	if err := a.session.SelectStation(ctx, stations[0].ID); err != nil {
		a.logger.Warn("default station selection failed", zap.String("station_id", stations[0].ID), zap.Error(err))
	}
}

// Close tears down the session and releases resources.
func (a *App) Close() {
	if a.session != nil {
		a.session.Teardown()
	}
	if a.stopViewers != nil {
		a.stopViewers()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
