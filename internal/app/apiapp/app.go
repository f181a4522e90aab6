package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/frogody/floatr-app-sub000/internal/config"
	"github.com/frogody/floatr-app-sub000/internal/infra/metrics"
	s3infra "github.com/frogody/floatr-app-sub000/internal/infra/s3"
	"github.com/frogody/floatr-app-sub000/internal/jobs/cleanup"
	"github.com/frogody/floatr-app-sub000/internal/repo/memory"
	pgrepo "github.com/frogody/floatr-app-sub000/internal/repo/postgres"
	redrepo "github.com/frogody/floatr-app-sub000/internal/repo/redis"
	analyticsvc "github.com/frogody/floatr-app-sub000/internal/services/analytics"
	authsvc "github.com/frogody/floatr-app-sub000/internal/services/auth"
	chatsvc "github.com/frogody/floatr-app-sub000/internal/services/chat"
	discoverysvc "github.com/frogody/floatr-app-sub000/internal/services/discovery"
	matchessvc "github.com/frogody/floatr-app-sub000/internal/services/matches"
	mediasvc "github.com/frogody/floatr-app-sub000/internal/services/media"
	modsvc "github.com/frogody/floatr-app-sub000/internal/services/moderation"
	notifysvc "github.com/frogody/floatr-app-sub000/internal/services/notify"
	ratesvc "github.com/frogody/floatr-app-sub000/internal/services/rate"
	realtimesvc "github.com/frogody/floatr-app-sub000/internal/services/realtime"
	spatialsvc "github.com/frogody/floatr-app-sub000/internal/services/spatial"
	swipesvc "github.com/frogody/floatr-app-sub000/internal/services/swipes"
	zonessvc "github.com/frogody/floatr-app-sub000/internal/services/zones"
)

// dataStore is the method set both storage drivers provide.
type dataStore interface {
	Ping(ctx context.Context) error
	swipesvc.VesselStore
	swipesvc.BlockStore
	swipesvc.PairStore
	discoverysvc.VesselStore
	discoverysvc.BlockStore
	discoverysvc.PreferencesStore
	spatialsvc.PositionStore
	zonessvc.Store
	matchessvc.MatchStore
	chatsvc.RoomStore
	analyticsvc.Store
}

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	store      dataStore
	metrics    *metrics.Metrics
	gateway    *realtimesvc.Gateway
	dispatcher *notifysvc.Dispatcher
	cleanupJob *cleanup.Job
	tokens     *authsvc.JWTManager
	httpRouter http.Handler

	stopBackground context.CancelFunc
	background     sync.WaitGroup
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	m := metrics.New()
	app := &App{cfg: cfg, logger: log, metrics: m}

	var (
		store   dataStore
		windows ratesvc.WindowStore
		sink    notifysvc.Sink
	)
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		mem := memory.New()
		store = mem
		windows = mem
		log.Warn("using in-memory storage; data is lost on restart")
	default:
		pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN, int32(cfg.Postgres.MaxConns))
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		app.postgres = pool
		store = pgrepo.NewStore(pool, pgrepo.RetryPolicy{
			Attempts: cfg.Postgres.ReadAttempts,
			Backoff:  cfg.Postgres.RetryBackoff,
		})

		redisClient, err := redrepo.NewClient(ctx, redrepo.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("redis init failed, like limits and outbound events disabled", zap.Error(err))
		} else {
			app.redis = redisClient
			windows = redrepo.NewRateRepo(redisClient)
			if cfg.Notify.Enabled {
				sink = redrepo.NewOutboundRepo(redisClient, cfg.Notify.Stream, cfg.Notify.MaxLen)
			}
		}

		if c, err := s3infra.NewClient(s3infra.Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		}); err != nil {
			log.Warn("s3 init failed, avatar urls disabled", zap.Error(err))
		} else {
			app.s3 = c
			if err := s3infra.CheckBucket(ctx, c, cfg.S3.Bucket); err != nil {
				log.Warn("s3 bucket check failed", zap.Error(err))
			}
		}
	}

	app.store = store

	dispatcher := notifysvc.NewDispatcher(sink, log, notifysvc.Config{Buffer: cfg.Notify.Buffer})
	dispatcher.OnDrop(func() { m.OutboundDropped.Inc() })
	app.dispatcher = dispatcher

	var signer *mediasvc.Signer
	if app.s3 != nil {
		signer = mediasvc.NewSigner(mediasvc.NewS3Storage(app.s3, cfg.S3.Bucket), cfg.S3.PresignTTL)
	}

	analytics := analyticsvc.NewService(store, log)
	guard := zonessvc.NewGuard(store, log, zonessvc.Config{MaxBBoxResults: cfg.Zones.MaxBBoxResults})

	spatial := spatialsvc.NewService(spatialsvc.Dependencies{
		Positions: store,
		Vessels:   store,
		Zones:     guard,
		Logger:    log,
	}, spatialsvc.Config{
		RetainPerVessel: cfg.Positions.RetainPerVessel,
		RecencyWindow:   cfg.Discovery.RecencyWindow,
	})

	discovery := discoverysvc.NewService(discoverysvc.Dependencies{
		Vessels:     store,
		Blocks:      store,
		Preferences: store,
		Proximity:   spatial,
		Logger:      log,
	}, discoverysvc.Config{
		DefaultRadiusKM: cfg.Discovery.DefaultRadiusKM,
		MaxRadiusKM:     cfg.Discovery.MaxRadiusKM,
		RecencyWindow:   cfg.Discovery.RecencyWindow,
		MaxResults:      cfg.Discovery.MaxResults,
		PreviewItems:    cfg.Discovery.PreviewItems,
	})
	discovery.AttachAuditor(analytics)
	discovery.AttachResultObserver(m.DiscoveryResults)

	swipes := swipesvc.NewService(swipesvc.Dependencies{
		Vessels: store,
		Blocks:  store,
		Pairs:   store,
		Logger:  log,
	}, swipesvc.Config{PendingTTL: cfg.Matching.PendingTTL})
	swipes.AttachNotifier(dispatcher)
	swipes.AttachMetrics(m)
	if windows != nil {
		swipes.AttachRateLimiter(ratesvc.NewLimiter(windows, cfg.Matching.LikesPerMinute, cfg.Matching.LikesPerHour))
	}

	matches := matchessvc.NewService(matchessvc.Dependencies{
		Vessels: store,
		Blocks:  store,
		Matches: store,
		Logger:  log,
	})
	matches.AttachAuditor(analytics)

	chat := chatsvc.NewService(chatsvc.Dependencies{
		Matches: store,
		Vessels: store,
		Blocks:  store,
		Rooms:   store,
		Logger:  log,
	}, chatsvc.Config{
		MaxMessageLength:  cfg.Chat.MaxMessageLength,
		HistoryPageSize:   cfg.Chat.HistoryPageSize,
		ToxicityThreshold: cfg.Chat.ToxicityThreshold,
	})
	chat.AttachNotifier(dispatcher)
	chat.AttachMetrics(m)
	if cfg.Chat.ToxicityURL != "" {
		chat.AttachToxicityScorer(modsvc.NewRemoteScorer(cfg.Chat.ToxicityURL, cfg.Chat.ToxicityTimeout))
	}

	if signer != nil {
		discovery.AttachAvatarSigner(signer)
		chat.AttachAvatarSigner(signer)
	}

	gateway := realtimesvc.NewGateway(chat, log, realtimesvc.Config{
		PingInterval:     cfg.Realtime.PingInterval,
		HeartbeatTimeout: cfg.Realtime.HeartbeatTimeout,
		WriteTimeout:     cfg.Realtime.WriteTimeout,
		SendBuffer:       cfg.Realtime.SendBuffer,
		MaxFrameBytes:    cfg.Realtime.MaxFrameBytes,
		InboundPerSec:    cfg.Realtime.InboundPerSec,
		InboundBurst:     cfg.Realtime.InboundBurst,
		AllowedOrigins:   cfg.Realtime.AllowedOrigins,
	})
	gateway.AttachMetrics(m)
	matches.AttachRoomCloser(gateway)
	app.gateway = gateway

	app.tokens = authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTTL)
	app.cleanupJob = cleanup.New(matches, guard, cfg.Jobs.CleanupInterval, log)

	app.httpRouter = NewRouter(Dependencies{
		DiscoveryService: discovery,
		SwipeService:     swipes,
		MatchService:     matches,
		ChatService:      chat,
		SpatialService:   spatial,
		ZoneGuard:        guard,
		Gateway:          gateway,
		Tokens:           app.tokens,
		Store:            store,
		Metrics:          m,
		Logger:           log,
		Config:           cfg,
	})

	app.server = &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      app.httpRouter,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return app, nil
}

// Run starts the outbound dispatcher and the cleanup loop, then serves HTTP
// until Shutdown.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopBackground = cancel

	// The dispatcher stops through Close so buffered events are drained.
	a.dispatcher.Start(context.Background())
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		a.cleanupJob.Loop(ctx)
	}()

	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	// Hijacked websocket connections are not tracked by the server.
	a.gateway.Close()
	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.stopBackground != nil {
		a.stopBackground()
	}
	a.background.Wait()
	a.dispatcher.Close()

	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}

// Tokens exposes the signer so tooling and tests can mint access tokens.
func (a *App) Tokens() *authsvc.JWTManager {
	return a.tokens
}
