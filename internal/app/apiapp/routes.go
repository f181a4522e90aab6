package apiapp

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/frogody/floatr-app-sub000/internal/config"
	"github.com/frogody/floatr-app-sub000/internal/infra/metrics"
	authsvc "github.com/frogody/floatr-app-sub000/internal/services/auth"
	chatsvc "github.com/frogody/floatr-app-sub000/internal/services/chat"
	discoverysvc "github.com/frogody/floatr-app-sub000/internal/services/discovery"
	matchessvc "github.com/frogody/floatr-app-sub000/internal/services/matches"
	realtimesvc "github.com/frogody/floatr-app-sub000/internal/services/realtime"
	spatialsvc "github.com/frogody/floatr-app-sub000/internal/services/spatial"
	swipesvc "github.com/frogody/floatr-app-sub000/internal/services/swipes"
	zonessvc "github.com/frogody/floatr-app-sub000/internal/services/zones"
	"github.com/frogody/floatr-app-sub000/internal/transport/http/handlers"
)

type Dependencies struct {
	DiscoveryService *discoverysvc.Service
	SwipeService     *swipesvc.Service
	MatchService     *matchessvc.Service
	ChatService      *chatsvc.Service
	SpatialService   *spatialsvc.Service
	ZoneGuard        *zonessvc.Guard
	Gateway          *realtimesvc.Gateway
	Tokens           *authsvc.JWTManager
	Store            handlers.Pinger
	Metrics          *metrics.Metrics
	Logger           *zap.Logger
	Config           config.Config
}

func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()
	ApplyMiddlewares(r, deps.Logger, deps.Metrics)
	RegisterRoutes(r, deps)
	return r
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.Store)
	discoveryHandler := handlers.NewDiscoveryHandler(deps.DiscoveryService)
	swipeHandler := handlers.NewSwipeHandler(deps.SwipeService)
	matchesHandler := handlers.NewMatchesHandler(deps.MatchService)
	var relay handlers.ChatRelay
	if deps.Gateway != nil {
		relay = deps.Gateway
	}
	chatHandler := handlers.NewChatHandler(deps.ChatService, relay)
	zonesHandler := handlers.NewZonesHandler(deps.ZoneGuard)
	positionsHandler := handlers.NewPositionsHandler(deps.SpatialService)
	realtimeHandler := handlers.NewRealtimeHandler(deps.Gateway, deps.Tokens, deps.Logger)
	authMW := AuthMiddleware(deps.Tokens, deps.Logger)

	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	// Websocket connections outlive any request timeout.
	r.Get("/ws", realtimeHandler.Handle)

	r.Route("/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout(deps.Config)))
		r.Use(authMW)

		r.Get("/discovery/nearby", discoveryHandler.Nearby)
		r.Post("/swipes", swipeHandler.Handle)

		r.Get("/matches", matchesHandler.List)
		r.Post("/matches/{matchId}/unmatch", matchesHandler.Unmatch)
		r.Post("/blocks", matchesHandler.Block)

		r.Get("/conversations", chatHandler.Conversations)
		r.Get("/rooms/{matchId}/messages", chatHandler.Messages)
		r.Post("/rooms/{matchId}/messages", chatHandler.Post)
		r.Post("/rooms/{matchId}/messages/{messageId}/read", chatHandler.MarkRead)

		r.Get("/zones", zonesHandler.InBoundingBox)
		r.Post("/zones/point-check", zonesHandler.PointCheck)

		r.Post("/positions", positionsHandler.Record)
	})
}
