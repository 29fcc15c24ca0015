package main

import (
	"context"
	"database/sql"
	"net/http"

	"chatapp/api"
	"chatapp/internal/config"
	"chatapp/internal/handler"
	"chatapp/internal/middleware"
	"chatapp/internal/service"
	"chatapp/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	apiRequestsPerSecond = 20
	apiBurst             = 50
)

type routerDeps struct {
	hub    *websocket.Hub
	chat   *service.ChatService
	db     *sql.DB
	broker handler.BrokerStatus
}

// newRouter wires the HTTP surface. ctx bounds the lifetime of the API rate
// limiter's sweeper.
func newRouter(ctx context.Context, cfg *config.Config, deps routerDeps) (http.Handler, error) {
	validator, err := middleware.OpenAPIValidator(middleware.OpenAPIValidatorConfig{
		Enabled:           cfg.OpenAPIValidation,
		Spec:              api.OpenAPI,
		ValidateResponses: cfg.IsDevelopment(),
	})
	if err != nil {
		return nil, err
	}

	chatHandler := handler.NewChatHandler(deps.chat, service.HistoryQuery)
	wsHandler := handler.NewWebSocketHandler(deps.hub, deps.chat, cfg.Origins(), cfg.EventRate, cfg.EventBurst)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Origins()))
	r.Use(middleware.Metrics())

	r.Get("/health", handler.Health(deps.chat))
	r.Get("/health/ready", handler.Ready(deps.db, deps.broker))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		limiter := middleware.NewRateLimiter(ctx, apiRequestsPerSecond, apiBurst)
		r.Use(limiter.Middleware())
		r.Use(validator)

		r.Get("/users", chatHandler.Users)
		r.Get("/messages", chatHandler.Messages)
	})

	r.Get("/ws", wsHandler.HandleConnection)

	return r, nil
}
