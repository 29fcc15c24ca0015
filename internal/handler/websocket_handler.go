package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"

	"chatapp/internal/observability"
	ws "chatapp/internal/websocket"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// WebSocketHandler upgrades HTTP requests into chat connections
type WebSocketHandler struct {
	hub        *ws.Hub
	dispatcher ws.Dispatcher
	upgrader   websocket.Upgrader
	eventRate  rate.Limit
	eventBurst int
}

// NewWebSocketHandler creates a new WebSocket handler. eventRate and
// eventBurst bound inbound events per connection; a zero rate disables the
// limit.
func NewWebSocketHandler(hub *ws.Hub, dispatcher ws.Dispatcher, allowedOrigins []string, eventRate float64, eventBurst int) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:        hub,
		dispatcher: dispatcher,
		eventRate:  rate.Limit(eventRate),
		eventBurst: eventBurst,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// HandleConnection handles WebSocket upgrade and connection
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response
		slog.Warn("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}

	var limiter *rate.Limiter
	if h.eventRate > 0 {
		limiter = rate.NewLimiter(h.eventRate, h.eventBurst)
	}

	ctx := observability.WithRequestID(r.Context(), chimiddleware.GetReqID(r.Context()))
	client := ws.NewClient(ctx, h.hub, conn, r.RemoteAddr, h.dispatcher, limiter)

	h.hub.Serve(client)
}

// originChecker accepts requests without an Origin header, same-host
// origins and origins listed in allowed. A "*" entry accepts everything.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	}
}
