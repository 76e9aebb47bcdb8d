/*
Package handler provides the HTTP handlers and routing setup for the storefront gateway.

This file defines the main Router, applying middleware for logging, CORS and IP-based
rate limiting before delegating requests to the tab WebSocket endpoint and the price API.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"storefront/internal/pkg/limiter"
	"storefront/internal/pkg/logx"
	"storefront/internal/pkg/resp"
)

const (
	ConnectRate  = 0.5
	ConnectBurst = 10
	PriceRate    = 20
	PriceBurst   = 40
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// The returned stop function ends the rate limiters' cleanup goroutines.
func Router(deps *AppDeps) (http.Handler, func()) {
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)
	priceLimiter := limiter.NewIPRateLimiter(rate.Limit(PriceRate), PriceBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"status":      "ok",
			"service":     "Storefront Gateway",
			"active_tabs": deps.Manager.Count(),
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.With(priceLimiter.Middleware).Post("/price", HandlePrice())
	})

	r.With(connectLimiter.Middleware).Get("/ws", HandleWebSocket(deps.Manager, wsUpgrader))

	stop := func() {
		connectLimiter.Stop()
		priceLimiter.Stop()
	}

	return r, stop
}
