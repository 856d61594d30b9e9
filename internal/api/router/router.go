package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"gt06gateway/internal/api/handler"
	"gt06gateway/internal/api/middleware"
	"gt06gateway/internal/protocol/gt06"
)

// NewRouter builds the operations HTTP surface. lookup may be nil, in which
// case the last position route is not mounted.
func NewRouter(gateway handler.Gateway, lookup gt06.PositionLookup, logger zerolog.Logger) http.Handler {
	deviceHandler := handler.NewDeviceHandler(gateway, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", deviceHandler.Health)
	r.Get("/stats", deviceHandler.Stats)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", deviceHandler.Sessions)
		r.Get("/{id}", deviceHandler.Session)
	})

	r.Route("/devices/{id}", func(r chi.Router) {
		r.Post("/commands", deviceHandler.SendCommand)
		if lookup != nil {
			r.Get("/position", handler.NewPositionHandler(lookup, logger).GetLastPosition)
		}
	})

	return r
}
