package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	if c.cfg.CORS {
		r.Use(cors.AllowAll().Handler)
	}

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Group(func(r chi.Router) {
			if c.cfg.RateLimit > 0 {
				r.Use(httprate.LimitByIP(c.cfg.RateLimit, time.Minute))
			}

			r.Route("/rooms", func(r chi.Router) {
				r.Post("/", c.createRoom)
				r.Post("/join", c.joinRoom)
				r.Get("/code/{room-code}", c.getRoom)
				r.Route("/{room-id}", func(r chi.Router) {
					r.Post("/leave", c.leaveRoom)
					r.Post("/events", c.syncEvent)
					r.Get("/members", c.listMembers)
				})
			})
		})

		r.Get("/realtime/{room-id}", c.realtime)
	})

	return r
}
