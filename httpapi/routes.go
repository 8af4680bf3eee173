package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the transport endpoints.
func NewRouter(h *Handler, uploadRateLimit int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if uploadRateLimit <= 0 {
		uploadRateLimit = 30
	}

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(uploadRateLimit, time.Minute))
		r.Post("/files", h.UploadFile)
	})

	r.Get("/billings", h.ListBillings)
	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
