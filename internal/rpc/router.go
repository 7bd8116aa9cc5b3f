package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type RouterOptions struct {
	Server  *Server
	Metrics http.Handler
	Version string
}

type healthResponse struct {
	Status   string `json:"status"`
	Surfaces int    `json:"surfaces"`
	Version  string `json:"version,omitempty"`
}

func NewRouter(opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthResponse{
			Status:   "ok",
			Surfaces: opts.Server.hub.ActiveSurfaces(),
			Version:  opts.Version,
		})
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	r.Get("/rpc", opts.Server.ServeWS)
	r.Post("/rpc", opts.Server.ServeHTTP)
	return r
}
