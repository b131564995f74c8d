package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DoyleJ11/brawl-relay/internal/hub"
	"github.com/DoyleJ11/brawl-relay/internal/ws"
)

type Deps struct {
	Hub       *hub.Hub
	Log       *zap.Logger
	Gatherer  prometheus.Gatherer
	StaticDir string
	WS        ws.Options
}

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Get("/stats", Stats(d.Hub))
	r.Get("/rooms/{roomID}", Room(d.Hub))
	r.Get("/ws", ws.Handler(d.Hub, d.Log, d.WS))
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	// Everything else is the game client.
	r.Get("/*", Static(d.StaticDir, d.Log))
	return r
}
