package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/http/handlers"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/middleware"
)

// NewRouter mounts the wizard API. lookup may be nil when no GeoIP database
// is configured.
func NewRouter(app *handlers.App, lookup middleware.CountryLookup) http.Handler {
	cfg := app.Config
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(
		chimw.Recoverer,
		middleware.I18N(cfg.DefaultLocale, lookup),
		middleware.Logger(*app.Logger),
		middleware.CORS(cfg.CORSOrigins),
	)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))

			r.Get("/options", app.Options)
			r.Post("/sessions", app.CreateSession)
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Get("/", app.GetSession)
				r.Delete("/", app.DeleteSession)
				r.Post("/candidates", app.CastFaces)
				r.Post("/selection", app.SelectFace)
				r.Post("/scene", app.ShootScene)
				r.Post("/restart", app.RestartSession)
				r.Get("/archive", app.SessionArchive)
			})
		})
	})

	return r
}
