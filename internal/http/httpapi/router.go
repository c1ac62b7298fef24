package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra/geoip"
	"server/internal/middleware"
)

// NewRouter assembles the HTTP API. Generation and account routes sit
// behind the session JWT; auth and health stay public.
func NewRouter(app *handlers.App, resolver geoip.CountryResolver) http.Handler {
	cfg := app.Config
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(corsOrigins(cfg.AppEnv)),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
		middleware.I18N(cfg.DefaultLocale, resolver),
	)

	r.Get("/v1/healthz", app.Health)
	r.Post("/api/auth/google/verify", app.GoogleVerify)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(cfg.JWTSecret))

		r.Get("/api/user/account", app.Account)
		r.Get("/api/points/transactions", app.Transactions)

		r.Route("/api/ai/images", func(r chi.Router) {
			r.Post("/generate", app.GenerateImage)
			r.Get("/task/{task_id}", app.ImageTaskStatus)
		})
		r.Route("/api/ai/videos", func(r chi.Router) {
			r.Post("/generate", app.GenerateVideo)
			r.Get("/task-status", app.VideoTaskStatus)
			r.Get("/models", app.VideoModels)
		})
	})

	if cfg.StorageDriver == "filesystem" && cfg.StoragePath != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StoragePath)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}

func corsOrigins(appEnv string) []string {
	if appEnv == "production" {
		return nil
	}
	return []string{"http://localhost:3000", "http://localhost:5173"}
}
