package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"imagestudio/internal/http/handlers"
	"imagestudio/internal/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	var origins []string
	limit := 0
	if app.Config != nil {
		origins = app.Config.AllowedOrigins
		limit = app.Config.RateLimitPerMin
	}
	generateLimit := middleware.RateLimit(limit, time.Minute)

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(*app.Logger),
		chimw.Recoverer,
		middleware.CORS(origins),
	)

	// Page
	r.Get("/", app.Page)
	r.With(generateLimit).Post("/generate", app.GenerateForm)
	r.Post("/history/{id}/select", app.SelectHistoryForm)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/presets", app.Presets)
		r.Get("/state", app.State)
		r.Put("/form", app.UpdateForm)
		r.With(generateLimit).Post("/generate", app.Generate)
		r.Post("/history/{id}/select", app.SelectHistory)
		r.Get("/history/archive", app.HistoryArchive)
		r.Get("/image", app.Image)
		r.Get("/ws", app.LiveView)
	})

	return r
}
