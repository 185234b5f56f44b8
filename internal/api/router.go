package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/graphilearn/engine/internal/api/handlers"
	mw "github.com/graphilearn/engine/internal/api/middleware"
)

type Dependencies struct {
	Session              mw.SessionConfig
	AllowedOrigins       []string
	RateLimitRPS         float64
	RateLimitBurst       int
	HealthHandler        *handlers.HealthHandler
	AuthHandler          *handlers.AuthHandler
	TutorialsHandler     *handlers.TutorialsHandler
	DashboardHandler     *handlers.DashboardHandler
	AccountHandler       *handlers.AccountHandler
	AdminHandler         *handlers.AdminHandler
	NotificationsHandler *handlers.NotificationsHandler
	// Media serves locally stored uploads under /media; nil when objects live elsewhere.
	Media http.Handler
}

func NewRouter(dep Dependencies) http.Handler {
	if dep.RateLimitRPS <= 0 {
		dep.RateLimitRPS, dep.RateLimitBurst = 10, 20
	}

	r := chi.NewRouter()

	// Built-in middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS(dep.AllowedOrigins))
	r.Use(mw.RateLimit(dep.RateLimitRPS, dep.RateLimitBurst))
	r.Use(chimid.Compress(5))

	// Health endpoints
	hh := dep.HealthHandler
	if hh == nil {
		hh = handlers.NewHealthHandler(nil)
	}
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)

	if dep.Media != nil {
		r.Handle("/media/*", http.StripPrefix("/media", dep.Media))
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(sr chi.Router) {
			sr.Use(mw.Session(dep.Session))

			sr.Get("/session", dep.AuthHandler.Session)
			sr.Route("/auth", func(ar chi.Router) {
				ar.Post("/signin", dep.AuthHandler.SignIn)
				ar.Post("/signup", dep.AuthHandler.SignUp)
				ar.Post("/signout", dep.AuthHandler.SignOut)
				ar.Post("/refresh", dep.AuthHandler.Refresh)
				ar.Get("/confirm", dep.AuthHandler.Confirm)
			})
			sr.Get("/notifications", dep.NotificationsHandler.Drain)

			// Catalog (public)
			sr.Get("/categories", dep.TutorialsHandler.Categories)
			sr.Route("/tutorials", func(tr chi.Router) {
				tr.Get("/", dep.TutorialsHandler.List)
				tr.Get("/{id}", dep.TutorialsHandler.Get)
				tr.Group(func(pr chi.Router) {
					pr.Use(mw.RequireUser)
					pr.Get("/{id}/progress", dep.TutorialsHandler.GetProgress)
					pr.Put("/{id}/progress", dep.TutorialsHandler.SetProgress)
					pr.Post("/{id}/complete", dep.TutorialsHandler.Complete)
				})
			})

			// Protected routes
			sr.Group(func(protected chi.Router) {
				protected.Use(mw.RequireUser)
				protected.Get("/dashboard", dep.DashboardHandler.Get)
				protected.Put("/account/password", dep.AccountHandler.ChangePassword)
				protected.Delete("/account", dep.AccountHandler.Delete)
			})

			sr.Route("/admin", func(ad chi.Router) {
				ad.Use(mw.RequireAdmin)
				ad.Get("/tutorials", dep.AdminHandler.List)
				ad.Post("/tutorials", dep.AdminHandler.Create)
				ad.Put("/tutorials/{id}", dep.AdminHandler.Update)
				ad.Delete("/tutorials/{id}", dep.AdminHandler.Delete)
				ad.Post("/tutorials/{id}/publish", dep.AdminHandler.TogglePublish)
				ad.Post("/uploads", dep.AdminHandler.Upload)
			})
		})
	})

	return r
}
