package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/aulaplan/aulaplan/internal/api/activity"
	"github.com/aulaplan/aulaplan/internal/api/auth"
	"github.com/aulaplan/aulaplan/internal/api/badge"
	"github.com/aulaplan/aulaplan/internal/api/event"
	"github.com/aulaplan/aulaplan/internal/api/feedback"
	"github.com/aulaplan/aulaplan/internal/api/guide"
	"github.com/aulaplan/aulaplan/internal/api/report"
	"github.com/aulaplan/aulaplan/internal/api/template"
	"github.com/aulaplan/aulaplan/internal/api/user"
	"github.com/aulaplan/aulaplan/internal/types"
)

// Config carries every handler plus the token service the auth
// middleware is built from.
type Config struct {
	Tokens *auth.TokenService

	AuthHandler     *auth.AuthHandler
	UserHandler     *user.UserHandler
	ActivityHandler *activity.ActivityHandler
	GuideHandler    *guide.GuideHandler
	EventHandler    *event.EventHandler
	BadgeHandler    *badge.BadgeHandler
	ReportHandler   *report.ReportHandler
	FeedbackHandler *feedback.FeedbackHandler
	TemplateHandler *template.TemplateHandler
}

// SetupRouter wires the public and protected route groups. Server-wide
// middleware (request id, recoverer, logging) is applied in main before
// this router is mounted.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "x-auth-token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(100, time.Minute))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	authenticate := auth.Authenticate(cfg.Tokens)

	r.Route("/api", func(r chi.Router) {
		// Public routes.
		r.Group(func(r chi.Router) {
			r.Post("/users", cfg.UserHandler.Register)
			r.Post("/auth", cfg.AuthHandler.Login)
			r.Post("/auth/refresh", cfg.AuthHandler.Refresh)
		})

		// Everything below requires a valid token.
		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/auth", cfg.AuthHandler.GetCurrentUser)
			r.Post("/auth/logout", cfg.AuthHandler.Logout)

			r.Route("/users", func(r chi.Router) {
				r.With(auth.RequireRole(types.RoleAdmin, types.RoleSuperadmin)).Get("/", cfg.UserHandler.List)
				r.With(auth.RequireRole(types.RoleAdmin, types.RoleSuperadmin)).Get("/pending", cfg.UserHandler.ListPending)
				r.With(auth.RequireRole(types.RoleSuperadmin)).Get("/admins", cfg.UserHandler.ListAdmins)
				r.Get("/{id}", cfg.UserHandler.Get)
				r.With(auth.RequireRole(types.RoleAdmin, types.RoleSuperadmin)).Put("/{id}/status", cfg.UserHandler.UpdateStatus)
			})

			r.Route("/activities", func(r chi.Router) {
				r.Get("/", cfg.ActivityHandler.List)
				r.Post("/", cfg.ActivityHandler.Create)
				r.Get("/{id}", cfg.ActivityHandler.Get)
				r.Put("/{id}", cfg.ActivityHandler.Update)
				r.Delete("/{id}", cfg.ActivityHandler.Delete)
			})

			r.Route("/guides", func(r chi.Router) {
				r.Get("/", cfg.GuideHandler.List)
				r.Post("/", cfg.GuideHandler.Create)
				r.Get("/{id}", cfg.GuideHandler.Get)
				r.Put("/{id}", cfg.GuideHandler.Update)
				r.Delete("/{id}", cfg.GuideHandler.Delete)
				r.Post("/{id}/versions", cfg.GuideHandler.CreateVersion)
				r.Get("/{id}/versions", cfg.GuideHandler.ListVersions)
				r.Get("/{id}/versions/compare", cfg.GuideHandler.CompareVersions)
				r.Get("/{id}/versions/{version}", cfg.GuideHandler.GetVersion)
				r.Post("/{id}/versions/{version}/restore", cfg.GuideHandler.RestoreVersion)
			})

			r.Route("/events", func(r chi.Router) {
				r.Get("/", cfg.EventHandler.List)
				r.Post("/", cfg.EventHandler.Create)
				r.Get("/{id}", cfg.EventHandler.Get)
				r.Put("/{id}", cfg.EventHandler.Update)
				r.Delete("/{id}", cfg.EventHandler.Delete)
				r.Post("/{id}/join", cfg.EventHandler.Join)
			})
			r.Get("/calendar", cfg.EventHandler.Calendar)

			r.Route("/badges", func(r chi.Router) {
				r.Get("/", cfg.BadgeHandler.Catalog)
				r.With(auth.RequireRole(types.RoleAdmin, types.RoleSuperadmin)).Post("/", cfg.BadgeHandler.Create)
				r.With(auth.RequireRole(types.RoleAdmin, types.RoleSuperadmin)).Post("/assign", cfg.BadgeHandler.Assign)
				r.With(auth.RequireRole(types.RoleAdmin, types.RoleSuperadmin)).Put("/progress", cfg.BadgeHandler.UpdateProgress)
				r.Get("/user/{userId}", cfg.BadgeHandler.ListUserBadges)
				r.Get("/{id}", cfg.BadgeHandler.Get)
				r.With(auth.RequireRole(types.RoleAdmin, types.RoleSuperadmin)).Put("/{id}", cfg.BadgeHandler.Update)
				r.With(auth.RequireRole(types.RoleAdmin, types.RoleSuperadmin)).Delete("/{id}", cfg.BadgeHandler.Delete)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/", cfg.ReportHandler.List)
				r.With(auth.RequireRole(types.RoleAdmin, types.RoleSuperadmin)).Post("/", cfg.ReportHandler.Create)
				r.Get("/{id}", cfg.ReportHandler.Get)
				r.With(auth.RequireRole(types.RoleSuperadmin)).Delete("/{id}", cfg.ReportHandler.Delete)
			})

			r.Route("/feedback", func(r chi.Router) {
				r.Post("/", cfg.FeedbackHandler.Create)
				r.With(auth.RequireRole(types.RoleAdmin, types.RoleSuperadmin)).Get("/", cfg.FeedbackHandler.List)
				r.Get("/mine", cfg.FeedbackHandler.ListMine)
				r.Get("/{id}", cfg.FeedbackHandler.Get)
				r.With(auth.RequireRole(types.RoleAdmin, types.RoleSuperadmin)).Put("/{id}/respond", cfg.FeedbackHandler.Respond)
			})

			r.Route("/templates", func(r chi.Router) {
				r.Get("/", cfg.TemplateHandler.List)
				r.With(auth.RequireRole(types.RoleAdmin, types.RoleSuperadmin)).Post("/", cfg.TemplateHandler.Create)
				r.Get("/{id}", cfg.TemplateHandler.Get)
				r.With(auth.RequireRole(types.RoleAdmin, types.RoleSuperadmin)).Put("/{id}", cfg.TemplateHandler.Update)
				r.With(auth.RequireRole(types.RoleSuperadmin)).Delete("/{id}", cfg.TemplateHandler.Delete)
			})
		})
	})

	return r
}
