package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/repohub/repohub-backend/internal/handlers"
	"github.com/repohub/repohub-backend/internal/middleware"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Repositories  *handlers.RepositoryHandler
	Invitations   *handlers.InvitationHandler
	Applications  *handlers.ApplicationHandler
	Files         *handlers.FileHandler
	Notifications *handlers.NotificationHandler
	Users         *handlers.UserHandler
}

func SetupRoutes(r chi.Router, h Handlers, authn *middleware.Authenticator) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
		r.Post("/verify-code", h.Auth.VerifyCode)
		r.Post("/verifyCode/resend", h.Auth.ResendCode)
		r.Post("/request-reset", h.Auth.RequestReset)
		r.Post("/forgot", h.Auth.RequestReset)
		r.Post("/reset-password", h.Auth.ResetPassword)
		r.Post("/reset", h.Auth.ResetPassword)
	})

	// Public listings and profiles.
	r.Get("/api/repositorios", h.Repositories.Public)
	r.Get("/api/repositorios/", h.Repositories.Public)
	r.Get("/api/repositorios/publicos", h.Repositories.Public)
	r.Get("/api/users", h.Users.List)
	r.Get("/api/users/{id}", h.Users.Get)
	// The websocket authenticates from its query string.
	r.Get("/api/notificaciones/ws", h.Notifications.WebSocket)

	r.Group(func(r chi.Router) {
		r.Use(authn.RequireAuth)

		// Flat paths: the bare collection GET above stays public.
		r.Post("/api/repositorios", h.Repositories.Create)
		r.Post("/api/repositorios/", h.Repositories.Create)
		r.Get("/api/repositorios/mis-repositorios", h.Repositories.Mine)
		r.Get("/api/repositorios/mine", h.Repositories.Mine)
		r.Get("/api/repositorios/repositorio/{id}", h.Repositories.Files)
		r.Get("/api/repositorios/{id}/files", h.Repositories.Files)
		r.Get("/api/repositorios/{id}", h.Repositories.Get)
		r.Delete("/api/repositorios/{id}", h.Repositories.Delete)

		r.Route("/api/invitaciones", func(r chi.Router) {
			r.Get("/pendientes", h.Invitations.Pending)
			r.Post("/accept", h.Invitations.Accept)
			r.Post("/reject", h.Invitations.Reject)
			r.Post("/{id}/invite", h.Invitations.Invite)
		})

		r.Route("/api/applications", func(r chi.Router) {
			r.Post("/creator/{repoId}", h.Applications.ApplyCreator)
			r.Post("/member/{repoId}", h.Applications.ApplyMember)
			r.Get("/repo/{repoId}", h.Applications.ListByRepo)
			r.Put("/{id}/accept", h.Applications.Accept)
			r.Put("/{id}/reject", h.Applications.Reject)
		})

		r.Route("/api/files", func(r chi.Router) {
			r.Post("/upload/{repoId}", h.Files.Upload)
			r.Get("/my", h.Files.Mine)
			r.Get("/repo/{repoId}", h.Files.ByRepo)
			r.Get("/{id}/download", h.Files.Download)
			r.Delete("/{id}", h.Files.Delete)
		})

		r.Route("/api/notificaciones", func(r chi.Router) {
			r.Get("/", h.Notifications.List)
			r.Get("/{id}", h.Notifications.Get)
			r.Put("/{id}/seen", h.Notifications.MarkSeen)
		})

		r.Get("/api/users/me", h.Users.Me)
		r.Put("/api/users/{id}", h.Users.Update)
	})
}
