package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/ednaflow/internal/api/middleware"
	"github.com/kiranshivaraju/ednaflow/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	SignUpHandler http.HandlerFunc
	LoginHandler  http.HandlerFunc
	LogoutHandler http.HandlerFunc

	CreateUploadHandler http.HandlerFunc
	ListUploadsHandler  http.HandlerFunc
	GetUploadHandler    http.HandlerFunc
	DeleteUploadHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.CORS)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/health", orNotImplemented(deps.HealthHandler))

	r.Route("/auth", func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit("auth"))
		}

		r.Post("/signup", orNotImplemented(deps.SignUpHandler))
		r.Post("/login", orNotImplemented(deps.LoginHandler))
		r.Post("/logout", orNotImplemented(deps.LogoutHandler))
	})

	r.Route("/uploads", func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit("uploads"))
		}
		if deps.Auth != nil {
			r.Use(deps.Auth.Authenticate)
		}

		r.Post("/", orNotImplemented(deps.CreateUploadHandler))
		r.Get("/", orNotImplemented(deps.ListUploadsHandler))
		r.Get("/{id}", orNotImplemented(deps.GetUploadHandler))
		r.Delete("/{id}", orNotImplemented(deps.DeleteUploadHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
