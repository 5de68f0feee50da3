// Package http assembles the service's routes, middleware and metrics.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dohyunkim-dev/authgate/internal/http/handlers"
	"github.com/dohyunkim-dev/authgate/internal/keycloak"
	"github.com/dohyunkim-dev/authgate/internal/oauth"
	"github.com/dohyunkim-dev/authgate/internal/provision"
	"github.com/dohyunkim-dev/authgate/internal/rate"
	"github.com/dohyunkim-dev/authgate/internal/verification"
)

// RouterDeps carries everything the route table needs.
type RouterDeps struct {
	Guard       *keycloak.Guard
	Client      *keycloak.Client
	Keys        *keycloak.KeySet
	Codes       *verification.CodeStore
	Provisioner *provision.Provisioner
	OAuth       *oauth.Service
	Cookies     handlers.Cookies

	// APIKey gates the public-key passthrough endpoint.
	APIKey string

	// Metrics is the /metrics handler; nil disables the route.
	Metrics http.Handler

	// Limiter throttles the credential endpoints; nil disables limiting.
	Limiter rate.Limiter
}

// NewRouter builds the chi route table.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID, RequestLogger, MetricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/token", func(r chi.Router) {
			r.Get("/verify", handlers.NewTokenVerifyHandler(d.Guard, d.Cookies))
			r.Get("/verify/user", handlers.NewTokenVerifyUserHandler(d.Guard, d.Cookies))
			r.Post("/refresh", handlers.NewTokenRefreshHandler(d.Client, d.Cookies))
			r.With(APIKey(d.APIKey)).Get("/public-key", handlers.NewPublicKeyHandler(d.Keys))
		})

		r.Route("/auth", func(r chi.Router) {
			if d.Limiter != nil {
				r.Use(RateLimit(d.Limiter))
			}
			r.Post("/login", handlers.NewLoginHandler(d.Client, d.Cookies))
			r.Post("/logout", handlers.NewLogoutHandler(d.Client, d.Cookies))
			r.Post("/send-code", handlers.NewSendCodeHandler(d.Codes))
			r.Post("/verify-code", handlers.NewVerifyCodeHandler(d.Codes))
			r.Post("/register", handlers.NewRegisterHandler(d.Codes, d.Provisioner))
			r.Delete("/{username}", handlers.NewDeleteUserHandler(d.Provisioner))
		})

		r.Route("/oauth", func(r chi.Router) {
			r.Get("/{provider}/redirect", handlers.NewOAuthRedirectHandler(d.OAuth))
			r.Get("/{provider}/callback", handlers.NewOAuthCallbackHandler(d.OAuth))
		})
	})

	return r
}
