package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/splitbill/internal/auth/service"
	"github.com/aussiebroadwan/splitbill/internal/auth/store"
	"github.com/aussiebroadwan/splitbill/pkg/httpx"
	"github.com/aussiebroadwan/splitbill/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/aussiebroadwan/splitbill/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store
	gatherer     prometheus.Gatherer

	SessionService *service.SessionService
	UserService    *service.UserService
	Identity       IdentityReadiness
}

func NewRouter(
	buildVersion string,
	st store.Store,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		gatherer:     gatherer,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSession()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			splitbill Authentication Service API
//	@version		0.1.0
//	@description	Session authority for splitbill. Clients exchange an identity provider assertion for a short-lived HS256 access token and a single-use refresh token.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/splitbill
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authenticated verifies the access token and re-checks its user on every
// request, then limits per user.
func (r *Router) authenticated(h http.Handler) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.SessionService.Tokens, r.userAllowed),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
}

func (r *Router) userAllowed(ctx context.Context, userID string) (bool, error) {
	_, err := r.SessionService.Authenticate(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrUnauthenticated):
		return false, nil
	default:
		return false, err
	}
}

func (r *Router) registerSession() {
	h := &SessionHandler{Sessions: r.SessionService}

	// Credential exchange is limited hard by address.
	r.Mux.Handle("POST /login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /logout", r.authenticated(http.HandlerFunc(h.HandleLogout)))
}

func (r *Router) registerUsers() {
	r.Mux.Handle("GET /v1/me", r.authenticated(&MeHandler{Users: r.UserService}))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.SessionService.Tokens, r.Identity),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /metrics",
		httpx.Chain(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
