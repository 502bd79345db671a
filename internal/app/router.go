package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stagedoor-hq/stagedoor/internal/auth"
	"github.com/stagedoor-hq/stagedoor/internal/authz"
	"github.com/stagedoor-hq/stagedoor/internal/observability"
	"github.com/stagedoor-hq/stagedoor/internal/roles"
	"github.com/stagedoor-hq/stagedoor/internal/shared"
	"github.com/stagedoor-hq/stagedoor/internal/tags"
	"github.com/stagedoor-hq/stagedoor/internal/users"
	"github.com/stagedoor-hq/stagedoor/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AuthService     *auth.Service
	AuthHandler     *auth.Handler
	AuthzMiddleware authz.Middleware
	RolesHandler    *roles.Handler
	UsersHandler    *users.Handler
	TagsHandler     *tags.Handler
	JobsHandler     *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Stagedoor defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(params.AuthService, params.Logger))

		if params.TagsHandler != nil {
			r.Route("/tags", params.TagsHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.With(params.AuthzMiddleware.RequireAny(shared.PermRolesView, shared.PermRolesUpdate, shared.PermRolesDelete)).
				Route("/roles", params.RolesHandler.MountRoutes)
			r.With(params.AuthzMiddleware.RequireAny(shared.PermPermissionsView, shared.PermPermissionsUpdate)).
				Route("/permissions", params.RolesHandler.MountPermissionRoutes)
		}
		if params.UsersHandler != nil {
			r.With(params.AuthzMiddleware.RequireAny(shared.PermUsersView, shared.PermUsersUpdate)).
				Route("/users", params.UsersHandler.MountRoutes)
		}
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
