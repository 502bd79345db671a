package authz

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stagedoor-hq/stagedoor/internal/platform/httpx"
	"github.com/stagedoor-hq/stagedoor/internal/shared"
)

// Middleware wires authorization checks for HTTP handlers. The principal id
// is taken from the request context (set by the auth middleware).
type Middleware struct {
	Resolver *Resolver
	Scopes   *ScopeAuthorizer
	Logger   *slog.Logger
}

// RequireAny ensures the current principal holds at least one of the
// required permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principalID, ok := m.currentPrincipal(r)
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
				return
			}
			if m.Resolver.HasAnyPermission(r.Context(), principalID, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		})
	}
}

// RequireAll ensures the current principal holds all required permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principalID, ok := m.currentPrincipal(r)
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
				return
			}
			if m.Resolver.HasAllPermissions(r.Context(), principalID, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		})
	}
}

// RequireResource ensures the current principal may exercise the permission
// against the resource identified by the named URL parameter.
func (m Middleware) RequireResource(permission, resourceType, urlParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principalID, ok := m.currentPrincipal(r)
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
				return
			}
			resourceID := chi.URLParam(r, urlParam)
			if resourceID == "" {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
				return
			}
			if m.Scopes.HasResourcePermission(r.Context(), principalID, permission, resourceType, resourceID) {
				next.ServeHTTP(w, r)
				return
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		})
	}
}

func (m Middleware) currentPrincipal(r *http.Request) (string, bool) {
	id := strings.TrimSpace(shared.PrincipalFromContext(r.Context()))
	if id == "" {
		return "", false
	}
	return id, true
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	return normalized
}
