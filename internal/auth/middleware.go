package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stagedoor-hq/stagedoor/internal/platform/httpx"
	"github.com/stagedoor-hq/stagedoor/internal/shared"
)

// RequireAuth rejects requests lacking a valid bearer token and stamps
// the resolved principal id into the request context.
func RequireAuth(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
				return
			}
			principalID, err := service.Identify(r.Context(), token)
			if err != nil {
				if !errors.Is(err, ErrTokenUnknown) {
					logger.Error("token resolution failed", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principalID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
