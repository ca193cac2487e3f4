package chi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/fusedex/fusedex/internal/domain/user"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// Identity headers set by the API gateway after token introspection.
const (
	headerUserID         = "X-User-Id"
	headerTenantID       = "X-Tenant-Id"
	headerRole           = "X-Role"
	headerMaxAccessLevel = "X-Max-Access-Level"
)

type callerKey struct{}

// callerFromContext returns the authenticated caller stored by
// IdentityMiddleware.
func callerFromContext(ctx context.Context) (user.Context, bool) {
	c, ok := ctx.Value(callerKey{}).(user.Context)
	return c, ok
}

// BearerAuthMiddleware returns a middleware that validates Bearer tokens.
// If apiKeys is empty, authentication is disabled (pass-through).
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	validKeys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			validKeys[k] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		// Auth disabled — pass everything through
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Exempt paths
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, codeBadRequest, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized,
					codeBadRequest, "authorization header must use Bearer scheme")
				return
			}

			token := auth[len(bearerPrefix):]
			if _, ok := validKeys[token]; !ok {
				writeError(w, http.StatusUnauthorized, codeBadRequest, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IdentityMiddleware resolves the caller identity headers into a validated
// user context. Every data route requires an identity; health and metrics
// do not.
func IdentityMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			maxLevel := 0
			if raw := r.Header.Get(headerMaxAccessLevel); raw != "" {
				v, err := strconv.Atoi(raw)
				if err != nil || v < 0 {
					writeError(w, http.StatusUnauthorized, codeAccessDenied,
						"invalid max access level header")
					return
				}
				maxLevel = v
			}

			caller, err := user.New(
				r.Header.Get(headerUserID),
				r.Header.Get(headerTenantID),
				user.Role(r.Header.Get(headerRole)),
				maxLevel,
			)
			if err != nil {
				writeError(w, http.StatusUnauthorized, codeAccessDenied, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), callerKey{}, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
