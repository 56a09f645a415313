package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "arklicense/internal/errors"
)

// AdminTokenHeader carries the shared admin credential.
const AdminTokenHeader = "X-Admin-Token"

// AdminAuth gates admin routes behind a shared token. When no token is
// configured the gate fails closed and every admin request is rejected.
// Comparison is constant time.
func AdminAuth(adminToken string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if adminToken == "" {
				logger.WarnContext(ctx, "admin request rejected, no admin token configured",
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				render.Render(w, r, apierrors.ErrAdminUnauthorized)
				return
			}

			presented := r.Header.Get(AdminTokenHeader)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(adminToken)) != 1 {
				logger.WarnContext(ctx, "admin request rejected, bad credential",
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				render.Render(w, r, apierrors.ErrAdminUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
