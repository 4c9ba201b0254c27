package auth

import (
	"log/slog"
	"net/http"

	"github.com/Vasu1712/scenyx-dms/internal/logging"
)

// Middleware verifies the request token and stores the identity and a
// user-scoped logger in the request context.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx)

			token, err := TokenFromRequest(r)
			if err != nil {
				logger.Info("rejecting request without token", slog.String(logging.ErrorMsgField, err.Error()))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			id, err := verifier.Verify(ctx, token)
			if err != nil {
				logger.Info("error while authenticating", slog.String(logging.ErrorMsgField, err.Error()))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = WithIdentity(ctx, id)
			ctx = logging.WithLogger(ctx, logger.With(slog.String(logging.UserIDField, id.ID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
