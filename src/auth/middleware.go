package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	logger "github.com/sirupsen/logrus"

	"riskexecutor/src/security"
)

// RequireOperator rejects requests whose bearer token does not match the bcrypt hash.
// With an empty hash every request is refused.
func RequireOperator(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := security.VerifyToken(tokenHash, bearerToken(r))
			switch {
			case errors.Is(err, security.ErrNoTokenHash):
				http.Error(w, "Operator routes disabled", http.StatusForbidden)
				return
			case err != nil:
				logger.WithFields(map[string]interface{}{
					"path":   r.URL.Path,
					"remote": r.RemoteAddr,
				}).WithError(err).Warn("operator token rejected")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), OperatorKey, &Operator{RemoteAddr: r.RemoteAddr})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
