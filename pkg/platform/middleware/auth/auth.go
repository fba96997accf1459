package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "docucred/pkg/domain"
	dErrors "docucred/pkg/domain-errors"
	"docucred/pkg/platform/httputil"
	"docucred/pkg/requestcontext"
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// ValidatorFunc adapts a plain function to TokenValidator.
type ValidatorFunc func(tokenString string) (*Claims, error)

func (f ValidatorFunc) ValidateToken(tokenString string) (*Claims, error) {
	return f(tokenString)
}

// Claims is the subset of token claims the middleware needs.
type Claims struct {
	UserID   string
	Username string
}

var (
	errMissingToken = dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header")
	errInvalidToken = dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token")
)

// RequireAuth rejects requests without a valid bearer token with 401 and
// stores the authenticated user in the context otherwise.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reject := func(reason string, err, public error) {
				logger.WarnContext(ctx, "unauthorized request",
					"reason", reason,
					"error", err,
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, public)
			}

			token, ok := bearerToken(r)
			if !ok {
				reject("missing token", nil, errMissingToken)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				reject("invalid token", err, errInvalidToken)
				return
			}

			userID, err := id.ParseUserID(claims.UserID)
			if err != nil {
				reject("malformed user claim", err, errInvalidToken)
				return
			}

			ctx = requestcontext.WithUser(ctx, userID, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>". The
// scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
