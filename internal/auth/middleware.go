package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/isdelr/calcapi/internal/models"
	"github.com/rs/zerolog/log"
)

// UserLookup resolves a token subject to a stored user.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
}

// Error codes written by Middleware.
const (
	CodeUnauthorized = "unauthorized"
	CodeInvalidToken = "invalid_token"
	CodeInactiveUser = "inactive_user"
)

type contextKey string

// UserContextKey is the context key for the authenticated user.
const UserContextKey = contextKey("currentUser")

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserContextKey).(*models.User)
	return user
}

// Middleware creates a middleware for protecting routes. Only active users
// pass through.
func Middleware(issuer *TokenIssuer, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeAuthErr(w, http.StatusUnauthorized, CodeUnauthorized, "Missing auth token")
				return
			}

			subject, err := issuer.Verify(tokenStr)
			if err != nil {
				log.Debug().Err(err).Msg("Rejected bearer token")
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeAuthErr(w, http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
				return
			}

			user, err := users.GetUserByID(r.Context(), subject)
			if err != nil {
				log.Warn().Err(err).Str("user_id", subject).Msg("Token subject could not be resolved")
				writeAuthErr(w, http.StatusUnauthorized, CodeInvalidToken, "User not found")
				return
			}
			if !user.IsActive {
				writeAuthErr(w, http.StatusBadRequest, CodeInactiveUser, "Inactive user")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), &user)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthErr(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
