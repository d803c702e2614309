package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/faucetdb/memberapi/internal/service"
)

type contextKeyAuth string

const (
	// AuthContextKey is the context key for the request's AuthContext.
	AuthContextKey contextKeyAuth = "auth_context"

	authSlotKey contextKeyAuth = "auth_slot"
)

// Authentication methods recorded on AuthContext.
const (
	MethodBasic  = "basic"
	MethodBearer = "bearer"
)

// Realm is announced in WWW-Authenticate challenges.
const Realm = "Member API"

// Authenticator checks admin credentials. *service.AuthService satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*service.Principal, error)
	ValidateToken(ctx context.Context, token string) (*service.Principal, error)
}

// AuthContext describes the admin making the request.
type AuthContext struct {
	Principal *service.Principal
	Method    string
}

// RequireAdmin returns an HTTP middleware that admits only authenticated,
// active admins. It accepts either of:
//
//  1. HTTP basic credentials, checked against the stored password hash
//  2. a Bearer session token issued by POST /api/session
//
// On success an *AuthContext is attached to the request context. Every
// failure is answered with 401 and a Basic challenge.
func RequireAdmin(auth Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				principal *service.Principal
				method    string
				err       error
			)

			authHeader := r.Header.Get("Authorization")
			if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
				method = MethodBearer
				principal, err = auth.ValidateToken(r.Context(), strings.TrimSpace(token))
			} else if username, password, ok := r.BasicAuth(); ok {
				method = MethodBasic
				principal, err = auth.Authenticate(r.Context(), username, password)
			} else {
				writeAuthError(w, http.StatusUnauthorized,
					"Authentication required. Provide basic credentials or a Bearer token.")
				return
			}

			if err != nil {
				logger.Warn("admin authentication failed",
					"method", method,
					"request_id", GetRequestID(r.Context()),
					"error", err,
				)
				writeAuthError(w, http.StatusUnauthorized, authFailureMessage(err))
				return
			}

			ctx := WithAuthContext(r.Context(), &AuthContext{Principal: principal, Method: method})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authFailureMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, service.ErrInactive):
		return "Account is disabled"
	default:
		return "Unauthorized"
	}
}

// WithAuthContext returns a copy of ctx carrying ac.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	if slot, ok := ctx.Value(authSlotKey).(*authSlot); ok {
		slot.ac = ac
	}
	return context.WithValue(ctx, AuthContextKey, ac)
}

// authSlot carries an AuthContext back out to middleware that wraps
// RequireAdmin.
type authSlot struct {
	ac *AuthContext
}

func withAuthSlot(ctx context.Context, slot *authSlot) context.Context {
	return context.WithValue(ctx, authSlotKey, slot)
}

// GetAuthContext extracts the AuthContext from ctx. Returns nil if the
// request was not authenticated.
func GetAuthContext(ctx context.Context) *AuthContext {
	if ac, ok := ctx.Value(AuthContextKey).(*AuthContext); ok {
		return ac
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    status,
			"message": message,
		},
	})
}
