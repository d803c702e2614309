package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit returns an HTTP middleware that limits requests per IP address
// to the specified number per minute. Uses a sliding window algorithm.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

// RateLimitLogin limits credential attempts per basic-auth username and
// client IP. Requests without basic credentials share the IP key. Requests
// carrying a bearer token are not password attempts and pass through
// uncounted. Apply it in front of RequireAdmin to slow password guessing
// against one account.
func RateLimitLogin(attemptsPerMinute int) func(http.Handler) http.Handler {
	limit := httprate.Limit(
		attemptsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(loginKey),
	)
	return func(next http.Handler) http.Handler {
		limited := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hasBearer(r) {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

func hasBearer(r *http.Request) bool {
	scheme, _, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	return ok && strings.EqualFold(scheme, "Bearer")
}

func loginKey(r *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if username, _, ok := r.BasicAuth(); ok {
		return ip + "|" + username, nil
	}
	return ip, nil
}
