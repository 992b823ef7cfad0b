package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/derushio/d-next-ddd-example-sub002/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitByIP is a coarse per-client guard in front of the sign-in limiter.
// Client addresses are resolved with the same trusted-proxy rules as the rest
// of the service. A non-positive limit disables it.
func RateLimitByIP(requestsPerMinute int, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded", time.Minute)
		}),
	)
}
