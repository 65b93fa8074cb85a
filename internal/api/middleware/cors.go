package middleware

import (
	"net/http"
)

// CORS returns middleware that answers preflight requests and sets the CORS
// headers for the configured origins. An origin of "*" allows any origin.
// CORS must wrap Auth so OPTIONS preflight requests bypass authentication.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	origins := make(map[string]struct{}, len(allowedOrigins))

	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}

		origins[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				_, allowed := origins[origin]
				if allowAll {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}

				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
