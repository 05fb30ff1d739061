package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jonwraymond/ledgerops/observe"
)

// Middleware authenticates every request with a and attaches the
// identity to the request context. Requests without acceptable
// credentials get 401 with a JSON error body.
//
// Usage:
//
//	mux.Handle("/records/", auth.Middleware(authn, logger)(recordsHandler))
func Middleware(a Authenticator, logger observe.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var (
				id  *Identity
				err error
			)
			if a.Supports(r.Header) {
				id, err = a.Authenticate(ctx, r.Header)
			} else {
				err = ErrMissingCredentials
			}
			if err != nil {
				if !errors.Is(err, ErrMissingCredentials) {
					logger.Warn(ctx, "authentication failed",
						observe.Field{Key: "method", Value: a.Name()},
						observe.Field{Key: "path", Value: r.URL.Path},
						observe.Field{Key: "error", Value: err.Error()},
					)
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="ledgerops"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
		})
	}
}
