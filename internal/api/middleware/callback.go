package middleware

import (
	"net/http"

	"github.com/edvin/peacock/internal/core"
)

// CallbackURL extracts the X-Callback-URL header into the request context.
// Provision requests signalled from that context post their result to it.
func CallbackURL(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if url := r.Header.Get("X-Callback-URL"); url != "" {
			r = r.WithContext(core.WithCallbackURL(r.Context(), url))
		}
		next.ServeHTTP(w, r)
	})
}
