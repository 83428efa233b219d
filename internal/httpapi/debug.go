package httpapi

import (
	"crypto/subtle"
	"net/http"
	hpprof "net/http/pprof"
	"strings"

	"github.com/go-chi/chi/v5"
)

// PprofConfig enables /debug/pprof/. An empty Token leaves it open.
type PprofConfig struct {
	Token string
}

func pprofRouter(cfg PprofConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(bearerAuth(cfg.Token))
	r.HandleFunc("/", hpprof.Index)
	r.HandleFunc("/cmdline", hpprof.Cmdline)
	r.HandleFunc("/profile", hpprof.Profile)
	r.HandleFunc("/symbol", hpprof.Symbol)
	r.HandleFunc("/trace", hpprof.Trace)
	// Named profiles (heap, goroutine, block, ...) are served by Index.
	r.HandleFunc("/{profile}", hpprof.Index)
	return r
}

// bearerAuth accepts "Authorization: Bearer <token>" or ?token=<token>.
func bearerAuth(token string) func(http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		if tok == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.URL.Query().Get("token")
			if got == "" {
				got = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(tok)) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
