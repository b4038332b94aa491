package ingest

import (
	"net/http"
	hpprof "net/http/pprof"
	"strings"
)

const pprofPrefix = "/debug/pprof/"

// mountPprof registers the runtime profiling endpoints under /debug/pprof/.
// A non-empty token is required as "Authorization: Bearer <token>" or
// ?token=<token>.
func mountPprof(mux *http.ServeMux, token string) {
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return withToken(token, h) }
	base := strings.TrimSuffix(pprofPrefix, "/")
	mux.HandleFunc("GET "+pprofPrefix, wrap(hpprof.Index))
	mux.HandleFunc("GET "+base+"/cmdline", wrap(hpprof.Cmdline))
	mux.HandleFunc("GET "+base+"/profile", wrap(hpprof.Profile))
	mux.HandleFunc("GET "+base+"/symbol", wrap(hpprof.Symbol))
	mux.HandleFunc("POST "+base+"/symbol", wrap(hpprof.Symbol))
	mux.HandleFunc("GET "+base+"/trace", wrap(hpprof.Trace))
}

func withToken(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "" {
			if got == tok {
				h(w, r)
				return
			}
			unauthorized(w)
			return
		}
		const p = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
			h(w, r)
			return
		}
		unauthorized(w)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
