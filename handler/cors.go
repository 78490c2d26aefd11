package handler

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
)

// preflightMethods are the methods a preflight response may offer. Only those
// the router serves for the requested path are listed.
var preflightMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}

// cors sets the allow-origin header and answers preflight requests from the
// route table. An origin list containing "*" allows any origin.
func (h *Handler) cors(next http.Handler) http.Handler {
	allowAll := slices.Contains(h.origins, "*")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.ContainsFunc(h.origins, func(o string) bool { return strings.TrimSpace(o) == origin }):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}

		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		methods := h.routeMethods(r.URL.Path)
		if len(methods) == 0 {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(append(methods, http.MethodOptions), ", "))
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "600")
		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *Handler) routeMethods(path string) []string {
	var methods []string
	for _, m := range preflightMethods {
		if h.router.Match(chi.NewRouteContext(), m, path) {
			methods = append(methods, m)
		}
	}
	return methods
}
