package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"gail/internal/agent"
)

// authed resolves the bearer token to a principal and stores it on the
// request context. Unknown or missing tokens get 401.
func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := s.principal(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="gail"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		h(w, r.WithContext(agent.ContextWithPrincipal(r.Context(), principal)))
	})
}

func (s *Server) principal(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	var principal string
	found := false
	for t, p := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			principal, found = p, true
		}
	}
	return principal, found
}
