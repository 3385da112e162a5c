package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hiitrack.dev/engine"
)

// authed wraps a handler with basic auth and the path-user check. Missing
// or bad credentials are 401; a valid user acting on another user's path
// is 403.
func (s *S) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="hiitrack"`)
			s.respondError(w, http.StatusUnauthorized, "auth required")
			return
		}
		valid, err := s.Engine.Authenticate(r.Context(), user, password)
		if err != nil {
			s.respondEngineError(w, err)
			return
		}
		if !valid {
			w.Header().Set("WWW-Authenticate", `Basic realm="hiitrack"`)
			s.respondError(w, http.StatusUnauthorized, "bad credentials")
			return
		}
		if err = engine.Authorize(user, chi.URLParam(r, "user")); err != nil {
			s.respondEngineError(w, err)
			return
		}
		next(w, r)
	}
}
