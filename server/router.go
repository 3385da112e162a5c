package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// routes wires the URL surface. Ingestion POSTs are open; everything else
// under /{user} requires basic auth with a path-user match.
func (s *S) routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/{user}", func(r chi.Router) {
		r.Post("/", s.handleCreateUser)
		r.Delete("/", s.authed(s.handleDeleteUser))
		r.Route("/{bucket}", func(r chi.Router) {
			r.Post("/", s.authed(s.handleCreateBucket))
			r.Get("/", s.authed(s.handleBucketSummary))
			r.Delete("/", s.authed(s.handleDeleteBucket))
			r.Post("/event/{name}", s.handleRecordEvent)
			r.Get("/event/{name}", s.authed(s.handleEventQuery))
			r.Post("/property/{name}", s.handleRecordProperty)
			r.Get("/property/{name}", s.authed(s.handlePropertyQuery))
		})
	})
	return r
}
