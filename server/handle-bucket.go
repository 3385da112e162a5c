package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *S) handleCreateBucket(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	bucket := chi.URLParam(r, "bucket")
	if err := s.Engine.CreateBucket(
		r.Context(), user, bucket, r.PostFormValue("description"),
	); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"bucket": bucket})
}

func (s *S) handleBucketSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.Engine.BucketSummary(
		r.Context(), chi.URLParam(r, "user"), chi.URLParam(r, "bucket"),
	)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *S) handleDeleteBucket(w http.ResponseWriter, r *http.Request) {
	c := r.Context()
	user := chi.URLParam(r, "user")
	bucket := chi.URLParam(r, "bucket")
	ok, err := s.Engine.BucketExists(c, user, bucket)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	if !ok {
		s.respondError(w, http.StatusNotFound, "no such bucket")
		return
	}
	if err = s.Engine.DeleteBucket(c, user, bucket); err != nil {
		s.respondEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
