package server

import (
	"encoding/base64"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleRecordProperty decodes the base64 JSON payload from the value query
// parameter and tags the visitor with it.
func (s *S) handleRecordProperty(w http.ResponseWriter, r *http.Request) {
	value, err := base64.StdEncoding.DecodeString(r.URL.Query().Get("value"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "value is not base64")
		return
	}
	if err = s.Engine.RecordProperty(
		r.Context(), chi.URLParam(r, "user"), chi.URLParam(r, "bucket"),
		[]byte(r.PostFormValue("visitor_id")), chi.URLParam(r, "name"),
		value,
	); err != nil {
		s.respondEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *S) handlePropertyQuery(w http.ResponseWriter, r *http.Request) {
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
	v, err := s.Engine.PropertyTotals(
		c, user, bucket, chi.URLParam(r, "name"),
	)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, v)
}
