package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *S) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	if err := s.Engine.CreateUser(
		r.Context(), user, r.PostFormValue("password"),
	); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"user": user})
}

func (s *S) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.DeleteUser(
		r.Context(), chi.URLParam(r, "user"),
	); err != nil {
		s.respondEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
