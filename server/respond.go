package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"hiitrack.dev/engine"
	"hiitrack.dev/store"
)

type errorBody struct {
	Error string `json:"error"`
}

func (s *S) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.lg.Error("response encode", zap.Error(err))
	}
}

func (s *S) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, errorBody{Error: msg})
}

// respondEngineError maps the error taxonomy onto statuses. Transient store
// failures get a retry-after hint; anything unrecognized is a 500 and logged.
func (s *S) respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrBadRequest):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrNotAuthorized):
		s.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, engine.ErrNoSuchUser),
		errors.Is(err, engine.ErrNoSuchBucket):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrTransient):
		w.Header().Set("Retry-After", "1")
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.lg.Error("handler", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}
