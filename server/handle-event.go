package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"hiitrack.dev/keys"
)

func (s *S) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.RecordEvent(
		r.Context(), chi.URLParam(r, "user"), chi.URLParam(r, "bucket"),
		[]byte(r.PostFormValue("visitor_id")), chi.URLParam(r, "name"),
		time.Now(),
	); err != nil {
		s.respondEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleEventQuery dispatches the four GET event shapes on the property and
// start/finish parameters. Unknown event names yield empty aggregates.
func (s *S) handleEventQuery(w http.ResponseWriter, r *http.Request) {
	c := r.Context()
	user := chi.URLParam(r, "user")
	bucket := chi.URLParam(r, "bucket")
	name := chi.URLParam(r, "name")

	ok, err := s.Engine.BucketExists(c, user, bucket)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	if !ok {
		s.respondError(w, http.StatusNotFound, "no such bucket")
		return
	}

	q := r.URL.Query()
	property := q.Get("property")
	timed := q.Has("start") || q.Has("finish")
	if !timed {
		if property != "" {
			v, err := s.Engine.EventPropertyTotals(
				c, user, bucket, name, property,
			)
			if err != nil {
				s.respondEngineError(w, err)
				return
			}
			s.respondJSON(w, http.StatusOK, v)
			return
		}
		v, err := s.Engine.EventTotals(c, user, bucket, name)
		if err != nil {
			s.respondEngineError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, v)
		return
	}

	iv, ok := keys.ParseInterval(q.Get("interval"))
	if !ok {
		s.respondError(w, http.StatusBadRequest, "unknown interval")
		return
	}
	start, finish, err := timeRange(q.Get("start"), q.Get("finish"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "bad time range")
		return
	}
	if property != "" {
		v, err := s.Engine.EventPropertySeries(
			c, user, bucket, name, property, iv, start, finish,
		)
		if err != nil {
			s.respondEngineError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, v)
		return
	}
	v, err := s.Engine.EventSeries(
		c, user, bucket, name, iv, start, finish,
	)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, v)
}

// timeRange parses epoch-second bounds; a missing start means the epoch and
// a missing finish means now.
func timeRange(startS, finishS string) (start, finish int64, err error) {
	finish = time.Now().Unix()
	if startS != "" {
		if start, err = strconv.ParseInt(startS, 10, 64); err != nil {
			return
		}
	}
	if finishS != "" {
		if finish, err = strconv.ParseInt(finishS, 10, 64); err != nil {
			return
		}
	}
	return
}
