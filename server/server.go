// Package server is the HTTP front of the tracker: routing, basic auth,
// form decoding, and the error-to-status mapping. All aggregation happens
// in the engine; handlers translate between the wire and engine calls.
package server

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"hiitrack.dev/engine"
	"hiitrack.dev/store"
	"hiitrack.dev/utils/context"
)

// statsEvery is the cadence of the ingest counter log line.
const statsEvery = time.Minute

type S struct {
	Ctx    context.T
	Cancel context.F
	WG     sync.WaitGroup
	Addr   string
	Engine *engine.E
	Store  store.Conn

	lg         *zap.Logger
	router     http.Handler
	httpServer *http.Server
}

func New(ctx context.T, cancel context.F, addr string, e *engine.E,
	st store.Conn, lg *zap.Logger) (s *S) {
	s = &S{
		Ctx:    ctx,
		Cancel: cancel,
		Addr:   addr,
		Engine: e,
		Store:  st,
		lg:     lg,
	}
	s.router = s.routes()
	return
}

func (s *S) Start() (err error) {
	var listener net.Listener
	if listener, err = net.Listen("tcp", s.Addr); err != nil {
		return
	}
	s.httpServer = &http.Server{
		Handler:           cors.Default().Handler(s),
		Addr:              s.Addr,
		ReadHeaderTimeout: 7 * time.Second,
		IdleTimeout:       28 * time.Second,
	}
	s.WG.Add(1)
	go s.statsLoop()
	s.lg.Info("listening", zap.String("addr", s.Addr))
	if err = s.httpServer.Serve(listener); errors.Is(
		err, http.ErrServerClosed,
	) {
		err = nil
	}
	return
}

// ServeHTTP is the server http.Handler.
func (s *S) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *S) Shutdown() {
	s.lg.Warn("shutting down")
	s.Cancel()
	s.WG.Wait()
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(context.Bg()); err != nil {
			s.lg.Error("listener shutdown", zap.Error(err))
		}
	}
	if err := s.Store.Close(); err != nil {
		s.lg.Error("store close", zap.Error(err))
	}
}

// statsLoop logs the ingest counters once a minute until shutdown.
func (s *S) statsLoop() {
	defer s.WG.Done()
	ticker := time.NewTicker(statsEvery)
	defer ticker.Stop()
	for {
		select {
		case <-s.Ctx.Done():
			return
		case <-ticker.C:
			s.lg.Info(
				"ingest",
				zap.Int64("events", s.Engine.Events.Load()),
				zap.Int64("properties", s.Engine.Properties.Load()),
				zap.Int64("inserts", store.FlushedInserts.Load()),
				zap.Int64("adds", store.FlushedAdds.Load()),
			)
		}
	}
}
