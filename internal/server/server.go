package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jhon1466/PeerDrop/internal/broker"
)

const shutdownTimeout = 5 * time.Second

// Server runs the signaling broker over HTTP.
type Server struct {
	hub *broker.Hub
	srv *http.Server
	log zerolog.Logger
}

func New(addr string) *Server {
	hub := broker.NewHub()
	return &Server{
		hub: hub,
		srv: &http.Server{
			Addr:              addr,
			Handler:           requestLogger(NewRouter(hub)),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log.With().Str("component", "server").Logger(),
	}
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully. ready, if not nil, receives the bound address.
func (s *Server) Run(ctx context.Context, ready chan<- net.Addr) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("starting signaling server")
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if ready != nil {
		ready <- ln.Addr()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}

	s.log.Info().Msg("server exited")
	return nil
}

// requestLogger logs every plain HTTP request through zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}
