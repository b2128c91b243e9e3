// Package server is the streamable HTTP transport: one listening socket,
// JSON envelopes over POST, sessions correlated by header and reaped on idle
// timeout.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/esmcp/dispatch"
)

type Server struct {
	StartTime time.Time
	Svr       *http.Server

	log        zerolog.Logger
	dispatcher *dispatch.Dispatcher
	sessions   *sessionManager
}

func NewServer(cfg Conf, d *dispatch.Dispatcher, log zerolog.Logger) *Server {
	s := &Server{
		StartTime:  time.Now().UTC(),
		log:        log,
		dispatcher: d,
		sessions:   newSessionManager(cfg.IdleSession),
	}
	s.Svr = &http.Server{
		Handler:      s.routes(),
		Addr:         cfg.Addr,
		ReadTimeout:  cfg.TimeoutRead,
		WriteTimeout: cfg.TimeoutWrite,
		IdleTimeout:  cfg.TimeoutIdle,
	}
	return s
}

// RunTime returns the current run time of the server as a HH:MM:SS string.
func (s *Server) RunTime() string {
	duration := time.Duration(int64(time.Since(s.StartTime).Seconds())) * time.Second
	return time.Time{}.Add(duration).Format("15:04:05")
}

// Run serves until ctx is done or an interrupt/terminate signal arrives,
// then shuts down with a 10 second grace period. In-flight sessions are
// closed, which cancels their handlers.
func (s *Server) Run(ctx context.Context) error {
	serverCtx, serverStopCtx := context.WithCancel(ctx)
	defer serverStopCtx()

	go s.sessions.run(serverCtx)

	// listen for syscall signals for process to interrupt/quit
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sig)

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.Svr.Addr).Msg("starting server")
		if err := s.Svr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			return
		}
		errc <- nil
	}()

	select {
	case err := <-errc:
		// Listener failed before any shutdown was requested.
		return err
	case <-sig:
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	s.sessions.closeAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Svr.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Msg("shutdown timed out, forcing close")
		if cerr := s.Svr.Close(); cerr != nil {
			return fmt.Errorf("server shutdown failed: %w", cerr)
		}
	}
	s.log.Info().Str("run_time", s.RunTime()).Msg("server stopped")
	return <-errc
}
