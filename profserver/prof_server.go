/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package profserver provides an optional pprof HTTP server for the authcached daemon.
package profserver

import (
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/acronis/go-authcache/log"
	"github.com/acronis/go-authcache/service"
)

const readHeaderTimeout = 5 * time.Second

// ProfServer serves pprof endpoints under /debug/pprof/.
type ProfServer struct {
	HTTPServer *http.Server
	Logger     log.FieldLogger

	listener     net.Listener
	listenerAddr atomic.Value
	serveDone    chan struct{}
}

var _ service.Unit = (*ProfServer)(nil)

// New creates a new ProfServer. If listener is nil, a TCP listener on cfg.Address is created on Start.
func New(cfg *Config, logger log.FieldLogger, listener net.Listener) *ProfServer {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Mount("/debug", chimiddleware.Profiler())

	return &ProfServer{
		HTTPServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		Logger:    logger,
		listener:  listener,
		serveDone: make(chan struct{}),
	}
}

// Start serves profiling requests until Stop is called.
func (s *ProfServer) Start(fatalError chan<- error) {
	defer close(s.serveDone)

	logger := s.Logger.With(log.String("address", s.HTTPServer.Addr))
	logger.Info("starting profiling HTTP server...")

	if s.listener == nil {
		var err error
		if s.listener, err = net.Listen("tcp", s.HTTPServer.Addr); err != nil {
			logger.Error("profiling HTTP server error", log.Error(err))
			fatalError <- err
			return
		}
	}
	s.listenerAddr.Store(s.listener.Addr().String())

	if err := s.HTTPServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("profiling HTTP server error", log.Error(err))
		fatalError <- err
		return
	}
	logger.Info("profiling HTTP server closed")
}

// Stop closes the server. Profiling requests are never waited for, so gracefully is ignored.
func (s *ProfServer) Stop(_ bool) error {
	s.Logger.Info("closing profiling HTTP server...")
	if err := s.HTTPServer.Close(); err != nil {
		s.Logger.Error("profiling HTTP server closing error", log.Error(err))
		return err
	}
	if _, started := s.listenerAddr.Load().(string); started {
		<-s.serveDone
	}
	return nil
}

// Addr returns the address the server listens on, or an empty string if it is not started yet.
func (s *ProfServer) Addr() string {
	addr, _ := s.listenerAddr.Load().(string)
	return addr
}
