/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/acronis/go-authcache/log"
)

// Server represents a wrapper around http.Server serving the credential API.
type Server struct {
	HTTPServer      *http.Server
	Logger          log.FieldLogger
	ShutdownTimeout time.Duration

	listener       net.Listener
	listenerAddr   atomic.Value
	httpServerDone atomic.Value
}

// NewServer creates a new Server with the given handler (usually created by NewRouter).
// If listener is nil, a TCP listener on cfg.Address is created on Start.
func NewServer(cfg *Config, handler http.Handler, logger log.FieldLogger, listener net.Listener) *Server {
	return &Server{
		HTTPServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		Logger:          logger,
		ShutdownTimeout: cfg.ShutdownTimeout,
		listener:        listener,
	}
}

// Start starts HTTP server in a blocking way.
// It's supposed that this method will be called in a separate goroutine.
// If a fatal error occurs, it will be sent to the fatalError channel.
func (s *Server) Start(fatalError chan<- error) {
	done := make(chan struct{})
	defer close(done)
	s.httpServerDone.Store(done)

	logger := s.Logger.With(
		log.String("address", s.HTTPServer.Addr),
		log.Duration("write_timeout", s.HTTPServer.WriteTimeout),
		log.Duration("read_timeout", s.HTTPServer.ReadTimeout),
		log.Duration("shutdown_timeout", s.ShutdownTimeout),
	)
	logger.Info("starting HTTP server...")

	if s.listener == nil {
		var err error
		if s.listener, err = net.Listen("tcp", s.HTTPServer.Addr); err != nil {
			logger.Error("HTTP server error", log.Error(err))
			fatalError <- err
			return
		}
	}
	s.listenerAddr.Store(s.listener.Addr().String())

	if err := s.HTTPServer.Serve(s.listener); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("HTTP server closed")
			return
		}
		logger.Error("HTTP server error", log.Error(err))
		fatalError <- err
	}
}

// Stop stops HTTP server (gracefully or not).
func (s *Server) Stop(gracefully bool) error {
	if !gracefully {
		s.Logger.Info("closing HTTP server...")
		if err := s.HTTPServer.Close(); err != nil {
			s.Logger.Error("HTTP server closing error", log.Error(err))
			return err
		}
		s.waitServeDone()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	s.Logger.Info("shutting down HTTP server...", log.Duration("timeout", s.ShutdownTimeout))
	if err := s.HTTPServer.Shutdown(ctx); err != nil {
		s.Logger.Error("HTTP server shutting down error", log.Error(err))
		return err
	}
	s.Logger.Info("HTTP server shut down")
	s.waitServeDone()
	return nil
}

// Addr returns the address the server listens on, or an empty string if it is not started yet.
func (s *Server) Addr() string {
	addr, _ := s.listenerAddr.Load().(string)
	return addr
}

func (s *Server) waitServeDone() {
	if done, ok := s.httpServerDone.Load().(chan struct{}); ok && done != nil {
		<-done // Wait for the listener to be closed.
	}
}
