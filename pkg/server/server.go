// pkg/server/server.go
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/steeze-handoff/pkg/config"
	"github.com/joeydtaylor/steeze-handoff/pkg/handler"
	"github.com/joeydtaylor/steeze-handoff/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-handoff/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-handoff/pkg/registry"
	"github.com/joeydtaylor/steeze-handoff/pkg/transport/httpx"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ErrStarted is returned by Start on a server that was already started.
var ErrStarted = errors.New("server: already started")

// Server owns one registry actor and the HTTP listener in front of it.
type Server struct {
	cfg     config.Config
	log     *zap.Logger
	access  *logger.Middleware
	metrics *metrics.Metrics
	actor   *registry.Actor
	srv     *http.Server

	mu       sync.Mutex
	ln       net.Listener
	serveErr chan error
}

type Option func(*options)

type options struct {
	log    *zap.Logger
	access *logger.Middleware
	reg    *prometheus.Registry
	router httpx.Router
}

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// WithAccessLog sets the access-log middleware; without it requests are not logged.
func WithAccessLog(m *logger.Middleware) Option { return func(o *options) { o.access = m } }

// WithRegistry registers the server's collectors with reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option { return func(o *options) { o.reg = reg } }

func WithRouter(r httpx.Router) Option { return func(o *options) { o.router = r } }

// New wires the actor, handler and router for cfg without binding anything.
func New(cfg config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{log: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.router == nil {
		o.router = httpx.NewChi()
	}

	m, err := metrics.New(o.reg)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	log := o.log.With(zap.String("service", cfg.Service))

	actor := registry.New(
		registry.WithQueueSize(cfg.QueueSize),
		registry.WithBlockSize(cfg.BlockSize),
		registry.WithLogger(log),
		registry.WithObserver(m),
		registry.WithReservedPaths(cfg.MetricsPath, cfg.HeartbeatPath, cfg.StatusPath),
	)

	s := &Server{
		cfg:     cfg,
		log:     log,
		access:  o.access,
		metrics: m,
		actor:   actor,
	}
	// WriteTimeout bounds a whole download; 0 leaves it to IdleTimeout and the client.
	s.srv = &http.Server{
		Handler:      s.routes(o.router),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  cfg.IdleTimeout(),
		TLSConfig:    &tls.Config{MinVersion: tls.VersionTLS13, MaxVersion: tls.VersionTLS13},
		ErrorLog:     zap.NewStdLog(log),
	}
	return s, nil
}

func (s *Server) routes(r httpx.Router) http.Handler {
	r.Use(chimd.RequestID, chimd.Recoverer)
	if p := s.cfg.HeartbeatPath; p != "" {
		r.Use(chimd.Heartbeat(p))
	}
	if s.access != nil {
		r.Use(s.access.Middleware())
	}
	r.Use(s.metrics.Collect())

	s.metrics.SetPathNormalizer(httpx.RoutePattern)
	if p := s.cfg.MetricsPath; p != "" {
		s.metrics.AddSkipPaths(p)
		r.Get(p, s.metrics.Handler())
	}
	if p := s.cfg.StatusPath; p != "" {
		r.Get(p, http.HandlerFunc(s.status))
	}

	r.Any(httpx.CatchAll, handler.New(s.actor,
		handler.WithLogger(s.log),
		handler.WithBodyBuffer(s.cfg.BodyBuffer),
	))
	return r.Mux()
}

// Serve binds addr and starts serving with default settings. It is the
// one-call form of New followed by Start.
func Serve(addr string, opts ...Option) (*Server, error) {
	cfg := config.Default()
	cfg.Listen = addr
	s, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

// Start binds the listener, then runs the actor and the HTTP server in the
// background. Bind errors are returned here.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return ErrStarted
	}

	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	useTLS := fileExists(s.cfg.TLSCert) && fileExists(s.cfg.TLSKey)
	s.ln = ln
	s.serveErr = make(chan error, 1)

	go s.actor.Run(context.Background())

	if useTLS {
		s.log.Info("server starting (TLS)",
			zap.String("addr", ln.Addr().String()),
			zap.String("cert", s.cfg.TLSCert),
		)
	} else {
		s.log.Info("server starting (PLAINTEXT)", zap.String("addr", ln.Addr().String()))
		s.srv.TLSConfig = nil
	}

	go func() {
		var err error
		if useTLS {
			err = s.srv.ServeTLS(ln, s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = s.srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			s.log.Error("server failed", zap.Error(err))
		}
		// the registry does not outlive its listener
		s.actor.Stop()
		s.serveErr <- err
		close(s.serveErr)
	}()

	s.registerSeeds()
	return nil
}

func (s *Server) registerSeeds() {
	reg := s.actor.Registrator()
	for _, f := range s.cfg.Files {
		if err := reg.RegisterFile(context.Background(), f.Path, f.Source, f.Name); err != nil {
			s.log.Error("seed registration failed",
				zap.String("path", f.Path),
				zap.String("source", f.Source),
				zap.Error(err),
			)
		}
	}
}

// Registrator returns the handle for registering files on this server.
func (s *Server) Registrator() registry.Registrator { return s.actor.Registrator() }

// Pending reports how many registered files have not been served yet.
func (s *Server) Pending(ctx context.Context) (int, error) { return s.actor.Len(ctx) }

// Registry exposes the Prometheus registerer holding the server's collectors.
func (s *Server) Registry() prometheus.Registerer { return s.metrics.Registerer() }

// Addr is the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Wait blocks until the server stops and returns the serve error, if any.
func (s *Server) Wait() error {
	s.mu.Lock()
	ch := s.serveErr
	s.mu.Unlock()
	if ch == nil {
		return nil
	}
	err := <-ch
	<-s.actor.Done()
	return err
}

// Shutdown stops accepting requests, waits for in-flight responses within
// ctx, then stops the actor and releases every unserved file.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server stopping")
	err := s.srv.Shutdown(ctx)
	s.actor.Stop()
	if s.Addr() == nil {
		return err
	}
	select {
	case <-s.actor.Done():
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
