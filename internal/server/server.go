package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"socket-file-drop/internal/store"
	"socket-file-drop/internal/wire"
)

// ErrServerClosed is returned by Serve and Start after Shutdown.
var ErrServerClosed = errors.New("server closed")

const (
	breakerMaxFailures = 5
	breakerTimeout     = 30 * time.Second
)

// Server answers one connection at a time.
type Server struct {
	cfg     Config
	store   *store.Store
	accum   wire.Accumulator
	log     *Logger
	metrics *Metrics
	now     func() time.Time

	mirrorBreaker *CircuitBreaker
	auditBreaker  *CircuitBreaker

	// ctx is cancelled once the loop has stopped; it bounds dependency
	// calls and the watcher.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	ln      net.Listener
	active  net.Conn
	closing bool
	done    chan struct{}
}

// New prepares a server. The upload root must already exist.
func New(cfg Config) (*Server, error) {
	st, err := store.New(cfg.UploadRoot)
	if err != nil {
		return nil, err
	}
	lg := cfg.Logger
	if lg == nil {
		lg = DefaultLogger
	}
	if cfg.Debug && lg.Level() != LogLevelDebug {
		lg = lg.WithLevel(LogLevelDebug)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:           cfg,
		store:         st,
		accum:         wire.Accumulator{ChunkSize: wire.DefaultChunkSize, BinaryBodies: cfg.BinaryBodies},
		log:           lg,
		metrics:       NewMetrics(),
		now:           time.Now,
		mirrorBreaker: NewCircuitBreaker("mirror", breakerMaxFailures, breakerTimeout, lg),
		auditBreaker:  NewCircuitBreaker("audit", breakerMaxFailures, breakerTimeout, lg),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}, nil
}

// Metrics returns the server's counters.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections on ln and handles each to completion before
// accepting the next.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	if s.ln != nil {
		s.mu.Unlock()
		return errors.New("server is already serving")
	}
	s.ln = ln
	s.mu.Unlock()
	defer close(s.done)

	if s.cfg.WatchUploads {
		s.watchUploads()
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
		s.serveConn(conn)
	}
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) setActive(conn net.Conn) {
	s.mu.Lock()
	s.active = conn
	s.mu.Unlock()
}

// Shutdown stops accepting, lets the connection in hand finish, and logs the
// final counters. If ctx ends first the connection is closed under it.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	ln := s.ln
	s.mu.Unlock()
	defer s.cancel()

	if ln == nil {
		return nil
	}
	err := ln.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		s.mu.Lock()
		if s.active != nil {
			_ = s.active.Close()
		}
		s.mu.Unlock()
		return ctx.Err()
	}

	s.log.Info("metrics", s.metrics.Snapshot().Fields())
	return err
}

func (s *Server) serveConn(conn net.Conn) {
	s.setActive(conn)
	defer s.setActive(nil)
	defer conn.Close()

	start := s.now()
	c := &call{ctx: s.ctx, rid: newRequestID(), ip: clientIP(conn.RemoteAddr())}
	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(start.Add(s.cfg.ReadTimeout))
	}

	raw, err := s.accum.Read(conn)
	if err != nil && wire.KindOf(err) != wire.KindMalformed {
		// Undecodable, truncated or timed out: no response.
		s.metrics.RecordDropped()
		s.log.Debug("connection_dropped", map[string]any{
			"rid":    c.rid,
			"ip":     c.ip,
			"reason": err.Error(),
		})
		return
	}

	resp := s.respond(c, raw, err)
	n, werr := resp.WriteTo(conn)
	if werr != nil {
		s.log.Warn("write_failed", map[string]any{"rid": c.rid, "error": werr.Error()})
	}

	d := s.now().Sub(start)
	s.metrics.RecordRequest(resp.Status, d)
	method, path := "-", "-"
	if c.req != nil {
		method, path = c.req.Method, c.req.Path
	}
	logAccess(c.rid, method, path, resp.Status, d, n, c.ip)
}

// respond turns accumulated bytes into exactly one response.
func (s *Server) respond(c *call, raw []byte, readErr error) *wire.Response {
	if readErr != nil {
		return s.errorResponse(readErr, "")
	}
	req, err := wire.ParseRequest(raw)
	if err != nil {
		return s.errorResponse(err, "")
	}
	c.req = req
	c.path = req.Route()
	if s.cfg.Debug {
		s.logRequest(c.rid, req)
	}

	resp, err := s.dispatch(c)
	if err != nil {
		if statusFor(err) == 500 {
			s.log.Error("request_failed", map[string]any{
				"rid":    c.rid,
				"method": req.Method,
				"path":   c.path,
			}, err)
		}
		return s.errorResponse(err, req.Method)
	}
	if req.Method == wire.MethodHead {
		resp.Body = nil
	}
	return resp
}

// watchUploads logs changes made to the upload root while serving.
func (s *Server) watchUploads() {
	err := s.store.Watch(s.ctx, func(ch store.Change) {
		s.metrics.RecordExternalChange()
		s.log.Debug("upload_root_changed", map[string]any{"name": ch.Name, "op": ch.Op})
	}, func(err error) {
		s.log.Warn("upload_root_watch_error", map[string]any{"error": err.Error()})
	})
	if err != nil {
		s.log.Warn("upload_root_watch_disabled", map[string]any{"error": err.Error()})
	}
}
