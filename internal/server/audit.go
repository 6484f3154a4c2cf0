package server

import (
	"context"
	"time"

	"socket-file-drop/internal/db"
)

// AuditRecorder stores file events. *db.Recorder satisfies it.
type AuditRecorder interface {
	Record(ctx context.Context, ev db.Event) error
}

// dependencyTimeout bounds every mirror or audit call made while a client
// is waiting.
const dependencyTimeout = 5 * time.Second

// record writes ev to the audit trail, if one is configured. Failures are
// logged and counted; they never change the response.
func (s *Server) record(c *call, ev db.Event) {
	if s.cfg.Audit == nil {
		return
	}
	ev.RemoteAddr = c.ip
	ev.RequestID = c.rid
	err := s.auditBreaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(c.ctx, dependencyTimeout)
		defer cancel()
		return s.cfg.Audit.Record(ctx, ev)
	})
	if err != nil {
		s.metrics.RecordAuditError()
		s.log.Warn("audit_record_failed", map[string]any{
			"rid":    c.rid,
			"action": string(ev.Action),
			"name":   ev.FileName,
			"error":  err.Error(),
		})
	}
}

// mirrorPut copies a written file to the mirror bucket.
func (s *Server) mirrorPut(c *call, name string, content []byte, contentType string) {
	if s.cfg.Mirror == nil {
		return
	}
	s.mirrorDo(c, "put", name, func(ctx context.Context) error {
		return s.cfg.Mirror.Put(ctx, name, content, contentType)
	})
}

// mirrorRemove drops a deleted file from the mirror bucket.
func (s *Server) mirrorRemove(c *call, name string) {
	if s.cfg.Mirror == nil {
		return
	}
	s.mirrorDo(c, "remove", name, func(ctx context.Context) error {
		return s.cfg.Mirror.Remove(ctx, name)
	})
}

func (s *Server) mirrorDo(c *call, op, name string, fn func(context.Context) error) {
	err := s.mirrorBreaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(c.ctx, dependencyTimeout)
		defer cancel()
		return fn(ctx)
	})
	if err != nil {
		s.metrics.RecordMirrorError()
		s.log.Warn("mirror_failed", map[string]any{
			"rid":   c.rid,
			"op":    op,
			"name":  name,
			"error": err.Error(),
		})
	}
}
