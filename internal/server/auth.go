package server

import (
	"time"

	"socket-file-drop/internal/wire"
)

// tokenTTL is how long the issued cookie stays valid in the browser.
const tokenTTL = time.Hour

// authenticate reports whether the request carries the configured token in
// its Cookie header. The cookie value is compared as sent, never hashed.
func (s *Server) authenticate(req *wire.Request) bool {
	raw, ok := req.Header("Cookie")
	if !ok {
		return false
	}
	c, err := wire.ParseCookie(raw)
	if err != nil {
		return false
	}
	tok, ok := c.Get("token")
	return ok && tok == s.cfg.TokenHash
}

// requireAuth returns an Unauthorized error for requests without the token.
func (s *Server) requireAuth(c *call) error {
	if s.authenticate(c.req) {
		return nil
	}
	s.metrics.RecordAuthFailure()
	return wire.Errorf(wire.KindUnauthorized, "%s %s requires the access token", c.req.Method, c.path)
}

// handleToken hands the browser the access cookie and sends it home.
func handleToken(s *Server, c *call) (*wire.Response, error) {
	cookie := wire.NewCookie(s.cfg.TokenHash, s.now().Add(tokenTTL), "/")
	return wire.NewResponse(301,
		wire.Header{Name: "Location", Value: "/"},
		wire.Header{Name: "Set-Cookie", Value: cookie.String()},
		wire.Header{Name: "Content-Type", Value: "text/html"},
	), nil
}

// handleAuthProbe answers HEAD /auth with 200 or 403.
func handleAuthProbe(s *Server, c *call) (*wire.Response, error) {
	if err := s.requireAuth(c); err != nil {
		return nil, err
	}
	return wire.NewResponse(200), nil
}
