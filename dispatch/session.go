package dispatch

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/esmcp/mcp"
)

// State is the lifecycle of one client conversation.
type State int

const (
	// StateHandshaking: created, waiting for the initialize request.
	StateHandshaking State = iota
	// StateReady: handshake done, requests are dispatched.
	StateReady
	// StateClosing: terminal; no further requests are accepted and in-flight
	// handlers have been cancelled.
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	}
	return "unknown"
}

// Session tracks one logical client conversation: its negotiated handshake,
// its set of open request ids and the context that cancels all of its work.
// A session exclusively owns its open-request set; nothing is shared across
// sessions except the read-only tool registry.
type Session struct {
	id  string
	log zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	state           State
	open            map[string]context.CancelFunc
	protocolVersion string
	clientInfo      mcp.ClientInfo
}

func NewSession(log zerolog.Logger) *Session {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:     id,
		log:    log.With().Str("session", id).Logger(),
		ctx:    ctx,
		cancel: cancel,
		state:  StateHandshaking,
		open:   make(map[string]context.CancelFunc),
	}
}

func (s *Session) ID() string { return s.id }

// Context is cancelled when the session closes; every in-flight handler
// inherits from it.
func (s *Session) Context() context.Context { return s.ctx }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) ClientInfo() mcp.ClientInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientInfo
}

func (s *Session) ProtocolVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolVersion
}

// Close moves the session to its terminal state and cancels all in-flight
// requests. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosing {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	open := len(s.open)
	s.mu.Unlock()

	s.cancel()
	s.log.Debug().Int("open_requests", open).Msg("session closed")
}

func (s *Session) markReady(info mcp.ClientInfo, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateHandshaking {
		s.state = StateReady
		s.clientInfo = info
		s.protocolVersion = version
	}
}

// beginRequest registers an open request id and returns the context its
// handler runs under. Ids must be unique among currently open requests;
// reuse after completion is fine.
func (s *Session) beginRequest(key string) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosing {
		return nil, mcp.ErrSessionTerminated
	}
	if _, exists := s.open[key]; exists {
		return nil, mcp.NewProtocolError("request id already in flight")
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.open[key] = cancel
	return ctx, nil
}

// endRequest removes an open request. It reports whether a response may
// still be sent: false once the session has terminated.
func (s *Session) endRequest(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.open[key]; ok {
		delete(s.open, key)
		cancel()
	}
	return s.state != StateClosing
}

// cancelRequest cooperatively cancels one in-flight request, leaving the
// session itself untouched.
func (s *Session) cancelRequest(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancel, ok := s.open[key]
	if ok {
		cancel()
	}
	return ok
}

// OpenRequests returns the number of currently open requests.
func (s *Session) OpenRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}
