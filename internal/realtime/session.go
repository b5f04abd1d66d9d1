package realtime

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-chat-relay/internal/presence"
)

// State is the lifecycle stage of a Session.
type State int

const (
	// StateUnregistered: connected, no user announced yet.
	StateUnregistered State = iota
	// StateRegistered: bound to a user id.
	StateRegistered
	// StateDisconnected is terminal. Later events are ignored.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is the router-side view of one live connection.
type Session struct {
	Conn presence.Conn

	mu     sync.Mutex
	state  State
	userID uint
	logger zerolog.Logger
}

// NewSession wraps conn in an unregistered session with a child logger
// tagged by connection id.
func NewSession(conn presence.Conn) *Session {
	return &Session{
		Conn:   conn,
		logger: log.With().Str("conn_id", conn.ID()).Logger(),
	}
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Logger returns the session's child logger.
func (s *Session) Logger() *zerolog.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.logger
	return &l
}

// UserID returns the bound user, 0 before registration.
func (s *Session) UserID() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// bind moves the session to registered. It returns the previously bound
// user id and false when the session is already disconnected.
func (s *Session) bind(userID uint) (uint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return 0, false
	}
	prev := s.userID
	s.userID = userID
	s.state = StateRegistered
	s.logger = log.With().Str("conn_id", s.Conn.ID()).Uint("user_id", userID).Logger()
	return prev, true
}

// end moves the session to disconnected. It reports false when it already
// was.
func (s *Session) end() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return false
	}
	s.state = StateDisconnected
	return true
}

func (s *Session) emit(event string, payload any) bool {
	return s.Conn.Send(event, payload)
}

func (s *Session) fail(message string) {
	s.Conn.Send(EventError, ErrorPayload{Message: message})
}
