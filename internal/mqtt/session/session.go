// Package session holds the broker dispatcher's per-client session
// records: the one piece of state that survives between packets on a
// single connection.
package session

import (
	"net"
	"time"

	"github.com/ratelmq/ratelmq/internal/mqtt/broker/event"
)

// ClientID uniquely identifies a session, client-chosen at CONNECT time
// (or server-assigned, see internal/mqtt/broker).
type ClientID = string

// Session is created on the first CONNECT for a given ClientID and
// destroyed on DISCONNECT, connection loss of a non-persistent session, or
// a second CONNECT with clean_session=true. The dispatcher is the sole
// owner and mutator of every Session; nothing else touches these fields.
type Session struct {
	ClientID     ClientID
	RemoteAddr   net.Addr
	Persistent   bool // !clean_session from CONNECT
	KeepAlive    time.Duration
	LastActivity time.Time

	// Egress is the writer task's only input. Exactly one goroutine (that
	// writer) ever receives from it.
	Egress chan<- event.ServerEvent
}

// Touch records traffic on the session, resetting its idle clock for the
// keep-alive sweep.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}

// KeepAliveExpired reports whether the session has been idle past 1.5x its
// declared keep-alive interval. A zero KeepAlive disables the check.
func (s *Session) KeepAliveExpired(now time.Time) bool {
	if s.KeepAlive == 0 {
		return false
	}
	deadline := s.LastActivity.Add(s.KeepAlive + s.KeepAlive/2)
	return now.After(deadline)
}

// Store is the dispatcher's client_id -> Session map. It has a single
// owner (the dispatcher goroutine) and is deliberately not
// synchronized — see the concurrency model in SPEC_FULL.md section 5.
type Store struct {
	byClientID map[ClientID]*Session
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{byClientID: make(map[ClientID]*Session)}
}

// Get returns the session for id, or nil if none exists.
func (s *Store) Get(id ClientID) *Session {
	return s.byClientID[id]
}

// Put inserts or replaces the session for sess.ClientID.
func (s *Store) Put(sess *Session) {
	s.byClientID[sess.ClientID] = sess
}

// Delete removes the session for id, if present.
func (s *Store) Delete(id ClientID) {
	delete(s.byClientID, id)
}

// All returns every live session, for the keep-alive sweep.
func (s *Store) All() []*Session {
	out := make([]*Session, 0, len(s.byClientID))
	for _, sess := range s.byClientID {
		out = append(out, sess)
	}
	return out
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	return len(s.byClientID)
}
