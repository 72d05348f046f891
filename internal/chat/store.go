package chat

import (
	"sync"
	"time"
)

// Store keeps per-session conversational history for the lifetime of the
// process. Creation is lazy and idempotent; appends within one session are
// serialized while unrelated sessions proceed independently.
type Store interface {
	History(sessionID string) []Turn
	Append(sessionID string, t Turn)
}

type session struct {
	mu      sync.Mutex
	turns   []Turn
	touched time.Time
	evicted bool
}

// MemoryStore is the in-process Store. The map lock is only held long enough
// to find or insert the session entry; turn mutation happens under the
// per-session lock.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
}

type StoreOption func(*MemoryStore)

// WithTTL enables eviction of sessions idle for longer than d. Off by
// default: the baseline behavior keeps every session until shutdown.
func WithTTL(d time.Duration) StoreOption {
	return func(s *MemoryStore) { s.ttl = d }
}

func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) getOrCreate(id string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[id]; ok {
		return sess
	}
	s.sweepLocked()
	sess = &session{touched: s.now()}
	s.sessions[id] = sess
	return sess
}

// withSession runs fn with the session locked and its touch time refreshed.
// A pointer obtained before a TTL sweep may point at an evicted entry; in
// that case the lookup is retried so the turn lands in the live map entry.
func (s *MemoryStore) withSession(id string, fn func(*session)) {
	for {
		sess := s.getOrCreate(id)
		sess.mu.Lock()
		if sess.evicted {
			sess.mu.Unlock()
			continue
		}
		sess.touched = s.now()
		fn(sess)
		sess.mu.Unlock()
		return
	}
}

// sweepLocked drops expired sessions. Called with the write lock held, and
// only when TTL eviction is enabled.
func (s *MemoryStore) sweepLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, sess := range s.sessions {
		sess.mu.Lock()
		expired := sess.touched.Before(cutoff)
		if expired {
			sess.evicted = true
		}
		sess.mu.Unlock()
		if expired {
			delete(s.sessions, id)
		}
	}
}

// History returns a copy of the session's turns, creating the session if this
// is its first use.
func (s *MemoryStore) History(sessionID string) []Turn {
	var out []Turn
	s.withSession(sessionID, func(sess *session) {
		out = make([]Turn, len(sess.turns))
		copy(out, sess.turns)
	})
	return out
}

func (s *MemoryStore) Append(sessionID string, t Turn) {
	s.withSession(sessionID, func(sess *session) {
		sess.turns = append(sess.turns, t)
	})
}

// Len reports how many turns a session holds without copying them.
func (s *MemoryStore) Len(sessionID string) int {
	var n int
	s.withSession(sessionID, func(sess *session) {
		n = len(sess.turns)
	})
	return n
}
