package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/ingredient-vision/selection"
)

// Session is one user's camera screen: their selection state and the scan in flight.
type Session struct {
	ID    uuid.UUID
	State *selection.State

	mu       sync.Mutex
	lastSeen time.Time
	cancel   context.CancelFunc
}

// beginScan starts a scan, cancelling the one in flight.
func (s *Session) beginScan(parent context.Context, timeout time.Duration) (selection.Ticket, context.Context, func()) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	ticket := s.State.Begin()
	return ticket, ctx, cancel
}

// cancelScan stops the scan in flight so its result can never be committed.
func (s *Session) cancelScan() bool {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	s.State.Abandon()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Sessions stores sessions by id and expires idle ones.
type Sessions struct {
	limit int
	ttl   time.Duration
	now   func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewSessions creates a store.
//
// Arguments:
//   - limit: The basket limit of new sessions.
//   - ttl: How long an idle session lives. Zero keeps sessions forever.
//
// Returns:
//   - *Sessions: The store.
func NewSessions(limit int, ttl time.Duration) *Sessions {
	return &Sessions{
		limit:    limit,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create starts a session.
func (s *Sessions) Create() *Session {
	sess := &Session{
		ID:       uuid.New(),
		State:    selection.New(s.limit),
		lastSeen: s.now(),
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns a live session and marks it used.
func (s *Sessions) Get(id uuid.UUID) (*Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := s.now()
	if s.ttl > 0 && sess.idleSince(now) > s.ttl {
		s.Delete(id)
		return nil, false
	}
	sess.touch(now)
	return sess, true
}

// Delete ends a session and cancels its scan.
func (s *Sessions) Delete(id uuid.UUID) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		sess.cancelScan()
	}
	return ok
}

// Sweep deletes every idle session and returns how many were removed.
func (s *Sessions) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	now := s.now()

	s.mu.RLock()
	var expired []uuid.UUID
	for id, sess := range s.sessions {
		if sess.idleSince(now) > s.ttl {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range expired {
		s.Delete(id)
	}
	return len(expired)
}

// Len returns the number of sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RunSweeper sweeps idle sessions every interval until ctx is done.
func (s *Sessions) RunSweeper(ctx context.Context, interval time.Duration, logger logrus.FieldLogger) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.WithField("expired", n).Debug("swept idle sessions")
			}
		}
	}
}
