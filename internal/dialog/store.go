package dialog

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound is returned by lookups for unknown session IDs.
var ErrSessionNotFound = errors.New("dialog: session not found")

// Store persists dialog sessions. Update must serialize mutations per
// session ID so concurrent requests for the same conversation apply their
// read-modify-write cycles one at a time.
type Store interface {
	// Update runs fn against the session, creating it when absent. The
	// session passed to fn has lazy TTL expiry already applied. Changes made
	// by fn are persisted unless fn returns an error.
	Update(ctx context.Context, id string, fn func(*Session) error) error

	// Get returns a copy of the session. Expiry is applied before returning.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes the session. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error

	// Count returns the number of live sessions.
	Count(ctx context.Context) (int, error)
}

// memEntry pairs a session with its serialization lock.
type memEntry struct {
	mu      sync.Mutex
	session *Session
}

// MemStore is the in-process [Store]. A read-write mutex guards the map;
// each session carries its own mutex so long-running updates on one
// conversation never block the others.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]*memEntry
	now      func() time.Time
}

var _ Store = (*MemStore)(nil)

// MemOption configures a [MemStore].
type MemOption func(*MemStore)

// WithClock overrides the store's time source. Used in tests to drive TTL
// expiry deterministically.
func WithClock(now func() time.Time) MemOption {
	return func(s *MemStore) { s.now = now }
}

// NewMemStore returns an empty in-process store.
func NewMemStore(opts ...MemOption) *MemStore {
	s := &MemStore{
		sessions: make(map[string]*memEntry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemStore) entry(id string, create bool) *memEntry {
	s.mu.RLock()
	e := s.sessions[id]
	s.mu.RUnlock()
	if e != nil || !create {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e = s.sessions[id]; e == nil {
		e = &memEntry{session: NewSession(id, s.now())}
		s.sessions[id] = e
	}
	return e
}

// Update implements [Store].
func (s *MemStore) Update(ctx context.Context, id string, fn func(*Session) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := s.entry(id, true)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now()
	if e.session.Expired(now) {
		e.session.Reset()
	}

	// fn works on a copy; a failed update must not leave a half-mutated
	// session behind.
	work := e.session.Clone()
	if err := fn(work); err != nil {
		return err
	}
	e.session = work
	return nil
}

// Get implements [Store].
func (s *MemStore) Get(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := s.entry(id, false)
	if e == nil {
		return nil, ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Expired(s.now()) {
		e.session.Reset()
	}
	return e.session.Clone(), nil
}

// Delete implements [Store].
func (s *MemStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Count implements [Store].
func (s *MemStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}
