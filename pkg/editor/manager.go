package editor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stagepage/stagepage/pkg/store"
)

// Defaults
const (
	DefaultMaxSessions = 32
	DefaultIdleTTL     = 2 * time.Hour
)

// ErrTooManySessions is returned by Open when the manager is full and no
// session is idle enough to evict.
var ErrTooManySessions = errors.New("too many editor sessions")

// ManagerOptions configures a Manager. Zero values pick the defaults.
type ManagerOptions struct {
	MaxSessions int
	IdleTTL     time.Duration
}

// Manager keeps the open sessions.
type Manager struct {
	st   store.Store
	log  zerolog.Logger
	max  int
	ttl  time.Duration
	now  func() time.Time
	mu   sync.Mutex
	byID map[string]*Session
}

// NewManager creates a manager opening sessions over st.
func NewManager(st store.Store, opts ManagerOptions, log zerolog.Logger) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	return &Manager{
		st:   st,
		log:  log.With().Str("component", "editor").Logger(),
		max:  opts.MaxSessions,
		ttl:  opts.IdleTTL,
		now:  time.Now,
		byID: make(map[string]*Session),
	}
}

// Open creates a session, loads the page into it and registers it. When the
// manager is full, expired sessions are swept first and then the least
// recently used one is evicted.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	sess := NewSession(uuid.NewString(), m.st, m.log)
	if err := sess.Load(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if len(m.byID) >= m.max {
		m.sweepLocked()
	}
	if len(m.byID) >= m.max {
		if !m.evictOldestLocked() {
			m.mu.Unlock()
			return nil, ErrTooManySessions
		}
	}
	m.byID[sess.ID()] = sess
	n := len(m.byID)
	m.mu.Unlock()

	m.log.Info().Str("session", sess.ID()).Int("open", n).Msg("Editor session opened")
	return sess, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.byID[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch()
	return sess, nil
}

// Close removes and resets the session with the given id. A session that is
// saving stays open and Close returns draft.ErrSaveInProgress.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	sess, ok := m.byID[id]
	if !ok {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	if err := sess.Close(); err != nil {
		m.mu.Unlock()
		return err
	}
	delete(m.byID, id)
	m.mu.Unlock()

	m.log.Info().Str("session", id).Msg("Editor session closed")
	return nil
}

// Sweep closes the sessions idle for longer than the TTL and returns how
// many were closed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked()
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// CloseAll drops every session. Sessions still saving are dropped without
// a reset.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.byID
	m.byID = make(map[string]*Session)
	m.mu.Unlock()
	for id, sess := range sessions {
		if err := sess.Close(); err != nil {
			m.log.Warn().Err(err).Str("session", id).Msg("Editor session dropped while saving")
		}
	}
}

// Run sweeps expired sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.log.Debug().Int("closed", n).Msg("Expired editor sessions swept")
			}
		}
	}
}

func (m *Manager) sweepLocked() int {
	cutoff := m.now().Add(-m.ttl)
	closed := 0
	for id, sess := range m.byID {
		if sess.idleSince().Before(cutoff) && sess.Close() == nil {
			delete(m.byID, id)
			closed++
		}
	}
	return closed
}

// evictOldestLocked closes the least recently used session that is not
// saving.
func (m *Manager) evictOldestLocked() bool {
	sessions := make([]*Session, 0, len(m.byID))
	for _, sess := range m.byID {
		if !sess.Draft().IsSaving() {
			sessions = append(sessions, sess)
		}
	}
	if len(sessions) == 0 {
		return false
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].idleSince().Before(sessions[j].idleSince())
	})
	for _, sess := range sessions {
		if sess.Close() != nil {
			continue
		}
		delete(m.byID, sess.ID())
		m.log.Info().Str("session", sess.ID()).Msg("Editor session evicted")
		return true
	}
	return false
}
