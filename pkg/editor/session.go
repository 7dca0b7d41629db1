// Package editor holds the editing sessions of the admin API. A session is
// one draft of the page: it is loaded from the store, changed with draft
// commands and published back through the page writers.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stagepage/stagepage/pkg/draft"
	"github.com/stagepage/stagepage/pkg/page"
	"github.com/stagepage/stagepage/pkg/store"
)

// ErrSessionNotFound is returned for an unknown or expired session id.
var ErrSessionNotFound = errors.New("editor session not found")

// Session is one editor draft.
type Session struct {
	id        string
	st        store.Store
	draft     *draft.Store
	publisher *draft.Publisher
	log       zerolog.Logger

	mu       sync.Mutex
	lastUsed time.Time
}

// NewSession creates an unloaded session over st.
func NewSession(id string, st store.Store, log zerolog.Logger) *Session {
	log = log.With().Str("session", id).Logger()
	return &Session{
		id:        id,
		st:        st,
		draft:     draft.New(page.Schema),
		publisher: draft.NewPublisher(page.Writers(st), log),
		log:       log,
		lastUsed:  time.Now(),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Draft returns the session's draft store.
func (s *Session) Draft() *draft.Store { return s.draft }

// Load reads the page and initializes the draft from it, discarding any
// unsaved change.
func (s *Session) Load(ctx context.Context) error {
	p, err := s.st.LoadPage(ctx)
	if err != nil {
		return fmt.Errorf("failed to load page: %w", err)
	}
	doc, err := page.BuildDocument(p)
	if err != nil {
		return err
	}
	if err := s.draft.Initialize(doc); err != nil {
		return fmt.Errorf("failed to initialize draft: %w", err)
	}
	s.touch()
	return nil
}

// Apply applies one command to the draft. Commands are rejected with
// draft.ErrSaveInProgress while a save is in flight.
func (s *Session) Apply(cmd draft.Command) (draft.ApplyResult, error) {
	s.touch()
	return s.draft.Apply(cmd)
}

// Save publishes the draft. On success the temporary ids of the working copy
// are replaced by the stored ids and the draft becomes clean. On failure the
// draft keeps its changes.
func (s *Session) Save(ctx context.Context) (*draft.Result, error) {
	s.touch()
	res, err := s.publisher.Publish(ctx, s.draft)
	if err != nil {
		return nil, err
	}
	s.draft.ApplyIDMap(res.IDMap)
	if err := s.draft.CommitSave(); err != nil {
		return nil, err
	}
	return res, nil
}

// Undo restores the last saved state. Like Apply it is rejected while a save
// is in flight.
func (s *Session) Undo() error {
	s.touch()
	return s.draft.Undo()
}

// Close resets the draft. It returns draft.ErrSaveInProgress, and leaves the
// draft alone, while a save is in flight.
func (s *Session) Close() error {
	return s.draft.TryReset()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}
