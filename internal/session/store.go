// Package session maps opaque session ids to running engines.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hydroedu/hydrosim/internal/engine"
	"github.com/hydroedu/hydrosim/internal/platform/logger"
	"github.com/hydroedu/hydrosim/internal/platform/metrics"
)

// DefaultLanguage is used when a client does not ask for one.
const DefaultLanguage = "en"

// Session is one player's engine plus router metadata.
type Session struct {
	ID        string
	Engine    *engine.Engine
	Language  string
	CreatedAt time.Time
}

// DepsFunc builds the engine dependencies for a session.
type DepsFunc func(sessionID string) engine.Deps

// Store is the session directory. It holds at most size sessions; the least recently
// used one is evicted and its engine stopped when the directory is full.
type Store struct {
	cache   *lru.Cache[string, *Session]
	deps    DepsFunc
	speed   time.Duration
	logger  *logger.Logger
	metrics *metrics.Collector
}

// NewStore creates a session directory.
func NewStore(size int, speed time.Duration, deps DepsFunc, log *logger.Logger, m *metrics.Collector) (*Store, error) {
	if log == nil {
		log = logger.Discard()
	}
	if m == nil {
		m = metrics.New()
	}
	s := &Store{
		deps:    deps,
		speed:   speed,
		logger:  log,
		metrics: m,
	}

	cache, err := lru.NewWithEvict[string, *Session](size, s.onRemoved)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

// onRemoved runs for evictions and explicit deletes alike.
func (s *Store) onRemoved(id string, sess *Session) {
	sess.Engine.Stop()
	s.metrics.RecordSession(-1)
	s.logger.Info("Session closed: " + id)
}

func (s *Store) depsFor(id string) engine.Deps {
	var d engine.Deps
	if s.deps != nil {
		d = s.deps(id)
	}
	if d.SessionID == "" {
		d.SessionID = id
	}
	return d
}

// Create builds a new engine, starts its driver and registers it under a fresh id.
func (s *Store) Create(city, month, cropName, language string) (*Session, error) {
	id := uuid.NewString()
	e, err := engine.New(s.depsFor(id), city, month, cropName)
	if err != nil {
		return nil, err
	}

	sess := s.add(id, e, language)
	e.Start(s.speed)
	s.logger.Event("SESSION_CREATED", id, fmt.Sprintf("%s/%s %s", city, month, cropName))
	return sess, nil
}

// Restore rebuilds an engine from snapshot JSON under id, replacing any session already
// registered there. The restored engine is paused and not running.
func (s *Store) Restore(id string, data []byte, language string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	e, err := engine.Restore(s.depsFor(id), data)
	if err != nil {
		return nil, err
	}

	s.cache.Remove(id)
	sess := s.add(id, e, language)
	s.logger.Event("SESSION_RESTORED", id, fmt.Sprintf("day %d", e.Status().Day))
	return sess, nil
}

func (s *Store) add(id string, e *engine.Engine, language string) *Session {
	if language == "" {
		language = DefaultLanguage
	}
	sess := &Session{
		ID:        id,
		Engine:    e,
		Language:  language,
		CreatedAt: time.Now(),
	}

	s.metrics.RecordSession(1)
	if evicted := s.cache.Add(id, sess); evicted {
		s.metrics.RecordEviction()
		s.logger.Warn("Session directory full, evicted least recently used session")
	}
	return sess
}

// Get returns the session registered under id.
func (s *Store) Get(id string) (*Session, bool) {
	return s.cache.Get(id)
}

// Delete stops and removes the session. It reports whether it existed.
func (s *Store) Delete(id string) bool {
	return s.cache.Remove(id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Each calls fn for every session, least recently used first, without touching recency.
func (s *Store) Each(fn func(*Session)) {
	for _, id := range s.cache.Keys() {
		if sess, ok := s.cache.Peek(id); ok {
			fn(sess)
		}
	}
}

// Close stops every engine and empties the directory.
func (s *Store) Close() {
	s.cache.Purge()
}
