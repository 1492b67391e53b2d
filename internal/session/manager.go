// Package session keeps the registry of open match-edit sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fortuna/scoredesk/internal/matchscore"
	"github.com/fortuna/scoredesk/internal/scoring"
)

var (
	ErrNotFound      = errors.New("no open session for match")
	ErrSportMismatch = errors.New("match is already open under another sport")
)

// Config holds manager configuration
type Config struct {
	IdleTimeout  time.Duration // Default: 30m
	ReapInterval time.Duration // Default: 1m
}

// DefaultConfig returns default manager configuration
func DefaultConfig() *Config {
	return &Config{
		IdleTimeout:  30 * time.Minute,
		ReapInterval: time.Minute,
	}
}

// Manager owns every open session, one per match id. Sessions nobody has
// touched for IdleTimeout are closed by the reaper started with Start.
type Manager struct {
	deps   scoring.Deps
	config *Config
	logger *log.Logger
	open   func(ctx context.Context, sport matchscore.Sport, matchID string, deps scoring.Deps) (*scoring.Session, error)
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*scoring.Session

	hooksMu sync.RWMutex
	hooks   []func(scoring.Snapshot)
}

// NewManager creates a manager that opens sessions with deps.
func NewManager(deps scoring.Deps, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultConfig().IdleTimeout
	}
	if config.ReapInterval <= 0 {
		config.ReapInterval = DefaultConfig().ReapInterval
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[session] ", log.LstdFlags)
		deps.Logger = logger
	}

	m := &Manager{
		deps:     deps,
		config:   config,
		logger:   logger,
		open:     scoring.Open,
		now:      time.Now,
		sessions: make(map[string]*scoring.Session),
	}
	if deps.Clock != nil {
		m.now = deps.Clock.Now
	}
	m.deps.SnapshotHooks = append(append([]func(scoring.Snapshot){}, deps.SnapshotHooks...), m.fanout)
	return m
}

// OnSnapshot registers fn to receive the snapshots of every session.
func (m *Manager) OnSnapshot(fn func(scoring.Snapshot)) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks = append(m.hooks, fn)
}

func (m *Manager) fanout(snap scoring.Snapshot) {
	m.hooksMu.RLock()
	hooks := m.hooks
	m.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(snap)
	}
}

// Open returns the session on matchID, opening one if needed. created
// reports whether a new session was started.
func (m *Manager) Open(ctx context.Context, sport matchscore.Sport, matchID string) (s *scoring.Session, created bool, err error) {
	if existing, err := m.lookup(matchID); err == nil {
		if existing.Sport() != sport {
			return nil, false, fmt.Errorf("%w: %s is open as %s", ErrSportMismatch, matchID, existing.Sport())
		}
		existing.Touch()
		return existing, false, nil
	}

	fresh, err := m.open(ctx, sport, matchID, m.deps)
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	if raced, ok := m.sessions[matchID]; ok && !raced.Closed() {
		m.mu.Unlock()
		fresh.Close()
		return raced, false, nil
	}
	m.sessions[matchID] = fresh
	count := len(m.sessions)
	m.mu.Unlock()

	m.logger.Printf("✓ session %s registered for match %s (%d open)", fresh.ID(), matchID, count)
	return fresh, true, nil
}

// Get returns the open session on matchID and marks it active.
func (m *Manager) Get(matchID string) (*scoring.Session, error) {
	s, err := m.lookup(matchID)
	if err != nil {
		return nil, err
	}
	s.Touch()
	return s, nil
}

func (m *Manager) lookup(matchID string) (*scoring.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[matchID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, matchID)
	}
	if s.Closed() {
		delete(m.sessions, matchID)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, matchID)
	}
	return s, nil
}

// Close closes and forgets the session on matchID.
func (m *Manager) Close(matchID string) error {
	m.mu.Lock()
	s, ok := m.sessions[matchID]
	delete(m.sessions, matchID)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, matchID)
	}
	s.Close()
	return nil
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*scoring.Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	if len(sessions) > 0 {
		m.logger.Printf("closed %d sessions", len(sessions))
	}
}

// List returns the open sessions.
func (m *Manager) List() []*scoring.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*scoring.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if !s.Closed() {
			out = append(out, s)
		}
	}
	return out
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Start runs the idle reaper until ctx is cancelled, then closes every session.
func (m *Manager) Start(ctx context.Context) {
	m.logger.Printf("→ Session reaper started (idle timeout: %v, interval: %v)", m.config.IdleTimeout, m.config.ReapInterval)

	ticker := time.NewTicker(m.config.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Println("→ Session reaper stopped")
			m.CloseAll()
			return
		case <-ticker.C:
			m.Reap()
		}
	}
}

// Reap closes sessions idle for longer than IdleTimeout and returns how many
// it closed.
func (m *Manager) Reap() int {
	cutoff := m.now().Add(-m.config.IdleTimeout)

	m.mu.Lock()
	var stale []*scoring.Session
	for id, s := range m.sessions {
		if s.Closed() || s.LastActive().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		m.logger.Printf("reaping idle session %s on match %s", s.ID(), s.MatchID())
		s.Close()
	}
	return len(stale)
}
