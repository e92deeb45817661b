package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/tandem-ai/tandem/internal/event"
	"github.com/tandem-ai/tandem/internal/role"
	"github.com/tandem-ai/tandem/internal/storage"
)

// RoleFactory builds the roles for a new session. The factory receives
// the session's metadata so roles can root themselves in its workspace.
type RoleFactory func(meta *Metadata, emitter *event.SessionEventEmitter) ([]role.Role, error)

// ManagerConfig controls where sessions live and how long their rounds
// may run.
type ManagerConfig struct {
	// BaseDir is the root under which each session gets its own
	// directory.
	BaseDir string
	// MaxTurns caps role invocations per round; zero means the default.
	MaxTurns int
}

// Manager creates and tracks sessions, persisting their metadata and
// rounds through the store.
type Manager struct {
	cfg     ManagerConfig
	store   *storage.Store
	bus     *event.Bus
	factory RoleFactory
	logger  zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager. store and bus may not be nil.
func NewManager(cfg ManagerConfig, store *storage.Store, bus *event.Bus, factory RoleFactory, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		store:    store,
		bus:      bus,
		factory:  factory,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create builds a new session with its own workspace directory and
// registers it. The name is display-only; identity is the ULID.
func (m *Manager) Create(ctx context.Context, name string) (*Session, error) {
	id := ulid.Make().String()
	dir := filepath.Join(m.cfg.BaseDir, "sessions", id)
	meta := &Metadata{
		ID:           id,
		Name:         name,
		Dir:          dir,
		ExecutionCwd: filepath.Join(dir, "cwd"),
		CreatedAt:    time.Now().UTC(),
	}
	if err := os.MkdirAll(meta.ExecutionCwd, 0o755); err != nil {
		return nil, fmt.Errorf("creating session workspace: %w", err)
	}

	emitter := event.NewSessionEventEmitter(id, m.bus)
	roles, err := m.factory(meta, emitter)
	if err != nil {
		return nil, fmt.Errorf("building session roles: %w", err)
	}

	sess := NewSession(meta, emitter, roles, m.cfg.MaxTurns, m.store, m.logger)
	if err := m.store.Put(ctx, []string{"session", id}, meta); err != nil {
		sess.Close()
		return nil, fmt.Errorf("persisting session metadata: %w", err)
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	m.bus.PublishSync(event.Event{
		Type: event.SessionCreated,
		Data: event.SessionCreatedData{SessionID: id, Name: name},
	})
	m.logger.Info().Str("session_id", id).Str("name", name).Msg("session created")
	return sess, nil
}

// Get returns a live session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return sess, nil
}

// List returns metadata for every persisted session, newest first.
func (m *Manager) List(ctx context.Context) ([]*Metadata, error) {
	ids, err := m.store.List(ctx, []string{"session"})
	if err != nil {
		return nil, err
	}

	metas := make([]*Metadata, 0, len(ids))
	for _, id := range ids {
		var meta Metadata
		if err := m.store.Get(ctx, []string{"session", id}, &meta); err != nil {
			m.logger.Warn().Err(err).Str("session_id", id).Msg("skipping unreadable session metadata")
			continue
		}
		metas = append(metas, &meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// Delete closes the session, removes its persisted state and workspace,
// and announces the deletion on the bus.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	sess, live := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	var meta *Metadata
	if live {
		if err := sess.Close(); err != nil {
			m.logger.Warn().Err(err).Str("session_id", id).Msg("error closing session roles")
		}
		meta = sess.Metadata()
	} else {
		var stored Metadata
		if err := m.store.Get(ctx, []string{"session", id}, &stored); err != nil {
			return fmt.Errorf("session %s not found", id)
		}
		meta = &stored
	}

	rounds, err := m.store.List(ctx, []string{"conversation", id})
	if err == nil {
		for _, roundID := range rounds {
			if err := m.store.Delete(ctx, []string{"conversation", id, roundID}); err != nil {
				m.logger.Warn().Err(err).Str("round_id", roundID).Msg("error deleting persisted round")
			}
		}
	}
	if err := m.store.Delete(ctx, []string{"session", id}); err != nil {
		return err
	}
	if meta.Dir != "" {
		if err := os.RemoveAll(meta.Dir); err != nil {
			m.logger.Warn().Err(err).Str("dir", meta.Dir).Msg("error removing session directory")
		}
	}

	m.bus.PublishSync(event.Event{
		Type: event.SessionDeleted,
		Data: event.SessionDeletedData{SessionID: id},
	})
	m.logger.Info().Str("session_id", id).Msg("session deleted")
	return nil
}

// Close closes every live session.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for id, sess := range m.sessions {
		if err := sess.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.sessions, id)
	}
	return firstErr
}
