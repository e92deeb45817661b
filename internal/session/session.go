// Package session owns the turn-taking loop: it opens a round from a
// user message, hands control between roles until one addresses the
// user, and persists the round.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tandem-ai/tandem/internal/event"
	"github.com/tandem-ai/tandem/internal/memory"
	"github.com/tandem-ai/tandem/internal/role"
	"github.com/tandem-ai/tandem/internal/storage"
)

// DefaultMaxTurns caps role invocations per round so two roles that keep
// addressing each other cannot spin forever.
const DefaultMaxTurns = 10

// Metadata is the persisted identity of a session.
type Metadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Dir          string    `json:"dir"`
	ExecutionCwd string    `json:"execution_cwd"`
	CreatedAt    time.Time `json:"created_at"`
}

// VariableUpdater is the extra capability the code interpreter exposes
// beyond the role contract.
type VariableUpdater interface {
	UpdateSessionVariables(vars map[string]string)
}

// Session drives one conversation. Chat processes one user message at a
// time; concurrent calls serialize on the session lock.
type Session struct {
	meta     *Metadata
	mem      *memory.Memory
	emitter  *event.SessionEventEmitter
	roles    *role.Registry
	maxTurns int
	store    *storage.Store
	logger   zerolog.Logger

	mu sync.Mutex
}

// NewSession wires a session over its roles, keyed by alias. store may
// be nil for ephemeral sessions.
func NewSession(meta *Metadata, emitter *event.SessionEventEmitter, roles []role.Role, maxTurns int, store *storage.Store, logger zerolog.Logger) *Session {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Session{
		meta:     meta,
		mem:      memory.New(),
		emitter:  emitter,
		roles:    role.NewRegistry(roles...),
		maxTurns: maxTurns,
		store:    store,
		logger:   logger.With().Str("session_id", meta.ID).Logger(),
	}
}

// Metadata returns the session's identity.
func (s *Session) Metadata() *Metadata {
	return s.meta
}

// Memory returns the session's conversation memory.
func (s *Session) Memory() *memory.Memory {
	return s.mem
}

// Emitter returns the session's event emitter for handler registration.
func (s *Session) Emitter() *event.SessionEventEmitter {
	return s.emitter
}

// Chat runs one full round: the user message opens the round, then roles
// take turns until one addresses the user or the turn cap is hit. The
// round is appended to memory before any role runs, so a failed turn
// still leaves its partial round in the audit trail. A role error marks
// the round failed, persists it, and propagates to the caller.
//
// Returns the message of the round's first user-addressed post, or ""
// when the round ended without one.
func (s *Session) Chat(ctx context.Context, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	round := memory.NewRound(message)
	s.emitter.StartRound(round.ID)

	current := memory.NewPost(message, memory.RoleUser, memory.RolePlanner)
	round.AddPost(current)
	s.mem.AddRound(round)

	for turn := 0; turn < s.maxTurns; turn++ {
		next, ok := s.roles.Get(current.SendTo)
		if !ok {
			break
		}

		proxy := s.emitter.CreatePostProxy(next.Alias())
		post, err := next.Reply(ctx, s.mem, proxy)
		if err != nil {
			round.Failed = true
			s.persistRound(ctx, round)
			s.emitter.EmitError(err.Error())
			s.emitter.EndRound(round.ID)
			return "", err
		}

		round.AddPost(post)
		current = post
		if post.SendTo == memory.RoleUser {
			break
		}
	}

	s.persistRound(ctx, round)
	s.emitter.EndRound(round.ID)

	for _, post := range round.Posts {
		if post.SendTo == memory.RoleUser {
			return post.Message, nil
		}
	}
	s.logger.Warn().Str("round_id", round.ID).Msg("round ended without a user-addressed post")
	return "", nil
}

// UpdateSessionVariables forwards variables to every role that accepts
// them.
func (s *Session) UpdateSessionVariables(vars map[string]string) {
	for _, r := range s.roles.Roles() {
		if u, ok := r.(VariableUpdater); ok {
			u.UpdateSessionVariables(vars)
		}
	}
}

// Roles returns the aliases of the session's roles in registration order.
func (s *Session) Roles() []string {
	return s.roles.Aliases()
}

// Close releases the session's roles.
func (s *Session) Close() error {
	return s.roles.Close()
}

func (s *Session) persistRound(ctx context.Context, round *memory.Round) {
	if s.store == nil {
		return
	}
	if err := s.store.Put(ctx, []string{"conversation", s.meta.ID, round.ID}, round); err != nil {
		s.logger.Error().Err(err).Str("round_id", round.ID).Msg("failed to persist round")
	}
}
