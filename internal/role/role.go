// Package role defines the polymorphic actor contract shared by the
// planner and the code interpreter, plus the translator that moves
// between posts and LLM text.
package role

import (
	"context"
	"sync"

	"github.com/tandem-ai/tandem/internal/event"
	"github.com/tandem-ai/tandem/internal/memory"
)

// Role is a participant that consumes a memory snapshot and produces the
// next post, streaming its construction through the proxy. The role
// decides the post's recipient as part of its output.
type Role interface {
	// Alias returns the role identifier used in send_from/send_to fields.
	Alias() string

	// Reply produces the role's next post. The returned post is the
	// proxy's finalized post.
	Reply(ctx context.Context, mem *memory.Memory, proxy *event.PostEventProxy) (*memory.Post, error)

	// Close releases any resources the role holds.
	Close() error
}

// Registry holds a session's roles keyed by alias. The session dispatches
// each post to the role its send_to names.
type Registry struct {
	mu    sync.RWMutex
	roles map[string]Role
	order []string
}

// NewRegistry creates a registry over the given roles.
func NewRegistry(roles ...Role) *Registry {
	r := &Registry{roles: make(map[string]Role, len(roles))}
	for _, role := range roles {
		r.Register(role)
	}
	return r
}

// Register adds a role, replacing any prior role with the same alias.
func (r *Registry) Register(role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alias := role.Alias()
	if _, ok := r.roles[alias]; !ok {
		r.order = append(r.order, alias)
	}
	r.roles[alias] = role
}

// Get retrieves a role by alias.
func (r *Registry) Get(alias string) (Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.roles[alias]
	return role, ok
}

// Aliases returns the registered aliases in registration order.
func (r *Registry) Aliases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Roles returns the registered roles in registration order.
func (r *Registry) Roles() []Role {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := make([]Role, 0, len(r.order))
	for _, alias := range r.order {
		roles = append(roles, r.roles[alias])
	}
	return roles
}

// Close closes every registered role and returns the first error.
func (r *Registry) Close() error {
	var firstErr error
	for _, role := range r.Roles() {
		if err := role.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
