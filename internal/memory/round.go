package memory

import "github.com/oklog/ulid/v2"

// Round is one user-initiated turn: the originating query plus every post
// produced while routing that turn to completion. Posts[0] is always the
// user-originated post.
type Round struct {
	ID        string  `json:"id" yaml:"id"`
	UserQuery string  `json:"user_query" yaml:"user_query"`
	Posts     []*Post `json:"post_list" yaml:"post_list"`

	// Failed marks a round whose turn ended with a role error. Failed
	// rounds stay in the log; callers filter them instead of deleting.
	Failed bool `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// NewRound creates a round with a fresh ULID.
func NewRound(userQuery string) *Round {
	return &Round{
		ID:        ulid.Make().String(),
		UserQuery: userQuery,
	}
}

// AddPost appends a post. Posts are never removed or reordered.
func (r *Round) AddPost(p *Post) {
	r.Posts = append(r.Posts, p)
}

// Complete reports whether some post in the round addresses the user,
// which is the round's termination condition.
func (r *Round) Complete() bool {
	for _, p := range r.Posts {
		if p.SendTo == RoleUser {
			return true
		}
	}
	return false
}

// InvolvesRole reports whether any post has the role as sender or recipient.
func (r *Round) InvolvesRole(role string) bool {
	for _, p := range r.Posts {
		if p.SendFrom == role || p.SendTo == role {
			return true
		}
	}
	return false
}
