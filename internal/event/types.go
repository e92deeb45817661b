package event

import "github.com/tandem-ai/tandem/internal/memory"

// RoundStartedData is the data for round.started events.
type RoundStartedData struct {
	SessionID string `json:"sessionID"`
	RoundID   string `json:"roundID"`
}

// RoundEndedData is the data for round.ended events.
type RoundEndedData struct {
	SessionID string `json:"sessionID"`
	RoundID   string `json:"roundID"`
}

// PostUpdatedData is the data for post.updated events. The post is a
// snapshot of an in-flight post; subscribers see it evolve through
// intermediate states before it is finalized.
type PostUpdatedData struct {
	SessionID string       `json:"sessionID"`
	Post      *memory.Post `json:"post"`
	Status    string       `json:"status,omitempty"`
}

// SessionErrorData is the data for session.error events.
type SessionErrorData struct {
	SessionID string `json:"sessionID"`
	Error     string `json:"error"`
}

// SessionCreatedData is the data for session.created events.
type SessionCreatedData struct {
	SessionID string `json:"sessionID"`
	Name      string `json:"name"`
}

// SessionDeletedData is the data for session.deleted events.
type SessionDeletedData struct {
	SessionID string `json:"sessionID"`
}
