package memory

// SharedMemoryEntryType keys the shared memory side-channel.
type SharedMemoryEntryType string

// SharedMemoryPlan holds the planner's evolving plan across rounds.
const SharedMemoryPlan SharedMemoryEntryType = "plan"

// SharedMemoryEntry is one entry in the shared memory channel.
type SharedMemoryEntry struct {
	EntryType SharedMemoryEntryType `json:"entry_type" yaml:"entry_type"`
	Content   string                `json:"content" yaml:"content"`
}

// Memory wraps a conversation and adds the shared memory side-channel.
// Shared memory persists across rounds independently of the post log: the
// plan must survive round boundaries while the round log stays a pure
// append-only audit trail. One Memory lives exactly as long as its session,
// and a session runs one turn at a time, so no locking is needed here.
type Memory struct {
	conversation *Conversation
	shared       map[SharedMemoryEntryType][]*SharedMemoryEntry
}

// New creates an empty memory.
func New() *Memory {
	return &Memory{
		conversation: NewConversation(),
		shared:       make(map[SharedMemoryEntryType][]*SharedMemoryEntry),
	}
}

// AddRound appends a round to the conversation.
func (m *Memory) AddRound(r *Round) {
	m.conversation.AddRound(r)
}

// Conversation returns the underlying conversation.
func (m *Memory) Conversation() *Conversation {
	return m.conversation
}

// Rounds returns all rounds, oldest first.
func (m *Memory) Rounds() []*Round {
	return m.conversation.Rounds
}

// RoleRounds returns rounds that involve the role as sender or recipient
// of at least one post. Failed rounds are skipped unless includeFailures.
func (m *Memory) RoleRounds(role string, includeFailures bool) []*Round {
	var out []*Round
	for _, r := range m.conversation.Rounds {
		if r.Failed && !includeFailures {
			continue
		}
		if r.InvolvesRole(role) {
			out = append(out, r)
		}
	}
	return out
}

// LastKRounds returns up to k most recent rounds, oldest first.
func (m *Memory) LastKRounds(k int) []*Round {
	rounds := m.conversation.Rounds
	if k >= len(rounds) {
		return rounds
	}
	return rounds[len(rounds)-k:]
}

// LastRound returns the most recent round, or nil.
func (m *Memory) LastRound() *Round {
	if n := len(m.conversation.Rounds); n > 0 {
		return m.conversation.Rounds[n-1]
	}
	return nil
}

// LastPost returns the most recent post of the most recent round, or nil.
func (m *Memory) LastPost() *Post {
	r := m.LastRound()
	if r == nil || len(r.Posts) == 0 {
		return nil
	}
	return r.Posts[len(r.Posts)-1]
}

// AddSharedMemoryEntry appends an entry to the shared memory channel.
// Appends are last-write-wins per entry list; readers that want the
// current value take the final entry.
func (m *Memory) AddSharedMemoryEntry(typ SharedMemoryEntryType, content string) {
	m.shared[typ] = append(m.shared[typ], &SharedMemoryEntry{
		EntryType: typ,
		Content:   content,
	})
}

// SharedMemoryEntries returns all entries of a type, oldest first.
func (m *Memory) SharedMemoryEntries(typ SharedMemoryEntryType) []*SharedMemoryEntry {
	return m.shared[typ]
}
