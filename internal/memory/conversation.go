package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Conversation is the ordered, append-only sequence of all rounds in a
// session. It also defines the durable on-disk document format used for
// example and experience libraries.
type Conversation struct {
	Rounds []*Round `json:"rounds" yaml:"rounds"`
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// AddRound appends a round. Rounds are never removed or reordered.
func (c *Conversation) AddRound(r *Round) {
	c.Rounds = append(c.Rounds, r)
}

// ConversationFromYAMLFile loads a conversation document from disk.
func ConversationFromYAMLFile(path string) (*Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}
	var conv Conversation
	if err := yaml.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to parse conversation file %s: %w", path, err)
	}
	return &conv, nil
}

// WriteYAMLFile persists the conversation document to disk.
func (c *Conversation) WriteYAMLFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	return nil
}
