// Package provider abstracts LLM backends behind the Eino framework. The
// conversation core consumes two capabilities from here: a synchronous
// completion (round compression) and a streaming completion (role replies).
package provider

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Model describes one model a provider can serve.
type Model struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ProviderID      string `json:"providerID"`
	ContextLength   int    `json:"contextLength"`
	MaxOutputTokens int    `json:"maxOutputTokens"`
}

// Provider is an LLM provider backed by an Eino chat model.
type Provider interface {
	// ID returns the provider identifier.
	ID() string

	// Name returns the human-readable provider name.
	Name() string

	// Models returns the models this provider serves.
	Models() []Model

	// ChatModel returns the underlying Eino chat model.
	ChatModel() model.BaseChatModel

	// CreateCompletion starts a streaming completion.
	CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error)
}

// CompletionRequest is a request for a completion.
type CompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	MaxTokens   int               `json:"maxTokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
}

// CompletionStream wraps an Eino stream reader. Recv returns io.EOF when
// the stream is exhausted.
type CompletionStream struct {
	reader *schema.StreamReader[*schema.Message]
}

// NewCompletionStream wraps an Eino stream reader.
func NewCompletionStream(reader *schema.StreamReader[*schema.Message]) *CompletionStream {
	return &CompletionStream{reader: reader}
}

// Recv returns the next chunk.
func (s *CompletionStream) Recv() (*schema.Message, error) {
	return s.reader.Recv()
}

// Close releases the stream. Closing while a Recv loop is still running
// is the out-of-band cancellation path for in-flight completions.
func (s *CompletionStream) Close() {
	s.reader.Close()
}
