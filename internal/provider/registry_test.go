package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/eino/components/model"
)

type staticProvider struct {
	id     string
	models []Model
}

func (p *staticProvider) ID() string                     { return p.id }
func (p *staticProvider) Name() string                   { return p.id }
func (p *staticProvider) Models() []Model                { return p.models }
func (p *staticProvider) ChatModel() model.BaseChatModel { return nil }
func (p *staticProvider) CreateCompletion(context.Context, *CompletionRequest) (*CompletionStream, error) {
	return nil, nil
}

func TestRegistry_GetModel(t *testing.T) {
	reg := NewRegistry("")
	reg.Register(&staticProvider{id: "openai", models: []Model{
		{ID: "gpt-4o", ProviderID: "openai"},
	}})

	m, err := reg.GetModel("openai", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", m.ID)

	_, err = reg.GetModel("openai", "missing")
	assert.Error(t, err)
	_, err = reg.GetModel("missing", "gpt-4o")
	assert.Error(t, err)
}

func TestRegistry_DefaultModelPrefersConfigured(t *testing.T) {
	reg := NewRegistry("anthropic/claude-3-5-haiku-20241022")
	reg.Register(&staticProvider{id: "openai", models: []Model{{ID: "gpt-4o", ProviderID: "openai"}}})
	reg.Register(&staticProvider{id: "anthropic", models: []Model{
		{ID: "claude-3-5-haiku-20241022", ProviderID: "anthropic"},
	}})

	m, err := reg.DefaultModel()
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-haiku-20241022", m.ID)
	assert.Equal(t, "anthropic", m.ProviderID)
}

func TestRegistry_DefaultModelFallsBackToFirst(t *testing.T) {
	reg := NewRegistry("")
	reg.Register(&staticProvider{id: "openai", models: []Model{{ID: "gpt-4o", ProviderID: "openai"}}})

	m, err := reg.DefaultModel()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", m.ID)
}

func TestParseModelString(t *testing.T) {
	providerID, modelID := ParseModelString("openai/gpt-4o")
	assert.Equal(t, "openai", providerID)
	assert.Equal(t, "gpt-4o", modelID)

	providerID, modelID = ParseModelString("gpt-4o")
	assert.Empty(t, providerID)
	assert.Equal(t, "gpt-4o", modelID)
}
