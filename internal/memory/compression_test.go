package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeCompleter) Complete(_ context.Context, messages []*schema.Message) (string, error) {
	f.prompt = messages[len(messages)-1].Content
	return f.reply, f.err
}

func plainFormatter(rounds []*Round) string {
	var out strings.Builder
	for _, r := range rounds {
		out.WriteString(r.UserQuery + "\n")
	}
	return out.String()
}

func TestRoundCompressor_SingleRoundIsNoop(t *testing.T) {
	llm := &fakeCompleter{reply: "should not be called"}
	c := NewRoundCompressor(llm, zerolog.Nop())

	rounds := []*Round{buildRound("only", NewPost("only", RoleUser, RolePlanner))}
	summary, kept, err := c.CompressRounds(context.Background(), rounds, plainFormatter, "summarize: "+RoundsPlaceholder)

	require.NoError(t, err)
	assert.Empty(t, summary)
	assert.Equal(t, rounds, kept)
	assert.Empty(t, llm.prompt)
}

func TestRoundCompressor_KeepsLatestRoundVerbatim(t *testing.T) {
	llm := &fakeCompleter{reply: "user asked for a histogram"}
	c := NewRoundCompressor(llm, zerolog.Nop())

	rounds := []*Round{
		buildRound("first", NewPost("first", RoleUser, RolePlanner)),
		buildRound("second", NewPost("second", RoleUser, RolePlanner)),
		buildRound("third", NewPost("third", RoleUser, RolePlanner)),
	}
	summary, kept, err := c.CompressRounds(context.Background(), rounds, plainFormatter, "summarize: "+RoundsPlaceholder)

	require.NoError(t, err)
	assert.Equal(t, "user asked for a histogram", summary)
	require.Len(t, kept, 1)
	assert.Equal(t, "third", kept[0].UserQuery)

	// The prompt covers only the compressed prefix.
	assert.Contains(t, llm.prompt, "first")
	assert.Contains(t, llm.prompt, "second")
	assert.NotContains(t, llm.prompt, "third")
}

func TestRoundCompressor_FailureFallsBackToFullHistory(t *testing.T) {
	llm := &fakeCompleter{err: errors.New("model unavailable")}
	c := NewRoundCompressor(llm, zerolog.Nop())

	rounds := []*Round{
		buildRound("first", NewPost("first", RoleUser, RolePlanner)),
		buildRound("second", NewPost("second", RoleUser, RolePlanner)),
	}
	summary, kept, err := c.CompressRounds(context.Background(), rounds, plainFormatter, RoundsPlaceholder)

	require.Error(t, err)
	assert.Empty(t, summary)
	assert.Equal(t, rounds, kept)
}
