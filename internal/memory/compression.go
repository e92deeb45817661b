package memory

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

// RoundsPlaceholder is substituted with the rendered rounds in the
// compression prompt template.
const RoundsPlaceholder = "{ROUNDS}"

// Completer is the synchronous completion capability the compressor needs.
type Completer interface {
	Complete(ctx context.Context, messages []*schema.Message) (string, error)
}

// RoundsFormatter renders a slice of rounds into a single text block.
type RoundsFormatter func(rounds []*Round) string

// RoundCompressor summarizes old rounds into a text blob to bound prompt
// size over long sessions. Compression is lossy and one-way; it shapes the
// prompt working set only and never touches the persisted conversation.
type RoundCompressor struct {
	llm    Completer
	logger zerolog.Logger
}

// NewRoundCompressor creates a compressor backed by the given completer.
func NewRoundCompressor(llm Completer, logger zerolog.Logger) *RoundCompressor {
	return &RoundCompressor{llm: llm, logger: logger}
}

// CompressRounds summarizes all but the last round. With one round or
// fewer there is nothing to compress and the input is returned unchanged.
// The most recent round is always retained verbatim. On a completion
// failure the input is returned unchanged along with the error so callers
// can fall back to the uncompressed history.
func (c *RoundCompressor) CompressRounds(
	ctx context.Context,
	rounds []*Round,
	formatter RoundsFormatter,
	promptTemplate string,
) (string, []*Round, error) {
	if len(rounds) <= 1 {
		return "", rounds, nil
	}

	lastRound := rounds[len(rounds)-1]
	toCompress := rounds[:len(rounds)-1]

	prompt := strings.ReplaceAll(promptTemplate, RoundsPlaceholder, formatter(toCompress))

	summary, err := c.llm.Complete(ctx, []*schema.Message{
		{Role: schema.User, Content: prompt},
	})
	if err != nil {
		c.logger.Warn().Err(err).Int("rounds", len(toCompress)).Msg("round compression failed")
		return "", rounds, err
	}

	c.logger.Debug().
		Int("compressed", len(toCompress)).
		Int("summary_len", len(summary)).
		Msg("compressed rounds")

	return summary, []*Round{lastRound}, nil
}
