package provider

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

const (
	// MaxRetries bounds retries when starting a completion.
	MaxRetries = 3
	// RetryInitialInterval is the initial backoff interval.
	RetryInitialInterval = time.Second
	// RetryMaxInterval is the backoff interval ceiling.
	RetryMaxInterval = 30 * time.Second
	// RetryMaxElapsedTime bounds the total time spent retrying.
	RetryMaxElapsedTime = 2 * time.Minute
)

// newRetryBackoff builds the jittered exponential backoff used when
// starting completions. Retries cover stream creation only; once chunks
// are flowing, a failure surfaces to the caller.
func newRetryBackoff(ctx context.Context, initial time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = RetryMaxInterval
	b.MaxElapsedTime = RetryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx)
}

// Client is the completion facade the conversation core consumes: a
// synchronous completion for round compression and a streaming completion
// for role replies.
type Client struct {
	registry     *Registry
	maxTokens    int
	retryInitial time.Duration
	logger       zerolog.Logger
}

// NewClient creates a client over the registry's default model.
func NewClient(registry *Registry, maxTokens int, logger zerolog.Logger) *Client {
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &Client{
		registry:     registry,
		maxTokens:    maxTokens,
		retryInitial: RetryInitialInterval,
		logger:       logger,
	}
}

// Stream starts a streaming completion against the default model,
// retrying stream creation with jittered backoff.
func (c *Client) Stream(ctx context.Context, messages []*schema.Message) (*CompletionStream, error) {
	model, err := c.registry.DefaultModel()
	if err != nil {
		return nil, err
	}
	prov, err := c.registry.Get(model.ProviderID)
	if err != nil {
		return nil, err
	}

	req := &CompletionRequest{
		Model:     model.ID,
		Messages:  messages,
		MaxTokens: c.maxTokens,
	}

	retry := newRetryBackoff(ctx, c.retryInitial)
	for {
		stream, err := prov.CreateCompletion(ctx, req)
		if err == nil {
			return stream, nil
		}

		next := retry.NextBackOff()
		if next == backoff.Stop {
			return nil, fmt.Errorf("failed to start completion: %w", err)
		}
		c.logger.Warn().Err(err).Dur("backoff", next).Msg("completion start failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(next):
		}
	}
}

// Complete runs a completion to exhaustion and returns the full text.
func (c *Client) Complete(ctx context.Context, messages []*schema.Message) (string, error) {
	stream, err := c.Stream(ctx, messages)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var out strings.Builder
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("stream error: %w", err)
		}
		out.WriteString(msg.Content)
	}
	return out.String(), nil
}
