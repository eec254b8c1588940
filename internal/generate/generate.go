// Package generate wraps the external text-generation capability behind a
// small client. Generation is opaque to the rest of the system: a prompt
// goes in, text comes out, and the caller's context bounds the call.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Params are the sampling parameters for one generation call.
type Params struct {
	Temperature     float32
	MaxTokens       int
	TopP            float32
	PresencePenalty float32
}

// Client invokes the model configured at construction time.
//
// Client is stateless and safe for concurrent use.
type Client struct {
	g         *genkit.Genkit
	modelName string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	logger    *slog.Logger
}

// New creates a Client for the given provider-qualified model name.
func New(g *genkit.Genkit, modelName string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{g: g, modelName: modelName, logger: logger}
}

// ModelName returns the provider-qualified model this client generates with.
func (c *Client) ModelName() string {
	return c.modelName
}

// Complete runs one generation call under the caller's context. A deadline
// firing and the capability erroring are both returned as a plain error —
// callers fold them into one failure class. The distinction is kept in logs
// only.
func (c *Client) Complete(ctx context.Context, prompt string, p Params) (string, error) {
	resp, err := genkit.Generate(ctx, c.g,
		ai.WithPrompt(prompt),
		ai.WithModelName(c.modelName),
		ai.WithConfig(map[string]any{
			"temperature":     p.Temperature,
			"maxOutputTokens": p.MaxTokens,
			"topP":            p.TopP,
			"presencePenalty": p.PresencePenalty,
		}),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("generation deadline exceeded", "model", c.modelName)
		} else {
			c.logger.Warn("generation failed", "model", c.modelName, "error", err)
		}
		return "", fmt.Errorf("generating response: %w", err)
	}

	return resp.Text(), nil
}
