// Package ai wraps the optional generative model used to rewrite and
// summarize text. With no provider configured the Noop provider is used and
// callers fall back to their local algorithms.
package ai

import (
	"context"
	"errors"
	"fmt"

	"writingstuff/config"
)

// ErrDisabled is returned by Noop so callers take their local path.
var ErrDisabled = errors.New("ai provider disabled")

type Provider interface {
	Rewrite(ctx context.Context, text, style string) (string, error)
	Summarize(ctx context.Context, text string, maxSentences int) (string, error)
}

type Noop struct{}

func (Noop) Rewrite(context.Context, string, string) (string, error) { return "", ErrDisabled }
func (Noop) Summarize(context.Context, string, int) (string, error) { return "", ErrDisabled }

// New returns the provider selected by cfg.Provider.
func New(ctx context.Context, cfg config.AIConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "off":
		return Noop{}, nil
	case "gemini":
		return NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
