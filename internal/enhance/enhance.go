// Package enhance improves the wording of user text. A configured AI
// provider produces a rewrite; the local polisher always runs last so the
// result is stable under repeated application.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"writingstuff/internal/ai"
	"writingstuff/pkg/apperror"
	"writingstuff/pkg/logger"
)

type Engine struct {
	provider ai.Provider
}

func NewEngine(provider ai.Provider) *Engine {
	if provider == nil {
		provider = ai.Noop{}
	}
	return &Engine{provider: provider}
}

// Improve returns the revised text. Provider failures fall back to the local
// rules; only a cancelled context is reported.
func (e *Engine) Improve(ctx context.Context, text, style string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("text must not be empty: %w", apperror.ErrInvalidArgument)
	}

	polished := Polish(text)
	// Already-polished input goes straight back so repeated calls settle.
	if polished == text {
		return polished, nil
	}

	rewritten, err := e.provider.Rewrite(ctx, polished, style)
	switch {
	case err == nil && strings.TrimSpace(rewritten) != "":
		return Polish(rewritten), nil
	case ctx.Err() != nil:
		return "", ctx.Err()
	case err != nil && !errors.Is(err, ai.ErrDisabled):
		logger.Sugar.Warnf("AI rewrite failed, using local rules: %v", err)
	}
	return polished, nil
}
