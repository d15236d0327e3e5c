package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"writingstuff/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsProvider(t *testing.T) {
	p, err := New(context.Background(), config.AIConfig{Provider: "off"})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, p)

	_, err = New(context.Background(), config.AIConfig{Provider: "gemini"})
	assert.Error(t, err)

	_, err = New(context.Background(), config.AIConfig{Provider: "other"})
	assert.Error(t, err)
}

func TestNoopIsDisabled(t *testing.T) {
	_, err := Noop{}.Rewrite(context.Background(), "x", "")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = Noop{}.Summarize(context.Background(), "x", 3)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestGeminiPromptsAndFences(t *testing.T) {
	var got string
	g := &Gemini{model: "test", generate: func(_ context.Context, prompt string) (string, error) {
		got = prompt
		return "```text\nRevised text.\n```", nil
	}}

	out, err := g.Rewrite(context.Background(), "revise me", "Formal")
	require.NoError(t, err)
	assert.Equal(t, "Revised text.", out)
	assert.Contains(t, got, "formal, professional")
	assert.True(t, strings.HasSuffix(got, "revise me"))

	_, err = g.Summarize(context.Background(), "body", 4)
	require.NoError(t, err)
	assert.Contains(t, got, "at most 4 sentences")
}

func TestGeminiErrors(t *testing.T) {
	g := &Gemini{generate: func(context.Context, string) (string, error) { return "  ", nil }}
	_, err := g.Rewrite(context.Background(), "x", "")
	assert.Error(t, err)

	g.generate = func(context.Context, string) (string, error) { return "", errors.New("quota") }
	_, err = g.Summarize(context.Background(), "x", 1)
	assert.ErrorContains(t, err, "quota")
}

func TestGeminiTimeout(t *testing.T) {
	g := &Gemini{timeout: 10 * time.Millisecond, generate: func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	_, err := g.Rewrite(context.Background(), "x", "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
