package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"writingstuff/pkg/metrics"

	genai "google.golang.org/genai"
)

// maxPromptRunes bounds how much document text is sent in one request.
const maxPromptRunes = 60000

var styles = map[string]string{
	"":         "Keep the author's voice.",
	"formal":   "Use a formal, professional tone.",
	"casual":   "Use a relaxed, conversational tone.",
	"academic": "Use a precise academic register.",
	"concise":  "Make it as concise as possible without losing meaning.",
}

type Gemini struct {
	model    string
	timeout  time.Duration
	generate func(ctx context.Context, prompt string) (string, error)
}

func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("missing GOOGLE_API_KEY")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	g := &Gemini{model: model, timeout: timeout}
	g.generate = func(ctx context.Context, prompt string) (string, error) {
		res, err := c.Models.GenerateContent(ctx, g.model, []*genai.Content{
			genai.NewContentFromText(prompt, genai.RoleUser),
		}, nil)
		if err != nil {
			return "", err
		}
		return res.Text(), nil
	}
	return g, nil
}

func (g *Gemini) prompt(ctx context.Context, operation, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	out, err := g.generate(ctx, prompt)
	if err != nil {
		metrics.AIRequests.WithLabelValues(operation, "error").Inc()
		return "", fmt.Errorf("gemini %s: %w", operation, err)
	}
	out = stripFences(out)
	if out == "" {
		metrics.AIRequests.WithLabelValues(operation, "empty").Inc()
		return "", fmt.Errorf("gemini %s: empty response", operation)
	}
	metrics.AIRequests.WithLabelValues(operation, "ok").Inc()
	return out, nil
}

func (g *Gemini) Rewrite(ctx context.Context, text, style string) (string, error) {
	tone, ok := styles[strings.ToLower(strings.TrimSpace(style))]
	if !ok {
		tone = styles[""]
	}
	prompt := "Improve the grammar, clarity and flow of the following text. " + tone +
		" Return ONLY the revised text, with no commentary and no code fences.\n\n" + truncate(text)
	return g.prompt(ctx, "rewrite", prompt)
}

func (g *Gemini) Summarize(ctx context.Context, text string, maxSentences int) (string, error) {
	prompt := fmt.Sprintf("Summarize the following document in at most %d sentences of plain prose. "+
		"Return ONLY the summary, with no heading, list or code fences.\n\n%s", maxSentences, truncate(text))
	return g.prompt(ctx, "summarize", prompt)
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxPromptRunes {
		return s
	}
	return string(r[:maxPromptRunes])
}

// stripFences removes a ``` wrapper models sometimes add despite the prompt.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
