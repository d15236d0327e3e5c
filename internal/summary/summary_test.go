package summary

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"writingstuff/internal/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const article = `Solar power adoption grew rapidly across Europe last year. Governments offered
generous subsidies for rooftop solar panels. Critics argued the subsidies favoured wealthy homeowners.
Meanwhile, battery storage prices dropped sharply, making solar power more practical at night.
Analysts expect solar power and battery storage to dominate new capacity. The weather was pleasant.`

func TestExtractiveSelectsCentralSentences(t *testing.T) {
	r := Extractive(article, 2, 1200)
	require.False(t, r.Insufficient)

	assert.Contains(t, r.Text, "Solar power adoption grew rapidly")
	assert.NotContains(t, r.Text, "weather")
	assert.LessOrEqual(t, strings.Count(r.Text, ". ")+1, 2)
}

func TestExtractiveKeepsOriginalOrder(t *testing.T) {
	r := Extractive(article, 5, 1200)
	first := strings.Index(r.Text, "Solar power adoption")
	later := strings.Index(r.Text, "Analysts expect")
	require.GreaterOrEqual(t, first, 0)
	require.Greater(t, later, first)
}

func TestExtractiveRespectsCharBudget(t *testing.T) {
	r := Extractive(article, 5, 120)
	assert.LessOrEqual(t, len([]rune(r.Text)), 120)
	assert.NotEmpty(t, r.Text)
}

func TestExtractiveTinyCharBudget(t *testing.T) {
	for _, maxChars := range []int{0, 1, 2, 3, 4} {
		r := Extractive(article, 5, maxChars)
		assert.LessOrEqual(t, len([]rune(r.Text)), maxChars)
	}
	assert.Equal(t, "ab", truncateWords("abcdef", 2))
	assert.Equal(t, "a...", truncateWords("abcdef", 4))
}

func TestExtractiveInsufficient(t *testing.T) {
	for _, text := range []string{"", "   ", "Too short to say much.", "\f\f"} {
		r := Extractive(text, 5, 1200)
		assert.True(t, r.Insufficient, text)
		assert.NotEmpty(t, r.Text)
	}
}

func TestSplitSentencesAbbreviations(t *testing.T) {
	s := splitSentences("Dr. Smith met J. Doe, e.g. at noon. They talked!   Then left?")
	require.Len(t, s, 3)
	assert.Equal(t, "Dr. Smith met J. Doe, e.g. at noon.", s[0].text)
	assert.Equal(t, "They talked!", s[1].text)
	assert.Equal(t, "Then left?", s[2].text)
}

type countingProvider struct {
	calls atomic.Int32
	out   string
	err   error
}

func (p *countingProvider) Rewrite(context.Context, string, string) (string, error) {
	return "", ai.ErrDisabled
}

func (p *countingProvider) Summarize(context.Context, string, int) (string, error) {
	p.calls.Add(1)
	return p.out, p.err
}

func TestSummarizeCachesPerVersion(t *testing.T) {
	p := &countingProvider{out: "Solar is growing."}
	e := NewEngine(p, NewMemoryCache(), 5, 1200)
	ctx := context.Background()

	r, err := e.Summarize(ctx, "doc", 1, article)
	require.NoError(t, err)
	assert.Equal(t, "Solar is growing.", r.Text)
	assert.Equal(t, int64(1), r.Version)

	_, err = e.Summarize(ctx, "doc", 1, article)
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.calls.Load())

	require.NoError(t, e.Invalidate(ctx, "doc", 2))
	r, err = e.Summarize(ctx, "doc", 2, article)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.Version)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestSummarizeFallsBackToExtractive(t *testing.T) {
	e := NewEngine(&countingProvider{err: errors.New("boom")}, nil, 2, 1200)
	r, err := e.Summarize(context.Background(), "doc", 1, article)
	require.NoError(t, err)
	assert.Contains(t, r.Text, "Solar power adoption")
}

func TestSummarizeInsufficientSkipsProvider(t *testing.T) {
	p := &countingProvider{out: "should not be used"}
	e := NewEngine(p, nil, 5, 1200)
	r, err := e.Summarize(context.Background(), "doc", 1, "Tiny.")
	require.NoError(t, err)
	assert.True(t, r.Insufficient)
	assert.Equal(t, int32(0), p.calls.Load())
}

func TestSummarizeConcurrentSharesWork(t *testing.T) {
	p := &countingProvider{out: "Shared."}
	e := NewEngine(p, nil, 5, 1200)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := e.Summarize(context.Background(), "doc", 1, article)
			assert.NoError(t, err)
			assert.Equal(t, "Shared.", r.Text)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, p.calls.Load(), int32(10))
	assert.GreaterOrEqual(t, p.calls.Load(), int32(1))
}

func TestMemoryCacheVersionGuards(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "doc", 2, Result{Text: "v2"}))
	require.NoError(t, c.Put(ctx, "doc", 1, Result{Text: "v1"}))
	r, ok, _ := c.Get(ctx, "doc", 2)
	require.True(t, ok)
	assert.Equal(t, "v2", r.Text)

	_, ok, _ = c.Get(ctx, "doc", 1)
	assert.False(t, ok)

	require.NoError(t, c.Invalidate(ctx, "doc", 3))
	_, ok, _ = c.Get(ctx, "doc", 2)
	assert.False(t, ok)
	require.NoError(t, c.Put(ctx, "doc", 2, Result{Text: "late v2"}))
	_, ok, _ = c.Get(ctx, "doc", 2)
	assert.False(t, ok)

	require.NoError(t, c.Drop(ctx, "doc"))
	require.NoError(t, c.Put(ctx, "doc", 4, Result{Text: "v4"}))
	_, ok, _ = c.Get(ctx, "doc", 4)
	assert.False(t, ok)
}
