package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortPages(t *testing.T) {
	c := NewChunker()
	chunks := c.Split([]string{"first page", "   ", "third page"})

	require.Len(t, chunks, 2)
	assert.Equal(t, Chunk{Index: 0, Page: 1, Offset: 0, Text: "first page"}, chunks[0])
	assert.Equal(t, Chunk{Index: 1, Page: 3, Offset: 0, Text: "third page"}, chunks[1])
}

func TestSplitBreaksOnPunctuationWithOverlap(t *testing.T) {
	c := NewChunker(WithChunkSize(20), WithChunkOverlap(5))
	text := "aaaa bbbb cccc dddd eeee ffff gggg"
	chunks := c.Split([]string{text})

	require.GreaterOrEqual(t, len(chunks), 2)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch.Text)), 20)
		assert.Equal(t, ch.Text, string([]rune(text)[ch.Offset:ch.Offset+len([]rune(ch.Text))]))
	}
	// First window ends right after the last space in its second half.
	assert.Equal(t, "aaaa bbbb cccc dddd ", chunks[0].Text)
	assert.Equal(t, 15, chunks[1].Offset)
	// The final chunk reaches the end of the page and nothing follows it.
	last := chunks[len(chunks)-1]
	assert.True(t, strings.HasSuffix(text, last.Text))
}

func TestSplitHardCutWithoutBreaks(t *testing.T) {
	c := NewChunker(WithChunkSize(10), WithChunkOverlap(2))
	chunks := c.Split([]string{strings.Repeat("x", 25)})

	require.Len(t, chunks, 3)
	assert.Equal(t, 0, chunks[0].Offset)
	assert.Equal(t, 8, chunks[1].Offset)
	assert.Equal(t, 16, chunks[2].Offset)
	assert.Len(t, chunks[2].Text, 9)
}

func TestSplitCountsRunes(t *testing.T) {
	c := NewChunker(WithChunkSize(4), WithChunkOverlap(1))
	chunks := c.Split([]string{"ééééé"})

	require.Len(t, chunks, 2)
	assert.Equal(t, "éééé", chunks[0].Text)
	assert.Equal(t, 3, chunks[1].Offset)
	assert.Equal(t, "éé", chunks[1].Text)
}

func TestNewChunkerClampsOverlap(t *testing.T) {
	c := NewChunker(WithChunkSize(100), WithChunkOverlap(100))
	assert.Equal(t, 25, c.overlap)
}
