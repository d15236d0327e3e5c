package search

import "strings"

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Chunk is a window of page text. Offset counts runes from the page start.
type Chunk struct {
	Index  int
	Page   int
	Offset int
	Text   string
}

// Chunker splits page text into overlapping windows.
type Chunker struct {
	size    int
	overlap int
}

type ChunkerOption func(*Chunker)

func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

func WithChunkOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

func isBreak(r rune) bool {
	return r == '.' || r == ',' || r == '\n' || r == ' '
}

// Split chunks every page. Pages are numbered from 1; blank pages yield
// nothing. A full-size window is cut after the last break character found in
// its second half, or at the hard size limit when there is none.
func (c *Chunker) Split(pages []string) []Chunk {
	var chunks []Chunk
	for p, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		text := []rune(page)
		n := len(text)

		start := 0
		for start < n {
			end := start + c.size
			if end >= n {
				end = n
			} else {
				for i := end - 1; i > start+c.size/2; i-- {
					if isBreak(text[i]) {
						end = i + 1
						break
					}
				}
			}

			if window := string(text[start:end]); strings.TrimSpace(window) != "" {
				chunks = append(chunks, Chunk{
					Index:  len(chunks),
					Page:   p + 1,
					Offset: start,
					Text:   window,
				})
			}
			if end == n {
				break
			}

			next := end - c.overlap
			if next <= start {
				next = end
			}
			start = next
		}
	}
	return chunks
}
