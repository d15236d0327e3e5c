package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/lang/en"
	"github.com/blevesearch/bleve/mapping"
)

// ErrStale is returned when an index was replaced or dropped while in use,
// or a build finished for a version that is no longer current. Callers
// reload the document and try again.
var ErrStale = errors.New("search index is stale")

const (
	batchSize  = 128
	excerptMax = 300
)

type Hit struct {
	Text  string  `json:"text"`
	Page  int     `json:"page"`
	Score float64 `json:"score"`
	Chunk int     `json:"-"`
}

// Index is an immutable full-text index over one version of a document.
type Index struct {
	DocID   string
	Version int64

	mu     sync.RWMutex
	closed bool
	bleve  bleve.Index
	chunks []Chunk
}

type chunkDoc struct {
	Text string `json:"text"`
}

func newMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName
	text.Store = false
	text.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", text)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = en.AnalyzerName
	return im
}

// Build indexes chunks in memory. The context is checked between batches.
func Build(ctx context.Context, docID string, version int64, chunks []Chunk) (*Index, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	for start := 0; start < len(chunks); start += batchSize {
		if err := ctx.Err(); err != nil {
			idx.Close()
			return nil, err
		}
		end := min(start+batchSize, len(chunks))
		batch := idx.NewBatch()
		for _, c := range chunks[start:end] {
			if err := batch.Index(strconv.Itoa(c.Index), chunkDoc{Text: c.Text}); err != nil {
				idx.Close()
				return nil, fmt.Errorf("index chunk %d: %w", c.Index, err)
			}
		}
		if err := idx.Batch(batch); err != nil {
			idx.Close()
			return nil, fmt.Errorf("index batch: %w", err)
		}
	}

	return &Index{DocID: docID, Version: version, bleve: idx, chunks: chunks}, nil
}

// Query ranks chunks against q. Scores are relative to the best hit, so the
// top result scores 1. Equal scores keep document order.
func (i *Index) Query(ctx context.Context, q string, limit int) ([]Hit, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return nil, ErrStale
	}
	if len(i.chunks) == 0 || limit <= 0 {
		return []Hit{}, nil
	}

	mq := bleve.NewMatchQuery(q)
	mq.SetField("text")
	req := bleve.NewSearchRequestOptions(mq, len(i.chunks), 0, false)

	res, err := i.bleve.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var best float64
	for _, h := range res.Hits {
		best = math.Max(best, h.Score)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		n, err := strconv.Atoi(h.ID)
		if err != nil || n < 0 || n >= len(i.chunks) || best <= 0 {
			continue
		}
		c := i.chunks[n]
		hits = append(hits, Hit{
			Text:  excerpt(c.Text),
			Page:  c.Page,
			Score: math.Round(h.Score/best*1e4) / 1e4,
			Chunk: c.Index,
		})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Chunk < hits[b].Chunk
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Close releases the index. Queries waiting on it finish first; later ones
// get ErrStale.
func (i *Index) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return
	}
	i.closed = true
	i.bleve.Close()
}

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= excerptMax {
		return s
	}
	return strings.TrimSpace(string(r[:excerptMax])) + "..."
}
