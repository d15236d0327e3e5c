// Package search builds per-document full-text indexes and answers ranked
// queries against them. One index is kept per document, tagged with the
// content version it was built from.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"writingstuff/pkg/logger"
	"writingstuff/pkg/metrics"

	"golang.org/x/sync/singleflight"
)

type slot struct {
	// floor is the lowest version that may still be published.
	floor   int64
	current *Index
}

type Engine struct {
	chunker *Chunker

	mu    sync.Mutex
	slots map[string]*slot
	group singleflight.Group
}

func NewEngine(chunker *Chunker) *Engine {
	if chunker == nil {
		chunker = NewChunker()
	}
	return &Engine{chunker: chunker, slots: make(map[string]*slot)}
}

// Lookup returns the published index for exactly this version, if any.
func (e *Engine) Lookup(docID string, version int64) *Index {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.slots[docID]; ok && s.current != nil && s.current.Version == version {
		return s.current
	}
	return nil
}

// Ensure returns the index for (docID, version), building it when needed.
// Concurrent callers for the same version share one build. If the build
// leader's context is cancelled, waiters still interested build again under
// their own context.
func (e *Engine) Ensure(ctx context.Context, docID string, version int64, pages []string) (*Index, error) {
	key := fmt.Sprintf("%s@%d", docID, version)
	for {
		if idx := e.Lookup(docID, version); idx != nil {
			return idx, nil
		}
		if e.belowFloor(docID, version) {
			return nil, ErrStale
		}

		ch := e.group.DoChan(key, func() (interface{}, error) {
			return e.build(ctx, docID, version, pages)
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(*Index), nil
			}
			cancelled := errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded)
			if cancelled && ctx.Err() == nil {
				continue
			}
			return nil, res.Err
		}
	}
}

func (e *Engine) belowFloor(docID string, version int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.slots[docID]
	return ok && version < s.floor
}

func (e *Engine) build(ctx context.Context, docID string, version int64, pages []string) (*Index, error) {
	idx, err := Build(ctx, docID, version, e.chunker.Split(pages))
	if err != nil {
		metrics.IndexBuilds.WithLabelValues("failed").Inc()
		return nil, err
	}
	published, ok := e.publish(idx)
	if !ok {
		idx.Close()
		metrics.IndexBuilds.WithLabelValues("discarded").Inc()
		return nil, ErrStale
	}
	if published != idx {
		// Another build of the same version won the race.
		idx.Close()
		return published, nil
	}
	metrics.IndexBuilds.WithLabelValues("published").Inc()
	logger.Sugar.Debugf("Search index for %s@%d published (%d chunks)", docID, version, len(idx.chunks))
	return idx, nil
}

// publish installs idx unless a newer version was saved or published since
// the build began. It returns the index now current for idx.Version.
func (e *Engine) publish(idx *Index) (*Index, bool) {
	e.mu.Lock()
	s, ok := e.slots[idx.DocID]
	if !ok {
		s = &slot{}
		e.slots[idx.DocID] = s
	}
	if idx.Version < s.floor {
		e.mu.Unlock()
		return nil, false
	}
	if s.current != nil && s.current.Version >= idx.Version {
		cur := s.current
		e.mu.Unlock()
		if cur.Version == idx.Version {
			return cur, true
		}
		return nil, false
	}
	old := s.current
	s.current = idx
	e.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return idx, true
}

// Invalidate records that version is now current. Older indexes are closed
// and builds for them will not be published.
func (e *Engine) Invalidate(docID string, version int64) {
	e.mu.Lock()
	s, ok := e.slots[docID]
	if !ok {
		s = &slot{}
		e.slots[docID] = s
	}
	if version > s.floor {
		s.floor = version
	}
	var old *Index
	if s.current != nil && s.current.Version < s.floor {
		old, s.current = s.current, nil
	}
	e.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

// Drop forgets a deleted document. The slot is kept as a tombstone so an
// in-flight build cannot resurrect it.
func (e *Engine) Drop(docID string) {
	e.mu.Lock()
	s, ok := e.slots[docID]
	if !ok {
		s = &slot{}
		e.slots[docID] = s
	}
	old := s.current
	s.current = nil
	s.floor = math.MaxInt64
	e.mu.Unlock()

	if old != nil {
		old.Close()
	}
}
