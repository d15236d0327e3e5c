// Package summary produces short summaries of document text and caches them
// per content version.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"writingstuff/internal/ai"
	"writingstuff/pkg/logger"
	"writingstuff/pkg/metrics"

	"golang.org/x/sync/singleflight"
)

type Result struct {
	Text         string `json:"summary"`
	Version      int64  `json:"version"`
	Insufficient bool   `json:"insufficient_content"`
}

type Engine struct {
	provider     ai.Provider
	cache        Cache
	maxSentences int
	maxChars     int
	group        singleflight.Group
}

func NewEngine(provider ai.Provider, cache Cache, maxSentences, maxChars int) *Engine {
	if provider == nil {
		provider = ai.Noop{}
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if maxSentences <= 0 {
		maxSentences = 5
	}
	if maxChars <= 0 {
		maxChars = 1200
	}
	return &Engine{provider: provider, cache: cache, maxSentences: maxSentences, maxChars: maxChars}
}

// Summarize returns the summary for text at version, from cache when
// possible. Concurrent calls for the same version share one computation.
func (e *Engine) Summarize(ctx context.Context, docID string, version int64, text string) (Result, error) {
	if r, ok, err := e.cache.Get(ctx, docID, version); err != nil {
		logger.Sugar.Warnf("Summary cache read for %s failed: %v", docID, err)
	} else if ok {
		metrics.SummaryCache.WithLabelValues("hit").Inc()
		return r, nil
	}
	metrics.SummaryCache.WithLabelValues("miss").Inc()

	key := fmt.Sprintf("%s@%d", docID, version)
	for {
		ch := e.group.DoChan(key, func() (interface{}, error) {
			return e.compute(ctx, docID, version, text)
		})
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(Result), nil
			}
			cancelled := errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded)
			if cancelled && ctx.Err() == nil {
				continue
			}
			return Result{}, res.Err
		}
	}
}

func (e *Engine) compute(ctx context.Context, docID string, version int64, text string) (Result, error) {
	local := Extractive(text, e.maxSentences, e.maxChars)
	r := local
	if !local.Insufficient {
		generated, err := e.provider.Summarize(ctx, text, e.maxSentences)
		switch {
		case err == nil && strings.TrimSpace(generated) != "":
			r = Result{Text: truncateWords(strings.TrimSpace(generated), e.maxChars)}
		case ctx.Err() != nil:
			return Result{}, ctx.Err()
		case err != nil && !errors.Is(err, ai.ErrDisabled):
			logger.Sugar.Warnf("AI summary for %s failed, using extractive: %v", docID, err)
		}
	}
	r.Version = version

	if err := e.cache.Put(ctx, docID, version, r); err != nil {
		logger.Sugar.Warnf("Summary cache write for %s failed: %v", docID, err)
	}
	return r, nil
}

// Invalidate marks version as current; older summaries are discarded.
func (e *Engine) Invalidate(ctx context.Context, docID string, version int64) error {
	return e.cache.Invalidate(ctx, docID, version)
}

func (e *Engine) Drop(ctx context.Context, docID string) error {
	return e.cache.Drop(ctx, docID)
}
