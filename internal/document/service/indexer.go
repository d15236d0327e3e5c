package service

import (
	"context"
	"sync"
	"time"

	"writingstuff/pkg/logger"
)

const (
	indexQueueSize  = 128
	indexJobTimeout = 2 * time.Minute
)

type IndexJob struct {
	DocID   string
	Version int64
}

// IndexWorker runs search index builds in the background so saves and
// uploads return before the index is ready.
type IndexWorker struct {
	jobs    chan IndexJob
	workers int
	run     func(ctx context.Context, job IndexJob) error
	wg      sync.WaitGroup
}

func NewIndexWorker(workers int, run func(ctx context.Context, job IndexJob) error) *IndexWorker {
	if workers <= 0 {
		workers = 1
	}
	return &IndexWorker{
		jobs:    make(chan IndexJob, indexQueueSize),
		workers: workers,
		run:     run,
	}
}

// Start launches the workers. They exit when ctx is cancelled; Wait blocks
// until they have.
func (w *IndexWorker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-w.jobs:
					w.process(ctx, job)
				}
			}
		}()
	}
}

func (w *IndexWorker) process(ctx context.Context, job IndexJob) {
	ctx, cancel := context.WithTimeout(ctx, indexJobTimeout)
	defer cancel()
	if err := w.run(ctx, job); err != nil {
		logger.Sugar.Warnf("Index job %s@%d failed: %v", job.DocID, job.Version, err)
	}
}

// Enqueue schedules job without blocking. A full queue drops the job; the
// next search builds the index on demand instead.
func (w *IndexWorker) Enqueue(job IndexJob) bool {
	select {
	case w.jobs <- job:
		return true
	default:
		logger.Sugar.Warnf("Index queue full, skipping %s@%d", job.DocID, job.Version)
		return false
	}
}

func (w *IndexWorker) Wait() {
	w.wg.Wait()
}
