package build

import (
	"context"
	"sync"
	"time"
)

// ProcessFunc inlines a single source.
type ProcessFunc func(ctx context.Context, src Source) FileResult

// WorkerPool runs a ProcessFunc over many sources with bounded parallelism.
// Each source is handled by exactly one worker; matches within a file stay
// sequential.
type WorkerPool struct {
	// workers defines the number of concurrent workers
	workers int
	process ProcessFunc
	// metrics receives every result, may be nil
	metrics *RunMetrics
}

// NewWorkerPool creates a pool. Fewer than one worker means one.
func NewWorkerPool(workers int, process ProcessFunc, metrics *RunMetrics) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		process: process,
		metrics: metrics,
	}
}

// Workers returns the configured parallelism.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// Run processes sources and returns their results in input order. Sources
// not started before ctx is cancelled get a result carrying ctx's error.
func (wp *WorkerPool) Run(ctx context.Context, sources []Source) []FileResult {
	results := make([]FileResult, len(sources))
	started := make([]bool, len(sources))

	tasks := make(chan int)
	var workerWg sync.WaitGroup

	workers := wp.workers
	if workers > len(sources) {
		workers = len(sources)
	}

	for i := 0; i < workers; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			wp.worker(ctx, sources, tasks, results)
		}()
	}

feed:
	for i := range sources {
		select {
		case <-ctx.Done():
			break feed
		case tasks <- i:
			started[i] = true
		}
	}
	close(tasks)
	workerWg.Wait()

	for i, ok := range started {
		if !ok {
			results[i] = FileResult{Path: sources[i].Path, Error: ctx.Err()}
		}
	}
	return results
}

// worker processes tasks until the channel closes.
func (wp *WorkerPool) worker(ctx context.Context, sources []Source, tasks <-chan int, results []FileResult) {
	for i := range tasks {
		if err := ctx.Err(); err != nil {
			results[i] = FileResult{Path: sources[i].Path, Error: err}
			continue
		}

		start := time.Now()
		result := wp.process(ctx, sources[i])
		if result.Duration == 0 {
			result.Duration = time.Since(start)
		}
		results[i] = result

		if wp.metrics != nil {
			wp.metrics.Record(result)
		}
	}
}
