package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/adocbuilder/internal/job"
	"git.home.luguber.info/inful/adocbuilder/internal/logfields"
)

// Worker runs jobs inside sandboxed execution contexts, each with its own
// fresh engine instance.
//
// With parallel=true one independent worker is dispatched per job and all run
// concurrently; no ordering exists between them, so jobs must not share
// output subpaths. With parallel=false a single worker processes the whole
// batch in declaration order on one engine instance, trading per-backend
// isolation for shared-extension reuse.
type Worker struct {
	deps Deps
}

// NewWorker returns the sandboxed-worker executor.
func NewWorker(deps Deps) *Worker {
	return &Worker{deps: deps}
}

func (e *Worker) Execute(ctx context.Context, batch *job.Batch, parallel bool) error {
	if !parallel {
		slog.Debug("Dispatching single sandboxed worker for full batch", logfields.Count(batch.Len()))
		return e.runSingleWorker(ctx, batch)
	}
	return e.runWorkerPerJob(ctx, batch)
}

func (e *Worker) runSingleWorker(ctx context.Context, batch *job.Batch) error {
	done := make(chan error, 1)
	go func() {
		eng := e.deps.NewEngine()
		done <- runSequential(ctx, eng, batch.Jobs(), e.deps.recorder())
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// The worker keeps draining into the buffered channel; the caller
		// observes cancellation immediately.
		return ctx.Err()
	}
}

func (e *Worker) runWorkerPerJob(ctx context.Context, batch *job.Batch) error {
	jobs := batch.Jobs()
	results := make([]error, len(jobs))

	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j *job.Job) {
			defer wg.Done()
			slog.Debug("Sandboxed worker started",
				logfields.Worker(fmt.Sprintf("w%d", i)),
				logfields.Backend(j.Backend))
			eng := e.deps.NewEngine()
			results[i] = convertOne(ctx, eng, j, e.deps.recorder())
		}(i, j)
	}
	wg.Wait()

	// Aggregate to a single failure; first by declaration order wins to keep
	// the reported cause deterministic.
	for _, err := range results {
		if err != nil {
			return err
		}
	}
	return nil
}
