package executor

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/adocbuilder/internal/engine"
	"git.home.luguber.info/inful/adocbuilder/internal/errors"
	"git.home.luguber.info/inful/adocbuilder/internal/job"
	"git.home.luguber.info/inful/adocbuilder/internal/logfields"
	"git.home.luguber.info/inful/adocbuilder/internal/metrics"
)

// InProcess runs the whole batch on one shared engine instance inside the
// host process. Cheapest startup; extension state loaded by one job is
// visible to every later job. That leak is the documented trade-off users
// accept for speed.
type InProcess struct {
	deps Deps
}

// NewInProcess returns the in-process executor.
func NewInProcess(deps Deps) *InProcess {
	return &InProcess{deps: deps}
}

// Execute converts jobs sequentially in declaration order. The parallel flag
// is ignored: shared-state execution is inherently serial.
func (e *InProcess) Execute(ctx context.Context, batch *job.Batch, parallel bool) error {
	if parallel {
		slog.Debug("In-process execution is always sequential; ignoring parallel flag")
	}
	shared := e.deps.NewEngine()
	return runSequential(ctx, shared, batch.Jobs(), e.deps.recorder())
}

// runSequential converts jobs in order on a single engine instance, stopping
// at the first failure.
func runSequential(ctx context.Context, eng engine.Engine, jobs []*job.Job, rec metrics.Recorder) error {
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := convertOne(ctx, eng, j, rec); err != nil {
			return err
		}
	}
	return nil
}

func convertOne(ctx context.Context, eng engine.Engine, j *job.Job, rec metrics.Recorder) error {
	start := time.Now()
	res, err := eng.Convert(ctx, j)
	duration := time.Since(start)

	rec.ObserveConversionDuration(j.Backend, duration, err == nil)
	if err != nil {
		rec.IncConversionResult(j.Backend, metrics.ResultFailed)
		if errors.IsCategory(err, errors.CategoryConversion) {
			return err
		}
		return errors.ConversionFailed(j.Backend, err)
	}
	rec.IncConversionResult(j.Backend, metrics.ResultSuccess)
	slog.Info("Converted backend",
		logfields.Backend(j.Backend),
		logfields.Count(len(res.OutputFiles)),
		logfields.DurationMS(float64(duration.Milliseconds())))
	return nil
}
