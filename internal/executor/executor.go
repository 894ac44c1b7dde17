package executor

import (
	"context"

	"git.home.luguber.info/inful/adocbuilder/internal/engine"
	"git.home.luguber.info/inful/adocbuilder/internal/job"
	"git.home.luguber.info/inful/adocbuilder/internal/metrics"
)

// Executor runs every job of a batch under one isolation strategy.
//
// Partial success is not modeled: the first failing job aborts the batch's
// remaining untried jobs and surfaces as a single aggregate failure. Output
// already written by completed jobs stays on disk; there is no rollback.
type Executor interface {
	Execute(ctx context.Context, batch *job.Batch, parallel bool) error
}

// Deps carries the collaborators every executor variant needs.
type Deps struct {
	// NewEngine constructs a fresh engine instance. In-process execution calls
	// it once and shares the instance; sandboxed workers call it per context.
	NewEngine engine.Factory

	// Recorder receives per-conversion metrics. Defaults to NoopRecorder.
	Recorder metrics.Recorder
}

func (d Deps) recorder() metrics.Recorder {
	if d.Recorder == nil {
		return metrics.NoopRecorder{}
	}
	return d.Recorder
}

// ForMode returns the executor implementing the selected isolation strategy.
// transferPath is only consulted for forked-process execution.
func ForMode(mode Mode, deps Deps, transferPath string) Executor {
	switch mode {
	case ModeSandboxedWorker:
		return NewWorker(deps)
	case ModeForkedProcess:
		return NewForked(deps, transferPath)
	default:
		return NewInProcess(deps)
	}
}
