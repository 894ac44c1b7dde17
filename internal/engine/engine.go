// Package engine wraps invocation of the external AsciiDoc conversion engine.
// The orchestrator never interprets documents itself; it hands a frozen job to
// an Engine and observes the outcome.
package engine

import (
	"context"
	"time"

	"git.home.luguber.info/inful/adocbuilder/internal/job"
)

// Result describes one job's conversion outcome.
type Result struct {
	Backend     string
	OutputFiles []string
	Duration    time.Duration
}

// Engine converts all source files of a single job. Implementations may keep
// state between calls (loaded runtime modules, converter registries); callers
// choose whether to share an instance across jobs or construct a fresh one,
// which is exactly the isolation trade-off between execution modes.
type Engine interface {
	Convert(ctx context.Context, j *job.Job) (*Result, error)
}

// Factory constructs a fresh engine instance. Sandboxed workers call it once
// per isolation context.
type Factory func() Engine
