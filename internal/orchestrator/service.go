// Package orchestrator provides the canonical conversion execution pipeline.
// All entry points (CLI, watch mode, tests) route through Service.
package orchestrator

import (
	"context"
	"time"

	"git.home.luguber.info/inful/adocbuilder/internal/config"
	"git.home.luguber.info/inful/adocbuilder/internal/job"
)

// Service is the canonical interface for executing conversion invocations.
type Service interface {
	// Run executes a complete invocation: stage → resolve → build batch →
	// select mode → execute → reconcile. Returns a Result with detailed
	// outcomes and any error encountered.
	Run(ctx context.Context, req Request) (*Result, error)
}

// Request contains all inputs required to execute one invocation.
type Request struct {
	// Config is the loaded configuration for this invocation.
	Config *config.Config

	// Options provides optional behavior modifiers.
	Options Options
}

// Options provides optional configuration for invocation behavior.
type Options struct {
	// Verbose enables detailed logging.
	Verbose bool

	// Providers supply lazily computed attributes on top of the built-ins.
	Providers []job.AttributeProvider

	// CallbackExtensions registers live extension hooks per backend. Only
	// valid for modes that stay inside the host process.
	CallbackExtensions map[string][]func() error

	// KeepWorkDir skips working-directory cleanup so intermediate artifacts
	// can be inspected.
	KeepWorkDir bool
}

// Status represents the outcome of an invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Result contains the outcome of one invocation.
type Result struct {
	// Status indicates the overall outcome.
	Status Status

	// InvocationID uniquely identifies this run.
	InvocationID string

	// Mode is the execution mode actually used.
	Mode string

	// Downgraded is true when the declared mode preference was overridden.
	Downgraded bool

	// Backends lists the converted backends in declaration order.
	Backends []string

	// SourceCount is the number of resolved source documents.
	SourceCount int

	// OutputDir is the root output directory.
	OutputDir string

	// Duration is the total invocation time.
	Duration time.Duration

	// StartTime is when the invocation started.
	StartTime time.Time
}
