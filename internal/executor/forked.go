package executor

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"git.home.luguber.info/inful/adocbuilder/internal/errors"
	"git.home.luguber.info/inful/adocbuilder/internal/job"
	"git.home.luguber.info/inful/adocbuilder/internal/logfields"
	"git.home.luguber.info/inful/adocbuilder/internal/metrics"
	"git.home.luguber.info/inful/adocbuilder/internal/observability"
)

// ChildCommand is the hidden CLI command the forked child runs. It takes the
// transfer-file path as its sole argument.
const ChildCommand = "exec-batch"

// Forked serializes the batch to a transfer file and relaunches this binary
// as a child process that deserializes and runs every job sequentially.
// Highest startup cost, strongest isolation, lowest peak memory pressure in
// the host; the safe fallback mode.
type Forked struct {
	deps Deps

	// transferPath is where the serialized batch is written.
	transferPath string

	// argv overrides the child command line, for tests. Empty means
	// re-invoke our own executable with ChildCommand.
	argv []string
}

// NewForked returns the forked-process executor.
func NewForked(deps Deps, transferPath string) *Forked {
	return &Forked{deps: deps, transferPath: transferPath}
}

// Execute writes the transfer file and awaits the child process. The parallel
// flag is ignored: the child always runs the batch sequentially.
func (e *Forked) Execute(ctx context.Context, batch *job.Batch, parallel bool) error {
	if parallel {
		slog.Debug("Forked execution runs the batch sequentially in the child; ignoring parallel flag")
	}

	if err := job.WriteTransfer(e.transferPath, observability.InvocationID(ctx), batch); err != nil {
		return errors.LaunchFailed(string(ModeForkedProcess), err)
	}
	defer os.Remove(e.transferPath)

	argv := e.argv
	if len(argv) == 0 {
		self, err := os.Executable()
		if err != nil {
			return errors.LaunchFailed(string(ModeForkedProcess), err)
		}
		argv = []string{self, ChildCommand}
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], append(argv[1:], e.transferPath)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = &stderr

	slog.Info("Launching forked conversion process",
		logfields.Path(e.transferPath),
		logfields.Count(batch.Len()))

	if err := cmd.Start(); err != nil {
		return errors.LaunchFailed(string(ModeForkedProcess), err)
	}
	err := cmd.Wait()
	// The child writes diagnostics to stderr; forward them so the host log
	// carries the engine's own failure report, not just an exit code.
	if out := strings.TrimSpace(stderr.String()); out != "" {
		for _, line := range strings.Split(out, "\n") {
			slog.Debug("forked process", slog.String("stderr", line))
		}
	}
	if err != nil {
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		e.deps.recorder().IncConversionResult("batch", metrics.ResultFailed)
		return errors.ForkExited(exitCode, lastLine(stderr.String()), err)
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// RunTransferFile is the child-process entry point: it loads the transfer
// file and runs every job sequentially on one engine instance, fully isolated
// from the parent. Exit status is the child's only success signal, so any
// error propagates to the caller for a non-zero exit.
func RunTransferFile(ctx context.Context, path string, deps Deps) error {
	transfer, err := job.ReadTransfer(path)
	if err != nil {
		return errors.Wrap(err, errors.CategoryLaunch, errors.SeverityFatal, "cannot load transfer file")
	}
	if transfer.InvocationID != "" {
		ctx = observability.WithInvocationID(ctx, transfer.InvocationID)
	}
	slog.Info("Forked child executing batch",
		logfields.InvocationID(transfer.InvocationID),
		logfields.Path(path),
		logfields.Count(transfer.Batch.Len()))
	eng := deps.NewEngine()
	return runSequential(ctx, eng, transfer.Batch.Jobs(), deps.recorder())
}
