package executor

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/adocbuilder/internal/engine"
	apperrors "git.home.luguber.info/inful/adocbuilder/internal/errors"
	"git.home.luguber.info/inful/adocbuilder/internal/job"
	"git.home.luguber.info/inful/adocbuilder/internal/observability"
)

// fakeEngine records which jobs each instance converted and can fail selected
// backends.
type fakeEngine struct {
	id  int
	rec *recording
}

type recording struct {
	mu        sync.Mutex
	instances int
	calls     []string // "<instance>:<backend>" in completion order
	fail      map[string]error
	delay     time.Duration

	// writeOutputs makes Convert emit one file per job into its output dir.
	writeOutputs bool
}

func (r *recording) factory() engine.Factory {
	return func() engine.Engine {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.instances++
		return &fakeEngine{id: r.instances, rec: r}
	}
}

func (e *fakeEngine) Convert(ctx context.Context, j *job.Job) (*engine.Result, error) {
	if e.rec.delay > 0 {
		time.Sleep(e.rec.delay)
	}
	e.rec.mu.Lock()
	e.rec.calls = append(e.rec.calls, fmt.Sprintf("%d:%s", e.id, j.Backend))
	err := e.rec.fail[j.Backend]
	e.rec.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if e.rec.writeOutputs {
		if err := os.MkdirAll(j.OutputDir, 0o750); err != nil {
			return nil, err
		}
		out := filepath.Join(j.OutputDir, "index."+j.Backend)
		if err := os.WriteFile(out, []byte(j.Backend), 0o640); err != nil {
			return nil, err
		}
	}
	return &engine.Result{Backend: j.Backend, OutputFiles: []string{j.Backend + ".out"}}, nil
}

func makeBatch(t *testing.T, backends ...string) *job.Batch {
	t.Helper()
	batch := job.NewBatch()
	for _, b := range backends {
		require.NoError(t, batch.Add(&job.Job{
			Backend:     b,
			SourceDir:   "/docs",
			BaseDir:     "/docs",
			OutputDir:   "/build/" + b,
			SourceFiles: []string{"/docs/index.adoc"},
		}))
	}
	return batch
}

func TestInProcessSharesOneEngineInOrder(t *testing.T) {
	rec := &recording{}
	e := NewInProcess(Deps{NewEngine: rec.factory()})

	require.NoError(t, e.Execute(context.Background(), makeBatch(t, "html5", "pdf", "epub3"), false))

	assert.Equal(t, 1, rec.instances, "in-process execution shares a single engine")
	assert.Equal(t, []string{"1:html5", "1:pdf", "1:epub3"}, rec.calls, "declaration order must hold")
}

func TestInProcessFailFast(t *testing.T) {
	rec := &recording{fail: map[string]error{"pdf": fmt.Errorf("theme missing")}}
	e := NewInProcess(Deps{NewEngine: rec.factory()})

	err := e.Execute(context.Background(), makeBatch(t, "html5", "pdf", "epub3"), false)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConversion))

	// epub3 was never attempted.
	assert.Equal(t, []string{"1:html5", "1:pdf"}, rec.calls)
}

func TestWorkerSequentialSingleEngine(t *testing.T) {
	rec := &recording{}
	e := NewWorker(Deps{NewEngine: rec.factory()})

	require.NoError(t, e.Execute(context.Background(), makeBatch(t, "html5", "pdf"), false))

	assert.Equal(t, 1, rec.instances, "sequential sandbox shares one engine across the batch")
	assert.Equal(t, []string{"1:html5", "1:pdf"}, rec.calls)
}

func TestWorkerParallelFreshEnginePerJob(t *testing.T) {
	rec := &recording{delay: 5 * time.Millisecond}
	e := NewWorker(Deps{NewEngine: rec.factory()})

	require.NoError(t, e.Execute(context.Background(), makeBatch(t, "html5", "pdf", "epub3"), true))

	assert.Equal(t, 3, rec.instances, "parallel sandbox constructs one engine per worker")
	assert.Len(t, rec.calls, 3)
}

func TestWorkerParallelAggregatesFirstDeclaredFailure(t *testing.T) {
	rec := &recording{fail: map[string]error{
		"pdf":   fmt.Errorf("pdf broke"),
		"epub3": fmt.Errorf("epub broke"),
	}}
	e := NewWorker(Deps{NewEngine: rec.factory()})

	err := e.Execute(context.Background(), makeBatch(t, "html5", "pdf", "epub3"), true)
	require.Error(t, err)
	// Deterministic aggregate: the first failing backend in declaration order.
	assert.Contains(t, err.Error(), "pdf broke")
}

func TestWorkerSequentialCancellation(t *testing.T) {
	rec := &recording{delay: 50 * time.Millisecond}
	e := NewWorker(Deps{NewEngine: rec.factory()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Execute(ctx, makeBatch(t, "html5", "pdf"), false)
	assert.ErrorIs(t, err, context.Canceled)
}

func forkScript(t *testing.T, body string) []string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fork stubs require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "child.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return []string{"/bin/sh", path}
}

func TestForkedSuccessPassesTransferFile(t *testing.T) {
	captured := filepath.Join(t.TempDir(), "captured.json")
	e := NewForked(Deps{NewEngine: (&recording{}).factory()}, filepath.Join(t.TempDir(), "batch.json"))
	e.argv = forkScript(t, fmt.Sprintf(`cp "$1" %q; exit 0`, captured))

	ctx := observability.WithInvocationID(context.Background(), "inv-42")
	require.NoError(t, e.Execute(ctx, makeBatch(t, "html5", "pdf"), false))

	// The child received a readable transfer file with both jobs, stamped
	// with the host's invocation ID.
	transfer, err := job.ReadTransfer(captured)
	require.NoError(t, err)
	assert.Equal(t, []string{"html5", "pdf"}, transfer.Batch.Backends())
	assert.Equal(t, "inv-42", transfer.InvocationID)

	// The host cleans the transfer file up after the child exits.
	_, statErr := os.Stat(e.transferPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestForkedNonZeroExitIsWrappedWithCause(t *testing.T) {
	e := NewForked(Deps{NewEngine: (&recording{}).factory()}, filepath.Join(t.TempDir(), "batch.json"))
	e.argv = forkScript(t, `echo "conversion (fatal): document conversion failed" >&2; exit 1`)

	err := e.Execute(context.Background(), makeBatch(t, "html5"), false)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConversion))

	var ce *apperrors.ConvertError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Context["exit_code"])
	assert.Contains(t, ce.Context["detail"], "document conversion failed")
}

func TestForkedLaunchFailure(t *testing.T) {
	e := NewForked(Deps{NewEngine: (&recording{}).factory()}, filepath.Join(t.TempDir(), "batch.json"))
	e.argv = []string{filepath.Join(t.TempDir(), "does-not-exist")}

	err := e.Execute(context.Background(), makeBatch(t, "html5"), false)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryLaunch))
}

func TestRunTransferFileChildEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, job.WriteTransfer(path, "inv-1", makeBatch(t, "html5", "pdf")))

	rec := &recording{}
	require.NoError(t, RunTransferFile(context.Background(), path, Deps{NewEngine: rec.factory()}))

	assert.Equal(t, 1, rec.instances, "child runs the batch on one engine")
	assert.Equal(t, []string{"1:html5", "1:pdf"}, rec.calls)
}

func TestRunTransferFileMissing(t *testing.T) {
	err := RunTransferFile(context.Background(), filepath.Join(t.TempDir(), "nope.json"), Deps{
		NewEngine: (&recording{}).factory(),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryLaunch))
}

func makeOutputBatch(t *testing.T, outputRoot string, backends ...string) *job.Batch {
	t.Helper()
	batch := job.NewBatch()
	for _, b := range backends {
		require.NoError(t, batch.Add(&job.Job{
			Backend:     b,
			SourceDir:   "/docs",
			BaseDir:     "/docs",
			OutputDir:   filepath.Join(outputRoot, b),
			SourceFiles: []string{"/docs/index.adoc"},
		}))
	}
	return batch
}

// Identical batches must yield identical output-file sets no matter which
// isolation strategy runs them.
func TestAllModesProduceIdenticalOutputs(t *testing.T) {
	backends := []string{"html5", "pdf", "epub3"}

	outputsOf := func(t *testing.T, run func(root string)) []string {
		t.Helper()
		root := t.TempDir()
		run(root)
		var files []string
		require.NoError(t, filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				rel, relErr := filepath.Rel(root, p)
				require.NoError(t, relErr)
				files = append(files, rel)
			}
			return nil
		}))
		sort.Strings(files)
		return files
	}

	inProcess := outputsOf(t, func(root string) {
		rec := &recording{writeOutputs: true}
		e := NewInProcess(Deps{NewEngine: rec.factory()})
		require.NoError(t, e.Execute(context.Background(), makeOutputBatch(t, root, backends...), false))
	})
	workerSequential := outputsOf(t, func(root string) {
		rec := &recording{writeOutputs: true}
		e := NewWorker(Deps{NewEngine: rec.factory()})
		require.NoError(t, e.Execute(context.Background(), makeOutputBatch(t, root, backends...), false))
	})
	workerParallel := outputsOf(t, func(root string) {
		rec := &recording{writeOutputs: true}
		e := NewWorker(Deps{NewEngine: rec.factory()})
		require.NoError(t, e.Execute(context.Background(), makeOutputBatch(t, root, backends...), true))
	})
	forkedChild := outputsOf(t, func(root string) {
		rec := &recording{writeOutputs: true}
		path := filepath.Join(t.TempDir(), "batch.json")
		require.NoError(t, job.WriteTransfer(path, "inv-1", makeOutputBatch(t, root, backends...)))
		require.NoError(t, RunTransferFile(context.Background(), path, Deps{NewEngine: rec.factory()}))
	})

	require.NotEmpty(t, inProcess)
	assert.Equal(t, inProcess, workerSequential)
	assert.Equal(t, inProcess, workerParallel)
	assert.Equal(t, inProcess, forkedChild)
}

func TestForModeDispatch(t *testing.T) {
	deps := Deps{NewEngine: (&recording{}).factory()}
	assert.IsType(t, &InProcess{}, ForMode(ModeInProcess, deps, ""))
	assert.IsType(t, &Worker{}, ForMode(ModeSandboxedWorker, deps, ""))
	assert.IsType(t, &Forked{}, ForMode(ModeForkedProcess, deps, "/tmp/batch.json"))
}
