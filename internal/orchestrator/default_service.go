package orchestrator

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/adocbuilder/internal/config"
	"git.home.luguber.info/inful/adocbuilder/internal/engine"
	"git.home.luguber.info/inful/adocbuilder/internal/executor"
	"git.home.luguber.info/inful/adocbuilder/internal/history"
	"git.home.luguber.info/inful/adocbuilder/internal/job"
	"git.home.luguber.info/inful/adocbuilder/internal/logfields"
	"git.home.luguber.info/inful/adocbuilder/internal/metrics"
	"git.home.luguber.info/inful/adocbuilder/internal/observability"
	"git.home.luguber.info/inful/adocbuilder/internal/reconcile"
	"git.home.luguber.info/inful/adocbuilder/internal/sources"
	"git.home.luguber.info/inful/adocbuilder/internal/workdir"
)

// Deps collects the collaborators of DefaultService. Zero values select
// production defaults.
type Deps struct {
	// NewEngine constructs conversion engines. Defaults to the external
	// converter binary.
	NewEngine engine.Factory

	// Recorder receives invocation metrics. Defaults to NoopRecorder.
	Recorder metrics.Recorder

	// History receives the invocation ledger entry. Nil disables recording.
	History *history.Store

	// TransferDir holds the batch transfer file for forked execution.
	// Defaults to the system temp directory.
	TransferDir string
}

// DefaultService is the standard Service implementation.
type DefaultService struct {
	deps Deps
}

// NewService creates a DefaultService with the given dependencies.
func NewService(deps Deps) *DefaultService {
	if deps.NewEngine == nil {
		deps.NewEngine = func() engine.Engine { return engine.NewExec() }
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.NoopRecorder{}
	}
	if deps.TransferDir == "" {
		deps.TransferDir = os.TempDir()
	}
	return &DefaultService{deps: deps}
}

// Run executes one complete invocation.
func (s *DefaultService) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	invocationID := uuid.New().String()
	ctx = observability.WithInvocationID(ctx, invocationID)
	log := observability.Log(ctx)

	result := &Result{
		InvocationID: invocationID,
		StartTime:    start,
		Status:       StatusFailed,
		OutputDir:    req.Config.Output.Directory,
	}

	selection, err := selectMode(req.Config, log, s.deps.Recorder)
	if err != nil {
		return result, err
	}
	result.Mode = selection.Mode.String()
	result.Downgraded = selection.Warning != ""

	runErr := s.execute(ctx, req, selection, result)

	result.Duration = time.Since(start)
	s.deps.Recorder.ObserveInvocationDuration(result.Duration)
	if runErr == nil {
		result.Status = StatusSuccess
	}
	s.deps.Recorder.IncInvocationOutcome(string(result.Status))

	s.recordHistory(ctx, req.Config, result, runErr, log)

	if runErr != nil {
		return result, runErr
	}
	log.Info("invocation complete",
		logfields.Mode(result.Mode),
		logfields.Count(result.SourceCount),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))
	return result, nil
}

func (s *DefaultService) execute(ctx context.Context, req Request, selection executor.Selection, result *Result) error {
	cfg := req.Config
	log := observability.Log(ctx)

	effective := *cfg
	if cfg.WorkDir.Enabled {
		mgr := workdir.NewManager(cfg.Sources.Directory, cfg.WorkDir.Path)
		if err := mgr.Stage(); err != nil {
			return err
		}
		if !req.Options.KeepWorkDir {
			defer func() {
				if err := mgr.Cleanup(); err != nil {
					log.Warn("working directory cleanup failed", logfields.Error(err))
				}
			}()
		}
		effective.Sources.Directory = mgr.Path()
		if cfg.Sources.BaseDir == "" || cfg.Sources.BaseDir == cfg.Sources.Directory {
			effective.Sources.BaseDir = mgr.Path()
		}
		log.Debug("sources staged", logfields.Path(mgr.Path()))
	}

	resolved, err := sources.Resolve(effective.Sources)
	if err != nil {
		return err
	}
	result.SourceCount = len(resolved)
	log.Info("sources resolved", logfields.Count(len(resolved)), logfields.SourceDir(effective.Sources.Directory))

	batch, err := job.BuildBatch(&effective, resolved, job.BuildOptions{
		ForkBoundary:       selection.Mode.CrossesProcessBoundary(),
		Providers:          append(builtinProviders(), req.Options.Providers...),
		CallbackExtensions: req.Options.CallbackExtensions,
	})
	if err != nil {
		return err
	}
	result.Backends = batch.Backends()

	if cfg.Output.Clean {
		if err := cleanOutputDir(cfg.Output.Directory); err != nil {
			return err
		}
	}

	transferPath := filepath.Join(s.deps.TransferDir, "adocbuilder-batch-"+result.InvocationID+".json")
	exec := executor.ForMode(selection.Mode, executor.Deps{
		NewEngine: s.deps.NewEngine,
		Recorder:  s.deps.Recorder,
	}, transferPath)

	if err := exec.Execute(ctx, batch, cfg.Execution.Parallel); err != nil {
		return err
	}

	rec := reconcile.New(reconcile.Options{
		ResourcePatterns: cfg.Resources.Patterns,
		ArtifactPatterns: cfg.Resources.ArtifactPatterns,
		VerifyHTML:       true,
	})
	return rec.Run(batch)
}

func (s *DefaultService) recordHistory(ctx context.Context, cfg *config.Config, result *Result, runErr error, log *slog.Logger) {
	if s.deps.History == nil || !cfg.HistoryEnabled() {
		return
	}
	inv := history.Invocation{
		ID:         result.InvocationID,
		ConfigHash: cfg.Snapshot(),
		Mode:       result.Mode,
		Parallel:   cfg.Execution.Parallel,
		Backends:   result.Backends,
		Status:     string(result.Status),
		StartedAt:  result.StartTime,
		Duration:   result.Duration,
	}
	if runErr != nil {
		inv.Error = runErr.Error()
	}
	// Ledger failures must not fail an otherwise successful build.
	if err := s.deps.History.Record(ctx, inv); err != nil {
		log.Warn("history record failed", logfields.Error(err))
	}
}

func selectMode(cfg *config.Config, log *slog.Logger, rec metrics.Recorder) (executor.Selection, error) {
	preference, err := executor.ParseMode(cfg.Execution.Mode)
	if err != nil {
		return executor.Selection{}, err
	}
	selection := executor.Select(preference, cfg.Execution.HostVersion)
	rec.IncModeSelected(selection.Mode.String())
	if selection.Warning != "" {
		rec.IncModeDowngraded()
		log.Warn(selection.Warning, logfields.Mode(selection.Mode.String()))
	}
	return selection, nil
}

// cleanOutputDir empties the output directory without removing the directory
// itself, so watchers on it survive.
func cleanOutputDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
