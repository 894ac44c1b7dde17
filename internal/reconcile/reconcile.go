// Package reconcile implements the post-conversion step that copies declared
// resources and intermediate artifacts into each job's output directory. It
// runs only after every job in the batch completed, so conversion side
// effects (diagram output, generated images) are on disk before the copy step
// inspects the source tree.
package reconcile

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/adocbuilder/internal/errors"
	"git.home.luguber.info/inful/adocbuilder/internal/job"
	"git.home.luguber.info/inful/adocbuilder/internal/logfields"
	"git.home.luguber.info/inful/adocbuilder/internal/util/globs"
)

// Options declares what gets copied for jobs whose copy-resources flag is set.
type Options struct {
	// ResourcePatterns are globs relative to the job source dir ("images/**").
	ResourcePatterns []string

	// ArtifactPatterns match intermediate files emitted into the source tree
	// by conversion side effects.
	ArtifactPatterns []string

	// VerifyHTML enables parse-verification of emitted HTML documents.
	VerifyHTML bool
}

// Reconciler copies auxiliary files per completed job.
type Reconciler struct {
	opts Options
}

// New returns a reconciler with the given options.
func New(opts Options) *Reconciler {
	return &Reconciler{opts: opts}
}

// Run reconciles every job in the batch, in declaration order. Jobs whose
// copy-resources flag is unset are skipped entirely; their output directory
// is left exactly as the engine wrote it.
func (r *Reconciler) Run(batch *job.Batch) error {
	for _, j := range batch.Jobs() {
		if err := r.reconcileJob(j); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) reconcileJob(j *job.Job) error {
	if j.CopyResources {
		copied, err := copyMatches(j.SourceDir, j.OutputDir, append(r.opts.ResourcePatterns, r.opts.ArtifactPatterns...))
		if err != nil {
			return errors.ReconcileFailed(j.Backend, err)
		}
		if copied > 0 {
			slog.Info("Copied resources into output",
				logfields.Backend(j.Backend),
				logfields.OutputDir(j.OutputDir),
				logfields.Count(copied))
		}
	}

	if r.opts.VerifyHTML && j.Backend == "html5" {
		if err := verifyHTMLOutputs(j.OutputDir); err != nil {
			return errors.ReconcileFailed(j.Backend, err)
		}
	}
	return nil
}

// copyMatches walks src once and copies every file matching any pattern into
// dst under its source-relative path. Existing destination files are
// overwritten; nothing is ever deleted from dst.
func copyMatches(src, dst string, patterns []string) (int, error) {
	if len(patterns) == 0 {
		return 0, nil
	}

	copied := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if !globs.MatchAny(patterns, filepath.ToSlash(rel)) {
			return nil
		}
		if err := copyFile(path, filepath.Join(dst, rel)); err != nil {
			return err
		}
		copied++
		return nil
	})
	if err != nil {
		return copied, err
	}
	return copied, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode().Perm())
}
