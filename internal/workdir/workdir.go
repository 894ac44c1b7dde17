package workdir

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/adocbuilder/internal/errors"
	"git.home.luguber.info/inful/adocbuilder/internal/logfields"
)

// Manager handles the intermediate working directory for staged conversions.
type Manager struct {
	sourceDir string
	stageDir  string
}

// NewManager creates a manager staging sourceDir into stageDir.
func NewManager(sourceDir, stageDir string) *Manager {
	return &Manager{sourceDir: sourceDir, stageDir: stageDir}
}

// Path returns the staging directory, the effective source root after Stage.
func (m *Manager) Path() string { return m.stageDir }

// Stage clears and recreates the staging directory, then copies the full
// source tree into it. Hidden entries and a staging dir nested inside the
// source tree are skipped.
func (m *Manager) Stage() error {
	if m.stageDir == "" {
		return errors.WorkdirError("stage", os.ErrInvalid)
	}
	if err := os.RemoveAll(m.stageDir); err != nil {
		return errors.WorkdirError("clear", err)
	}
	if err := os.MkdirAll(m.stageDir, 0o750); err != nil {
		return errors.WorkdirError("create", err)
	}

	absStage, err := filepath.Abs(m.stageDir)
	if err != nil {
		return errors.WorkdirError("resolve", err)
	}

	copied := 0
	err = filepath.WalkDir(m.sourceDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == m.sourceDir {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil && abs == absStage {
			return filepath.SkipDir
		}
		if d.Name()[0] == '.' {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(m.sourceDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(m.stageDir, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, data, info.Mode().Perm()); err != nil {
			return err
		}
		copied++
		return nil
	})
	if err != nil {
		return errors.WorkdirError("copy", err)
	}

	slog.Info("Staged sources into working directory",
		logfields.SourceDir(m.sourceDir),
		logfields.Path(m.stageDir),
		logfields.Count(copied))
	return nil
}

// Cleanup removes the staging directory. Callers that want to inspect
// intermediate artifacts simply skip the call.
func (m *Manager) Cleanup() error {
	if m.stageDir == "" {
		return nil
	}
	if err := os.RemoveAll(m.stageDir); err != nil {
		return errors.WorkdirError("cleanup", err)
	}
	slog.Debug("Removed working directory", logfields.Path(m.stageDir))
	return nil
}
