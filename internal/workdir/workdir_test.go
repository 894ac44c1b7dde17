package workdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestStageCopiesSourceTree(t *testing.T) {
	src := t.TempDir()
	stage := filepath.Join(t.TempDir(), "work")
	write(t, filepath.Join(src, "index.adoc"), "= Title")
	write(t, filepath.Join(src, "chapters", "one.adoc"), "== One")
	write(t, filepath.Join(src, ".git", "HEAD"), "ref")

	m := NewManager(src, stage)
	require.NoError(t, m.Stage())

	assert.FileExists(t, filepath.Join(stage, "index.adoc"))
	assert.FileExists(t, filepath.Join(stage, "chapters", "one.adoc"))
	assert.NoDirExists(t, filepath.Join(stage, ".git"))
}

func TestStageClearsPreviousContents(t *testing.T) {
	src := t.TempDir()
	stage := filepath.Join(t.TempDir(), "work")
	write(t, filepath.Join(src, "index.adoc"), "= Title")
	write(t, filepath.Join(stage, "stale.svg"), "leftover side effect")

	m := NewManager(src, stage)
	require.NoError(t, m.Stage())

	assert.NoFileExists(t, filepath.Join(stage, "stale.svg"))
	assert.FileExists(t, filepath.Join(stage, "index.adoc"))
}

func TestStageSkipsNestedStageDir(t *testing.T) {
	src := t.TempDir()
	stage := filepath.Join(src, "work")
	write(t, filepath.Join(src, "index.adoc"), "= Title")

	m := NewManager(src, stage)
	require.NoError(t, m.Stage())

	// The staging dir must not recursively contain itself.
	assert.NoDirExists(t, filepath.Join(stage, "work"))
	assert.FileExists(t, filepath.Join(stage, "index.adoc"))
}

func TestStageLeavesSourceUntouched(t *testing.T) {
	src := t.TempDir()
	write(t, filepath.Join(src, "index.adoc"), "= Title")

	m := NewManager(src, filepath.Join(t.TempDir(), "work"))
	require.NoError(t, m.Stage())

	// Simulate a conversion side effect inside the staged tree.
	write(t, filepath.Join(m.Path(), "diagram.png"), "png")

	assert.NoFileExists(t, filepath.Join(src, "diagram.png"))
}

func TestCleanup(t *testing.T) {
	src := t.TempDir()
	write(t, filepath.Join(src, "index.adoc"), "= Title")

	m := NewManager(src, filepath.Join(t.TempDir(), "work"))
	require.NoError(t, m.Stage())
	require.NoError(t, m.Cleanup())
	assert.NoDirExists(t, m.Path())
}

func TestStageEmptyPathFails(t *testing.T) {
	m := NewManager(t.TempDir(), "")
	assert.Error(t, m.Stage())
}
