package job

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBatch(t *testing.T) *Batch {
	t.Helper()
	batch := NewBatch()
	for _, backend := range []string{"html5", "pdf"} {
		require.NoError(t, batch.Add(&Job{
			Backend:     backend,
			SourceDir:   "/docs",
			BaseDir:     "/docs",
			OutputDir:   "/build/" + backend,
			SourceFiles: []string{"/docs/index.adoc"},
			Attributes:  map[string]any{"toc": "left"},
			SafeMode:    SafeModeSafe,
			Extensions:  []ExtensionRef{{Kind: ExtensionRequire, Value: "asciidoctor-diagram"}},
		}))
	}
	return batch
}

func TestBatchRejectsDuplicateBackend(t *testing.T) {
	batch := NewBatch()
	require.NoError(t, batch.Add(&Job{Backend: "html5"}))
	assert.Error(t, batch.Add(&Job{Backend: "html5"}))
}

func TestTransferRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "batch.json")
	batch := sampleBatch(t)

	require.NoError(t, WriteTransfer(path, "inv-42", batch))

	got, err := ReadTransfer(path)
	require.NoError(t, err)
	assert.Equal(t, "inv-42", got.InvocationID)
	assert.Equal(t, batch.Backends(), got.Batch.Backends(), "declaration order must survive serialization")

	j := got.Batch.Get("pdf")
	require.NotNil(t, j)
	assert.Equal(t, "/build/pdf", j.OutputDir)
	assert.Equal(t, SafeModeSafe, j.SafeMode)
	require.Len(t, j.Extensions, 1)
	assert.Equal(t, ExtensionRequire, j.Extensions[0].Kind)
}

func TestWriteTransferRejectsCallbacks(t *testing.T) {
	batch := NewBatch()
	require.NoError(t, batch.Add(&Job{
		Backend:    "html5",
		Extensions: []ExtensionRef{{Kind: ExtensionCallback, Callback: func() error { return nil }}},
	}))
	err := WriteTransfer(filepath.Join(t.TempDir(), "batch.json"), "inv", batch)
	assert.Error(t, err)
}

func TestReadTransferValidation(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadTransfer(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	// Empty batches never reach the forked process.
	path := filepath.Join(dir, "empty.json")
	require.NoError(t, WriteTransfer(path, "inv", NewBatch()))
	_, err = ReadTransfer(path)
	assert.Error(t, err)
}
