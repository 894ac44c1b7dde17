package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/adocbuilder/internal/config"
)

func TestSetupWriterJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	SetupWriter(config.LoggingConfig{Level: "info", Format: "json"}, false, &buf)
	slog.Info("conversion started", "backend", "html5")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "conversion started", entry["msg"])
	assert.Equal(t, "html5", entry["backend"])
}

func TestSetupWriterLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	SetupWriter(config.LoggingConfig{Level: "error", Format: "text"}, false, &buf)
	slog.Info("suppressed")
	assert.Empty(t, buf.String())

	// Verbose overrides the configured level.
	SetupWriter(config.LoggingConfig{Level: "error", Format: "text"}, true, &buf)
	slog.Debug("visible now")
	assert.Contains(t, buf.String(), "visible now")
}

func TestInvocationIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, InvocationID(ctx))

	ctx = WithInvocationID(ctx, "inv-7")
	assert.Equal(t, "inv-7", InvocationID(ctx))
}

func TestLogCarriesInvocationID(t *testing.T) {
	var buf bytes.Buffer
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	SetupWriter(config.LoggingConfig{Level: "info", Format: "json"}, false, &buf)
	Log(WithInvocationID(context.Background(), "inv-9")).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "inv-9", entry["invocation_id"])
}
