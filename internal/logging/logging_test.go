package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	require.Equal(t, slog.LevelDebug, levelFromString(" DEBUG "))
	require.Equal(t, slog.LevelWarn, levelFromString("warning"))
	require.Equal(t, slog.LevelError, levelFromString("error"))
	require.Equal(t, slog.LevelInfo, levelFromString("verbose"))
}

func TestNewWithWriterFiltersLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", "source", "DSE")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "msg=shown")
	require.Contains(t, out, "source=DSE")
	require.Contains(t, out, "service=dse-reports")
}
