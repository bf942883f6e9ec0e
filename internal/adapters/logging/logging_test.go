package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/plughost/internal/ports"
)

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")

	assert.Same(t, logger, logger.With(ports.F("k", "v")))
	assert.Equal(t, ports.LevelInfo, logger.Level())
	logger.SetLevel(ports.LevelDebug)
	assert.Equal(t, ports.LevelDebug, logger.Level())
}

func TestConsoleLogger_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(
		WithOutput(&buf),
		WithTimestamp(false),
	)

	logger.Warn(context.Background(), "unable to locate library",
		ports.F("plugin", "clock@1.0"),
		ports.F("file", "my libs/gson.jar"),
	)

	assert.Equal(t, "[WARN] unable to locate library plugin=clock@1.0 file=\"my libs/gson.jar\"\n", buf.String())
}

func TestConsoleLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(
		WithOutput(&buf),
		WithLevel(ports.LevelWarn),
		WithTimestamp(false),
	)

	ctx := context.Background()
	logger.Debug(ctx, "hidden")
	logger.Info(ctx, "hidden")
	logger.Error(ctx, "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[ERROR] shown")
}

func TestConsoleLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(
		WithOutput(&buf),
		WithFormat(FormatJSON),
		WithTimestamp(false),
	)

	logger.Error(context.Background(), "unable to initialize plugin", ports.Err(errors.New("boom")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "unable to initialize plugin", entry["msg"])
	assert.Equal(t, "boom", entry["error"])
	assert.NotContains(t, entry, "time")
}

func TestConsoleLogger_With(t *testing.T) {
	var buf bytes.Buffer
	base := NewConsoleLogger(WithOutput(&buf), WithTimestamp(false), WithLevelLabel(false))

	child := base.With(ports.F("check", "run-1"))
	child.Info(context.Background(), "plugin detected", ports.F("plugin", "clock"))
	base.Info(context.Background(), "plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "plugin detected check=run-1 plugin=clock", lines[0])
	assert.Equal(t, "plain", lines[1])
}

func TestConsoleLogger_SetLevel(t *testing.T) {
	logger := NewConsoleLogger()
	assert.Equal(t, ports.LevelInfo, logger.Level())
	logger.SetLevel(ports.LevelError)
	assert.Equal(t, ports.LevelError, logger.Level())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	f, err = ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
