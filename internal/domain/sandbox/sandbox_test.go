package sandbox

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/plughost/internal/adapters/logging"
	"github.com/felixgeelhaar/plughost/internal/ports"
	"github.com/felixgeelhaar/plughost/internal/testutil"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()

	var buf bytes.Buffer
	logger := logging.NewConsoleLogger(logging.WithOutput(&buf), logging.WithLevel(ports.LevelDebug))
	r, err := NewRuntime(context.Background(), DefaultConfig(), &HostServices{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func TestRuntime_InstantiateAndCall(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newTestRuntime(t)

	m, err := r.Instantiate(ctx, "answer@1.0", testutil.AnswerModule)
	require.NoError(t, err)
	assert.Equal(t, "answer@1.0", m.Name())
	assert.True(t, m.HasExport("answer"))
	assert.False(t, m.HasExport("question"))

	results, err := m.Call(ctx, "answer")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(42), results[0])

	_, err = m.Call(ctx, "question")
	assert.Error(t, err)

	assert.Equal(t, []string{"answer@1.0"}, r.Modules())
}

func TestRuntime_DuplicateModuleName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newTestRuntime(t)

	_, err := r.Instantiate(ctx, "clock", testutil.EmptyModule)
	require.NoError(t, err)

	_, err = r.Instantiate(ctx, "clock", testutil.EmptyModule)
	assert.ErrorIs(t, err, ErrModuleExists)
}

func TestRuntime_ModuleCloseFreesName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newTestRuntime(t)

	m, err := r.Instantiate(ctx, "clock", testutil.EmptyModule)
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx))
	assert.Empty(t, r.Modules())

	_, err = r.Instantiate(ctx, "clock", testutil.EmptyModule)
	assert.NoError(t, err)
}

func TestRuntime_InvalidModule(t *testing.T) {
	t.Parallel()

	r := newTestRuntime(t)
	_, err := r.Instantiate(context.Background(), "broken", []byte("not wasm"))
	assert.Error(t, err)
	assert.Empty(t, r.Modules())
}

func TestRuntime_SizeLimit(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxModuleBytes = 4
	r, err := NewRuntime(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = r.Close(context.Background()) }()

	_, err = r.Instantiate(context.Background(), "big", testutil.EmptyModule)
	assert.ErrorIs(t, err, ErrModuleTooLarge)
}

func TestRuntime_Close(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, err := NewRuntime(ctx, DefaultConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, r.Close(ctx))
	assert.True(t, r.Closed())
	require.NoError(t, r.Close(ctx), "close is idempotent")

	_, err = r.Instantiate(ctx, "late", testutil.EmptyModule)
	assert.ErrorIs(t, err, ErrRuntimeClosed)
}

func TestLocateModule(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archive := testutil.NewArchive().
		WithFile("plugin.xml", []byte("<plugin/>")).
		WithFile("bin/com.example.Clock.wasm", testutil.AnswerModule).
		WriteTo(t, dir, "clock.jar")
	loose := testutil.WriteTempFile(t, dir, "com.example.Timer.wasm", testutil.EmptyModule)
	notZip := testutil.WriteTempFile(t, dir, "notes.jar", []byte("plain text"))

	t.Run("finds module inside archive", func(t *testing.T) {
		t.Parallel()
		data, from, err := LocateModule([]string{notZip, archive}, "com.example.Clock", 0)
		require.NoError(t, err)
		assert.Equal(t, testutil.AnswerModule, data)
		assert.Equal(t, archive+"!bin/com.example.Clock.wasm", from)
	})

	t.Run("finds loose module file", func(t *testing.T) {
		t.Parallel()
		data, from, err := LocateModule([]string{archive, loose}, "com.example.Timer", 0)
		require.NoError(t, err)
		assert.Equal(t, testutil.EmptyModule, data)
		assert.Equal(t, loose, from)
	})

	t.Run("reports missing module", func(t *testing.T) {
		t.Parallel()
		_, _, err := LocateModule([]string{archive, loose}, "com.example.Missing", 0)
		assert.ErrorIs(t, err, ErrModuleNotFound)
	})

	t.Run("enforces size limit", func(t *testing.T) {
		t.Parallel()
		_, _, err := LocateModule([]string{archive}, "com.example.Clock", 8)
		assert.ErrorIs(t, err, ErrModuleTooLarge)
	})

	t.Run("missing classpath file is an error", func(t *testing.T) {
		t.Parallel()
		_, _, err := LocateModule([]string{filepath.Join(dir, "gone.jar")}, "com.example.Clock", 0)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrModuleNotFound)
	})
}
