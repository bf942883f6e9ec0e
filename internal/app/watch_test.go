package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/plughost/internal/adapters/logging"
	"github.com/felixgeelhaar/plughost/internal/domain/plugin"
	"github.com/felixgeelhaar/plughost/internal/testutil"
)

type checkLog struct {
	mu      sync.Mutex
	results []*plugin.CheckResult
	errs    []error
}

func (c *checkLog) record(result *plugin.CheckResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
	c.errs = append(c.errs, err)
}

func (c *checkLog) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// dropArchive writes the archive outside dir and renames it in, so the
// watcher never sees a partial file.
func dropArchive(t *testing.T, dir, name string, d *testutil.DescriptorBuilder) {
	t.Helper()

	staged := testutil.NewArchive().WithDescriptor("", d).WriteTo(t, t.TempDir(), name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.Rename(staged, filepath.Join(dir, name)))
}

func startWatch(t *testing.T, checker Checker, opts WatchOptions) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatchMode(checker, logging.NewNopLogger(), opts)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watch did not stop")
		}
	})
}

func TestWatchMode_LoadsNewArchives(t *testing.T) {
	dir := t.TempDir()
	m := plugin.NewManager(plugin.WithDirectory(dir), plugin.WithFactories(clockFactories()))
	t.Cleanup(func() { _ = m.Close(context.Background()) })

	var checks checkLog
	startWatch(t, m, WatchOptions{
		Debounce:     20 * time.Millisecond,
		CheckOnStart: true,
		OnCheck:      checks.record,
	})

	testutil.AssertEventually(t, func() bool { return checks.count() >= 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, m.LoadedCount())

	dropArchive(t, dir, "clock.jar", testutil.NewDescriptor("clock", "1.0", "Clock"))
	testutil.AssertEventually(t, func() bool { return m.LoadedCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	dropArchive(t, filepath.Join(dir, "nested"), "clock2.jar", testutil.NewDescriptor("clock2", "1.0", "Clock"))
	testutil.AssertEventually(t, func() bool { return m.LoadedCount() == 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestWatchMode_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	m := plugin.NewManager(plugin.WithDirectory(dir), plugin.WithFactories(clockFactories()))
	t.Cleanup(func() { _ = m.Close(context.Background()) })

	var checks checkLog
	startWatch(t, m, WatchOptions{Debounce: 10 * time.Millisecond, OnCheck: checks.record})

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	testutil.WriteTempFile(t, dir, "notes.txt", []byte("hello"))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, checks.count())

	dropArchive(t, dir, "clock.jar", testutil.NewDescriptor("clock", "1.0", "Clock"))
	testutil.AssertEventually(t, func() bool { return checks.count() == 1 }, 5*time.Second, 10*time.Millisecond)
}

type fakeChecker struct {
	dir   string
	calls atomic.Int32
	err   error
}

func (f *fakeChecker) CheckPlugins(context.Context) (*plugin.CheckResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &plugin.CheckResult{Dir: f.dir}, nil
}

func (f *fakeChecker) Directory() string { return f.dir }
func (f *fakeChecker) Recursive() bool   { return false }

func TestWatchMode_Debounces(t *testing.T) {
	dir := t.TempDir()
	checker := &fakeChecker{dir: dir, err: errors.New("boom")}

	var checks checkLog
	startWatch(t, checker, WatchOptions{Debounce: 100 * time.Millisecond, OnCheck: checks.record})

	time.Sleep(50 * time.Millisecond)
	for i := range 5 {
		testutil.WriteTempFile(t, dir, "a.jar", []byte{byte(i)})
	}

	testutil.AssertEventually(t, func() bool { return checks.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), checker.calls.Load())

	checks.mu.Lock()
	defer checks.mu.Unlock()
	assert.EqualError(t, checks.errs[0], "boom")
}

func TestWatchMode_RequiresDirectory(t *testing.T) {
	t.Parallel()

	w := NewWatchMode(&fakeChecker{}, logging.NewNopLogger(), WatchOptions{})
	assert.Error(t, w.Run(context.Background()))

	w = NewWatchMode(&fakeChecker{dir: filepath.Join(t.TempDir(), "missing")}, logging.NewNopLogger(), WatchOptions{})
	assert.Error(t, w.Run(context.Background()))
}

func TestWatchMode_ConfiguredExtensions(t *testing.T) {
	dir := t.TempDir()
	cfgPath := testutil.WriteTempFile(t, t.TempDir(), "plughost.yaml", []byte("extensions: [\".zip\"]\n"))
	host, err := NewHost(HostOptions{
		ConfigPath: cfgPath,
		Directory:  dir,
		LogOutput:  &bytes.Buffer{},
		Factories:  clockFactories(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = host.Close(context.Background()) })

	var checks checkLog
	startWatch(t, host.Manager(), WatchOptions{
		Debounce:   10 * time.Millisecond,
		FileFilter: host.FileFilter(),
		OnCheck:    checks.record,
	})

	time.Sleep(50 * time.Millisecond)
	dropArchive(t, dir, "clock.zip", testutil.NewDescriptor("clock", "1.0", "Clock"))
	testutil.AssertEventually(t, func() bool { return checks.count() >= 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, host.Manager().LoadedCount())
}
