package plugin

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type testPlugin struct {
	Base
	strategy *Strategy
}

func (p *testPlugin) Strategy() Strategy {
	if p.strategy != nil {
		return *p.strategy
	}
	return p.Base.Strategy()
}

type clockPlugin struct{ Base }

type describedPlugin struct {
	Base
	info *Information
}

func (p *describedPlugin) Describe() *Information {
	return p.info
}

func newRecord(t *testing.T, id, version string) *Detected {
	t.Helper()

	d, err := newDetected(t.TempDir(), id+".jar", &Information{
		Identity: Identity{ID: id, Version: ParseVersion(version)},
		MainType: id,
	}, nil)
	require.NoError(t, err)
	return d
}

func loadedRecord(t *testing.T, id, version string) *Detected {
	t.Helper()

	d := newRecord(t, id, version)
	require.NoError(t, d.beginLoading(nil))
	require.NoError(t, d.markLoaded(&testPlugin{}))
	return d
}

func strategyPlugin(t *testing.T, id string, s Strategy) Plugin {
	t.Helper()

	p := &testPlugin{strategy: &s}
	p.Attach(nil, newRecord(t, id, "1.0"))
	return p
}

func ids(plugins []Plugin) []string {
	out := make([]string, 0, len(plugins))
	for _, p := range plugins {
		out = append(out, pluginID(p))
	}
	return out
}

// recorder captures listener notifications in call order.
type recorder struct {
	mu          sync.Mutex
	events      []string
	detected    [][]*Detected
	initialized [][]Plugin
}

func (r *recorder) PluginsCheckStarted(_ context.Context, dir string, _ bool) {
	r.add("started")
}

func (r *recorder) PluginsCheckEnded(_ context.Context, dir string, _ bool) {
	r.add("ended")
}

func (r *recorder) PluginsDetected(_ context.Context, detected []*Detected) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "detected")
	r.detected = append(r.detected, detected)
}

func (r *recorder) PluginsInitialized(_ context.Context, plugins []Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "initialized")
	r.initialized = append(r.initialized, plugins)
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

var _ Listener = (*recorder)(nil)

// faultyPlugin panics from the method named by panicIn.
type faultyPlugin struct {
	Base
	panicIn string
}

func (p *faultyPlugin) Attach(host *Manager, detected *Detected) {
	if p.panicIn == "Attach" {
		panic("attach failed")
	}
	p.Base.Attach(host, detected)
}

func (p *faultyPlugin) Strategy() Strategy {
	if p.panicIn == "Strategy" {
		panic("strategy failed")
	}
	return p.Base.Strategy()
}

// tagListener is a listener value whose type cannot be compared with ==.
type tagListener struct {
	tags []string
	hits *int
}

func (l tagListener) PluginsCheckStarted(context.Context, string, bool) { *l.hits++ }
func (l tagListener) PluginsCheckEnded(context.Context, string, bool)   {}
func (l tagListener) PluginsDetected(context.Context, []*Detected)      {}
func (l tagListener) PluginsInitialized(context.Context, []Plugin)      {}
