package plugin

import "context"

// Listener receives plugin lifecycle notifications. Calls are made
// synchronously on the goroutine running the check, while the manager's
// scan lock is held. The ctx passed to each call carries a marker that
// makes CheckPlugins return ErrCheckInProgress instead of deadlocking.
type Listener interface {
	PluginsCheckStarted(ctx context.Context, dir string, recursive bool)
	PluginsCheckEnded(ctx context.Context, dir string, recursive bool)
	// PluginsDetected receives the candidates found by one check.
	PluginsDetected(ctx context.Context, detected []*Detected)
	// PluginsInitialized receives newly loaded plugins in final order.
	PluginsInitialized(ctx context.Context, plugins []Plugin)
}

// NopListener implements Listener with empty methods. Embed it to handle
// only some notifications.
type NopListener struct{}

// PluginsCheckStarted does nothing.
func (NopListener) PluginsCheckStarted(context.Context, string, bool) {}

// PluginsCheckEnded does nothing.
func (NopListener) PluginsCheckEnded(context.Context, string, bool) {}

// PluginsDetected does nothing.
func (NopListener) PluginsDetected(context.Context, []*Detected) {}

// PluginsInitialized does nothing.
func (NopListener) PluginsInitialized(context.Context, []Plugin) {}

// ListenerFuncs adapts functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	CheckStarted func(ctx context.Context, dir string, recursive bool)
	CheckEnded   func(ctx context.Context, dir string, recursive bool)
	Detected     func(ctx context.Context, detected []*Detected)
	Initialized  func(ctx context.Context, plugins []Plugin)
}

// PluginsCheckStarted calls CheckStarted.
func (f *ListenerFuncs) PluginsCheckStarted(ctx context.Context, dir string, recursive bool) {
	if f.CheckStarted != nil {
		f.CheckStarted(ctx, dir, recursive)
	}
}

// PluginsCheckEnded calls CheckEnded.
func (f *ListenerFuncs) PluginsCheckEnded(ctx context.Context, dir string, recursive bool) {
	if f.CheckEnded != nil {
		f.CheckEnded(ctx, dir, recursive)
	}
}

// PluginsDetected calls Detected.
func (f *ListenerFuncs) PluginsDetected(ctx context.Context, detected []*Detected) {
	if f.Detected != nil {
		f.Detected(ctx, detected)
	}
}

// PluginsInitialized calls Initialized.
func (f *ListenerFuncs) PluginsInitialized(ctx context.Context, plugins []Plugin) {
	if f.Initialized != nil {
		f.Initialized(ctx, plugins)
	}
}

var (
	_ Listener = NopListener{}
	_ Listener = (*ListenerFuncs)(nil)
)
