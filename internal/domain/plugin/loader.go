package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/felixgeelhaar/plughost/internal/domain/sandbox"
	"github.com/felixgeelhaar/plughost/internal/ports"
)

// Factory constructs a plugin instance for an entry type compiled into the
// host.
type Factory func() Plugin

// Factories maps entry type names to host factories.
type Factories map[string]Factory

// LoadRequest is one accepted candidate and its resolved classpath.
type LoadRequest struct {
	Detected  *Detected
	Classpath []string
}

// Loader constructs plugin instances from accepted candidates.
type Loader interface {
	// Load resolves the candidate's entry type and constructs it.
	Load(ctx context.Context, req LoadRequest) (Plugin, error)
	// Close releases every entry context the loader created.
	Close(ctx context.Context) error
}

// ResolvedLibrary is a declared library found on disk.
type ResolvedLibrary struct {
	Library
	Path string
}

// ResolveClasspath returns the absolute archive path followed by every
// declared library present in the archive's directory. Missing libraries
// are returned separately and never fail the resolution.
func ResolveClasspath(d *Detected) (classpath []string, found []ResolvedLibrary, missing []Library, err error) {
	dir, err := filepath.Abs(d.Dir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolving plugin directory %s: %w", d.Dir, err)
	}

	classpath = append(classpath, filepath.Join(dir, d.File))
	for _, lib := range d.Info.Libraries {
		path := filepath.Join(dir, lib.File)
		if _, statErr := os.Stat(path); statErr != nil {
			missing = append(missing, lib)
			continue
		}
		classpath = append(classpath, path)
		found = append(found, ResolvedLibrary{Library: lib, Path: path})
	}
	return classpath, found, missing, nil
}

// EntryContext resolves entry types. Host factories are consulted first,
// then a "<type>.wasm" module on the context's classpath. The sandbox
// runtime is created on first use.
type EntryContext struct {
	factories Factories
	config    sandbox.Config
	services  *sandbox.HostServices

	mu        sync.Mutex
	classpath []string
	runtime   *sandbox.Runtime
}

// NewEntryContext creates a context seeing classpath.
func NewEntryContext(factories Factories, config sandbox.Config, services *sandbox.HostServices, classpath []string) *EntryContext {
	return &EntryContext{
		factories: factories,
		config:    config,
		services:  services,
		classpath: slices.Clone(classpath),
	}
}

// Classpath returns the elements visible to the context.
func (c *EntryContext) Classpath() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.classpath)
}

// Extend appends the elements not already visible.
func (c *EntryContext) Extend(elements ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range elements {
		if !slices.Contains(c.classpath, e) {
			c.classpath = append(c.classpath, e)
		}
	}
}

// Construct creates an instance of mainType. moduleName names the entry
// module inside the sandbox runtime.
func (c *EntryContext) Construct(ctx context.Context, mainType, moduleName string) (Plugin, error) {
	if factory, ok := c.factories[mainType]; ok {
		return construct(mainType, factory)
	}

	classpath := c.Classpath()
	wasm, source, err := sandbox.LocateModule(classpath, mainType, c.config.MaxModuleBytes)
	if errors.Is(err, sandbox.ErrModuleNotFound) {
		return nil, &EntryNotFoundError{MainType: mainType, Classpath: classpath}
	}
	if err != nil {
		return nil, err
	}

	rt, err := c.sandboxRuntime(ctx)
	if err != nil {
		return nil, err
	}
	module, err := rt.Instantiate(ctx, moduleName, wasm)
	if err != nil {
		return nil, err
	}
	return &WASMPlugin{module: module, source: source}, nil
}

// Modules returns the entry modules instantiated in the context.
func (c *EntryContext) Modules() []string {
	c.mu.Lock()
	rt := c.runtime
	c.mu.Unlock()
	if rt == nil {
		return nil
	}
	return rt.Modules()
}

// Close releases the sandbox runtime, if one was created.
func (c *EntryContext) Close(ctx context.Context) error {
	c.mu.Lock()
	rt := c.runtime
	c.runtime = nil
	c.mu.Unlock()
	if rt == nil {
		return nil
	}
	return rt.Close(ctx)
}

func (c *EntryContext) sandboxRuntime(ctx context.Context) (*sandbox.Runtime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runtime != nil {
		return c.runtime, nil
	}
	rt, err := sandbox.NewRuntime(ctx, c.config, c.services)
	if err != nil {
		return nil, err
	}
	c.runtime = rt
	return rt, nil
}

func construct(mainType string, factory Factory) (p Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = &FactoryPanicError{MainType: mainType, Value: r}
		}
	}()

	p = factory()
	if p == nil {
		return nil, fmt.Errorf("factory for %q: %w", mainType, ErrNilPlugin)
	}
	return p, nil
}

// IsolatedLoader gives every plugin its own entry context that sees only
// the plugin's classpath and its own sandbox runtime.
type IsolatedLoader struct {
	factories Factories
	config    sandbox.Config
	services  *sandbox.HostServices

	mu       sync.Mutex
	contexts []*EntryContext
}

// NewIsolatedLoader creates a loader with one context per plugin.
func NewIsolatedLoader(factories Factories, config sandbox.Config, logger ports.Logger) *IsolatedLoader {
	return &IsolatedLoader{
		factories: factories,
		config:    config,
		services:  &sandbox.HostServices{Logger: logger},
	}
}

// Load constructs the candidate in a fresh entry context.
func (l *IsolatedLoader) Load(ctx context.Context, req LoadRequest) (Plugin, error) {
	ec := NewEntryContext(l.factories, l.config, l.services, req.Classpath)

	p, err := ec.Construct(ctx, req.Detected.Info.MainType, req.Detected.Info.String())
	if err != nil {
		_ = ec.Close(ctx)
		return nil, err
	}

	l.mu.Lock()
	l.contexts = append(l.contexts, ec)
	l.mu.Unlock()
	return p, nil
}

// Contexts returns the number of live entry contexts.
func (l *IsolatedLoader) Contexts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.contexts)
}

// Close releases every context.
func (l *IsolatedLoader) Close(ctx context.Context) error {
	l.mu.Lock()
	contexts := l.contexts
	l.contexts = nil
	l.mu.Unlock()

	var errs []error
	for _, ec := range contexts {
		if err := ec.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SharedLoader loads every plugin into one host-wide entry context. Each
// load extends the shared classpath, so a plugin can resolve entry types
// shipped by a plugin loaded before it.
type SharedLoader struct {
	context *EntryContext
}

// NewSharedLoader creates a loader with a single shared context.
func NewSharedLoader(factories Factories, config sandbox.Config, logger ports.Logger) *SharedLoader {
	services := &sandbox.HostServices{Logger: logger}
	return &SharedLoader{context: NewEntryContext(factories, config, services, nil)}
}

// Load extends the shared classpath and constructs the candidate.
func (l *SharedLoader) Load(ctx context.Context, req LoadRequest) (Plugin, error) {
	l.context.Extend(req.Classpath...)
	return l.context.Construct(ctx, req.Detected.Info.MainType, req.Detected.Info.String())
}

// Context returns the shared entry context.
func (l *SharedLoader) Context() *EntryContext {
	return l.context
}

// Close releases the shared context.
func (l *SharedLoader) Close(ctx context.Context) error {
	return l.context.Close(ctx)
}

var (
	_ Loader = (*IsolatedLoader)(nil)
	_ Loader = (*SharedLoader)(nil)
)
