package sandbox

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Runtime is a wazero runtime holding the entry modules of one loading
// context. Module names are unique within a runtime.
type Runtime struct {
	runtime wazero.Runtime
	config  Config
	mu      sync.Mutex
	closed  bool
	modules map[string]*Module
}

// NewRuntime creates a runtime with the host module registered.
func NewRuntime(ctx context.Context, config Config, services *HostServices) (*Runtime, error) {
	cfg := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true)

	r := wazero.NewRuntimeWithConfig(ctx, cfg)

	if config.WASI {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
			_ = r.Close(ctx)
			return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
		}
	}

	if err := registerHostModule(ctx, r, services); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	return &Runtime{
		runtime: r,
		config:  config,
		modules: make(map[string]*Module),
	}, nil
}

// Instantiate compiles wasm and instantiates it under name. Start functions
// "_initialize" and "_start" run when the module exports them.
func (r *Runtime) Instantiate(ctx context.Context, name string, wasm []byte) (*Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRuntimeClosed
	}
	if _, exists := r.modules[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrModuleExists, name)
	}
	if r.config.MaxModuleBytes > 0 && int64(len(wasm)) > r.config.MaxModuleBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrModuleTooLarge, len(wasm))
	}

	if r.config.InitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.InitTimeout)
		defer cancel()
	}

	compiled, err := r.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module %s: %w", name, err)
	}
	defer func() { _ = compiled.Close(ctx) }()

	modConfig := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions("_initialize", "_start")

	instance, err := r.runtime.InstantiateModule(ctx, compiled, modConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module %s: %w", name, err)
	}

	m := &Module{name: name, instance: instance, owner: r}
	r.modules[name] = m
	return m, nil
}

// Modules returns the names of the live modules, sorted.
func (r *Runtime) Modules() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Closed reports whether Close has been called.
func (r *Runtime) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close releases the runtime and every module in it. Idempotent.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.modules = map[string]*Module{}
	return r.runtime.Close(ctx)
}

func (r *Runtime) forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modules, name)
}

// Module is an instantiated entry module.
type Module struct {
	name     string
	instance api.Module
	owner    *Runtime
}

// Name returns the module name within its runtime.
func (m *Module) Name() string {
	return m.name
}

// HasExport reports whether the module exports a function called fn.
func (m *Module) HasExport(fn string) bool {
	return m.instance.ExportedFunction(fn) != nil
}

// Call invokes an exported function.
func (m *Module) Call(ctx context.Context, fn string, params ...uint64) ([]uint64, error) {
	f := m.instance.ExportedFunction(fn)
	if f == nil {
		return nil, fmt.Errorf("module %s does not export %q", m.name, fn)
	}
	return f.Call(ctx, params...)
}

// Close releases the module and frees its name in the runtime.
func (m *Module) Close(ctx context.Context) error {
	m.owner.forget(m.name)
	return m.instance.Close(ctx)
}
