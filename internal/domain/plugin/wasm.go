package plugin

import (
	"context"

	"github.com/felixgeelhaar/plughost/internal/domain/sandbox"
)

// WASMPlugin is a plugin whose entry type is a WebAssembly module found on
// its classpath.
type WASMPlugin struct {
	Base

	module *sandbox.Module
	source string
}

// Module returns the instantiated entry module.
func (p *WASMPlugin) Module() *sandbox.Module {
	return p.module
}

// Source returns where the module was read from, "archive!entry" for
// modules inside an archive.
func (p *WASMPlugin) Source() string {
	return p.source
}

// Call invokes an exported function of the entry module.
func (p *WASMPlugin) Call(ctx context.Context, fn string, params ...uint64) ([]uint64, error) {
	return p.module.Call(ctx, fn, params...)
}

// Close releases the entry module.
func (p *WASMPlugin) Close(ctx context.Context) error {
	return p.module.Close(ctx)
}
