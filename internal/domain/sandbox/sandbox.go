// Package sandbox hosts WebAssembly plugin entry modules in wazero runtimes.
// A Runtime is the loading context a plugin's entry module lives in: one
// runtime per plugin gives isolation, one runtime shared by every plugin
// mirrors loading into the host's own context.
package sandbox

import (
	"errors"
	"time"
)

// Sandbox errors.
var (
	ErrModuleNotFound = errors.New("module not found")
	ErrModuleTooLarge = errors.New("module exceeds size limit")
	ErrModuleExists   = errors.New("module already instantiated")
	ErrRuntimeClosed  = errors.New("sandbox runtime closed")
)

// ModuleExtension is the file extension of entry modules.
const ModuleExtension = ".wasm"

// Config holds runtime configuration.
type Config struct {
	// MaxModuleBytes caps the size of a module read from a classpath.
	MaxModuleBytes int64

	// InitTimeout bounds module instantiation, including start functions.
	// Zero means no timeout.
	InitTimeout time.Duration

	// WASI instantiates wasi_snapshot_preview1 so modules built with a
	// WASI toolchain can start.
	WASI bool
}

// DefaultConfig returns the configuration used by the plugin manager.
func DefaultConfig() Config {
	return Config{
		MaxModuleBytes: 64 * 1024 * 1024,
		InitTimeout:    30 * time.Second,
		WASI:           true,
	}
}
