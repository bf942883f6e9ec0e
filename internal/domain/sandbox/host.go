package sandbox

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/felixgeelhaar/plughost/internal/ports"
)

// HostModuleName is the import module guests use for host functions.
const HostModuleName = "plughost"

// HostServices are the host facilities exposed to guest modules.
type HostServices struct {
	Logger ports.Logger
}

// HostFunctions lists the functions exported under HostModuleName.
// Each takes a (ptr, len) pair addressing a UTF-8 message in guest memory.
var HostFunctions = []string{"log_debug", "log_info", "log_warn", "log_error"}

func registerHostModule(ctx context.Context, r wazero.Runtime, services *HostServices) error {
	builder := r.NewHostModuleBuilder(HostModuleName)

	for _, name := range HostFunctions {
		emit := services.emitter(name)
		builder.NewFunctionBuilder().
			WithFunc(func(ctx context.Context, m api.Module, ptr, length uint32) {
				emit(ctx, m.Name(), readString(m, ptr, length))
			}).
			Export(name)
	}

	_, err := builder.Instantiate(ctx)
	return err
}

func (s *HostServices) emitter(name string) func(ctx context.Context, module, msg string) {
	return func(ctx context.Context, module, msg string) {
		if s == nil || s.Logger == nil {
			return
		}
		field := ports.F("module", module)
		switch name {
		case "log_debug":
			s.Logger.Debug(ctx, msg, field)
		case "log_warn":
			s.Logger.Warn(ctx, msg, field)
		case "log_error":
			s.Logger.Error(ctx, msg, field)
		default:
			s.Logger.Info(ctx, msg, field)
		}
	}
}

func readString(m api.Module, ptr, length uint32) string {
	if m == nil {
		return ""
	}
	mem := m.Memory()
	if mem == nil {
		return ""
	}
	data, ok := mem.Read(ptr, length)
	if !ok {
		return ""
	}
	return string(data)
}
