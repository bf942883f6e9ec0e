package plugin

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/plughost/internal/ports"
)

// Filter is a custom acceptance check run after the built-in checks.
// Returning false rejects the candidate with CauseFiltered.
type Filter func(d *Detected) bool

// Resolver decides whether a detected candidate may be loaded.
type Resolver struct {
	// AcceptedType, when set, rejects candidates with any other type tag.
	AcceptedType string
	// Filter, when set, may reject candidates that passed every other check.
	Filter Filter
	// AllowSimilar lets a different version of an already loaded id load
	// alongside it.
	AllowSimilar bool

	logger ports.Logger
}

// NewResolver creates a resolver that logs rejections to logger.
func NewResolver(logger ports.Logger) *Resolver {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Resolver{logger: logger}
}

// Rejection describes why a candidate was not loaded.
type Rejection struct {
	Cause   Cause
	Message string
}

// Check evaluates candidate against all, the cumulative detected set.
// It returns nil when the candidate may be loaded.
func (r *Resolver) Check(candidate *Detected, all []*Detected) *Rejection {
	info := candidate.Info

	if r.AcceptedType != "" && info.Type != r.AcceptedType {
		return &Rejection{
			Cause: CauseWrongType,
			Message: fmt.Sprintf("plugin type %q cannot be loaded, required plugin type is %q",
				info.Type, r.AcceptedType),
		}
	}

	if IsDeprecated(candidate, all) {
		return &Rejection{
			Cause:   CauseDeprecated,
			Message: "plugin is deprecated, a newer version is loaded instead",
		}
	}

	if sameVersionLoaded(candidate, all) {
		return &Rejection{
			Cause:   CauseDuplicate,
			Message: "plugin is a duplicate, it is loaded from another file",
		}
	}

	if !r.AllowSimilar {
		if other := similarLoaded(candidate, all); other != nil {
			return &Rejection{
				Cause:   CauseDuplicate,
				Message: fmt.Sprintf("similar plugin %s is already loaded", other.Info),
			}
		}
	}

	if r.Filter != nil && !r.Filter(candidate) {
		return &Rejection{
			Cause:   CauseFiltered,
			Message: "plugin was not accepted by plugin filter",
		}
	}

	return nil
}

// Resolve runs Check and marks a rejected candidate failed. It reports
// whether the candidate proceeds to loading.
func (r *Resolver) Resolve(ctx context.Context, candidate *Detected, all []*Detected) bool {
	rejection := r.Check(candidate, all)
	if rejection == nil {
		return true
	}

	logger := contextLogger(ctx, r.logger)
	if err := candidate.markFailed(rejection.Cause, rejection.Message, nil); err != nil {
		logger.Error(ctx, "unable to reject plugin", candidateFields(candidate, ports.Err(err))...)
		return false
	}

	fields := candidateFields(candidate, ports.F("cause", string(rejection.Cause)))
	if rejection.Cause == CauseFiltered {
		logger.Info(ctx, rejection.Message, fields...)
	} else {
		logger.Warn(ctx, rejection.Message, fields...)
	}
	return false
}

// IsDeprecated reports whether any other record in all shares the
// candidate's id with a strictly newer version.
func IsDeprecated(candidate *Detected, all []*Detected) bool {
	for _, other := range all {
		if other == candidate || other.Info.ID != candidate.Info.ID {
			continue
		}
		if other.Info.Version.IsNewerThan(candidate.Info.Version) {
			return true
		}
	}
	return false
}

func sameVersionLoaded(candidate *Detected, all []*Detected) bool {
	for _, other := range all {
		if other == candidate || other.Info.ID != candidate.Info.ID {
			continue
		}
		if other.Info.Version.IsSame(candidate.Info.Version) && other.Status() == StatusLoaded {
			return true
		}
	}
	return false
}

func similarLoaded(candidate *Detected, all []*Detected) *Detected {
	for _, other := range all {
		if other == candidate || other.Info.ID != candidate.Info.ID {
			continue
		}
		if !other.Info.Version.IsSame(candidate.Info.Version) && other.Status() == StatusLoaded {
			return other
		}
	}
	return nil
}

func candidateFields(d *Detected, extra ...ports.Field) []ports.Field {
	file := d.Path()
	if file == "" {
		file = "registered"
	}
	fields := []ports.Field{ports.F("plugin", d.String()), ports.F("file", file)}
	return append(fields, extra...)
}
