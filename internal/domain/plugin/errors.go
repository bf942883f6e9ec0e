package plugin

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for programmatic error handling.
var (
	// ErrNotPlugin indicates an archive holds no descriptor.
	ErrNotPlugin = errors.New("archive holds no plugin descriptor")
	// ErrNilPlugin indicates a nil plugin was provided.
	ErrNilPlugin = errors.New("plugin cannot be nil")
	// ErrNoInformation indicates a plugin was registered without a descriptor.
	ErrNoInformation = errors.New("plugin information is required")
	// ErrCheckInProgress indicates CheckPlugins was re-entered from a listener.
	ErrCheckInProgress = errors.New("plugin check already in progress")
	// ErrManagerClosed indicates the manager was closed.
	ErrManagerClosed = errors.New("plugin manager closed")
)

// Cause is the machine readable reason a candidate failed.
type Cause string

// Failure causes.
const (
	CauseWrongType  Cause = "wrong type"
	CauseDeprecated Cause = "deprecated"
	CauseDuplicate  Cause = "duplicate"
	CauseFiltered   Cause = "filtered"
	CauseInternal   Cause = "internal exception"
)

// ValidationError collects multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// Add adds an error message to the collection.
func (e *ValidationError) Add(msg string) {
	e.Errors = append(e.Errors, msg)
}

// Addf adds a formatted error message to the collection.
func (e *ValidationError) Addf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are validation errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// DescriptorError reports a failure reading a candidate archive.
type DescriptorError struct {
	Path string
	Err  error
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("reading plugin descriptor from %s: %v", e.Path, e.Err)
}

func (e *DescriptorError) Unwrap() error {
	return e.Err
}

// DescriptorSizeError indicates a descriptor exceeds the size limit.
type DescriptorSizeError struct {
	Size  int64
	Limit int64
}

func (e *DescriptorSizeError) Error() string {
	return fmt.Sprintf("descriptor size %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
}

// PluginExistsError indicates a plugin id is already registered.
type PluginExistsError struct {
	ID string
}

func (e *PluginExistsError) Error() string {
	return fmt.Sprintf("plugin %q already registered", e.ID)
}

// EntryNotFoundError indicates no loading context could provide an entry type.
type EntryNotFoundError struct {
	MainType  string
	Classpath []string
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("entry type %q not found in host factories or classpath [%s]",
		e.MainType, strings.Join(e.Classpath, ", "))
}

// FactoryPanicError wraps a panic raised while constructing a plugin.
type FactoryPanicError struct {
	MainType string
	Value    any
}

func (e *FactoryPanicError) Error() string {
	return fmt.Sprintf("constructing %q panicked: %v", e.MainType, e.Value)
}

// PluginPanicError wraps a panic raised by a loaded plugin's own methods
// while it was being attached and registered.
type PluginPanicError struct {
	Plugin string
	Method string
	Value  any
}

func (e *PluginPanicError) Error() string {
	return fmt.Sprintf("plugin %s panicked in %s: %v", e.Plugin, e.Method, e.Value)
}

// TransitionError indicates an illegal status change.
type TransitionError struct {
	From  Status
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal plugin status transition %s from %q", e.Event, e.From)
}

// IsNotPlugin returns true if the error means the file is not a plugin.
func IsNotPlugin(err error) bool {
	return errors.Is(err, ErrNotPlugin)
}

// IsDescriptorError returns true if the error came from reading a descriptor.
func IsDescriptorError(err error) bool {
	var de *DescriptorError
	return errors.As(err, &de)
}

// IsPluginExists returns true if the error indicates a plugin already exists.
func IsPluginExists(err error) bool {
	var existsErr *PluginExistsError
	return errors.As(err, &existsErr)
}

// IsValidationError returns true if the error is a validation error.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsEntryNotFound returns true if an entry type could not be resolved.
func IsEntryNotFound(err error) bool {
	var nf *EntryNotFoundError
	return errors.As(err, &nf)
}

// IsTransitionError returns true if the error is an illegal status change.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
