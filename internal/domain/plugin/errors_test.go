package plugin

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluginExistsError(t *testing.T) {
	t.Parallel()

	err := &PluginExistsError{ID: "clock"}
	assert.Equal(t, `plugin "clock" already registered`, err.Error())
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	t.Run("single error", func(t *testing.T) {
		t.Parallel()
		err := &ValidationError{Errors: []string{"id is required"}}
		assert.Equal(t, "id is required", err.Error())
	})

	t.Run("multiple errors", func(t *testing.T) {
		t.Parallel()
		err := &ValidationError{Errors: []string{"id is required", "main is required"}}
		assert.Equal(t, "validation failed: id is required; main is required", err.Error())
	})

	t.Run("addf formatted error", func(t *testing.T) {
		t.Parallel()
		err := &ValidationError{}
		err.Addf("libraries[%d].file is required", 2)
		assert.Equal(t, "libraries[2].file is required", err.Errors[0])
		assert.True(t, err.HasErrors())
	})

	t.Run("has errors empty", func(t *testing.T) {
		t.Parallel()
		err := &ValidationError{}
		assert.False(t, err.HasErrors())
	})
}

func TestDescriptorError(t *testing.T) {
	t.Parallel()

	underlying := errors.New("zip: not a valid zip file")
	err := &DescriptorError{Path: "/plugins/clock.jar", Err: underlying}

	assert.Equal(t, "reading plugin descriptor from /plugins/clock.jar: zip: not a valid zip file", err.Error())
	assert.ErrorIs(t, err, underlying)
	assert.True(t, IsDescriptorError(fmt.Errorf("scan: %w", err)))
	assert.False(t, IsDescriptorError(underlying))
}

func TestEntryNotFoundError(t *testing.T) {
	t.Parallel()

	err := &EntryNotFoundError{MainType: "com.example.Clock", Classpath: []string{"/p/clock.jar", "/p/tz.jar"}}
	assert.Equal(t, `entry type "com.example.Clock" not found in host factories or classpath [/p/clock.jar, /p/tz.jar]`, err.Error())
	assert.True(t, IsEntryNotFound(err))
	assert.False(t, IsEntryNotFound(ErrNotPlugin))
}

func TestFactoryPanicError(t *testing.T) {
	t.Parallel()

	err := &FactoryPanicError{MainType: "Clock", Value: "nil map"}
	assert.Equal(t, `constructing "Clock" panicked: nil map`, err.Error())
}

func TestTransitionError(t *testing.T) {
	t.Parallel()

	err := &TransitionError{From: StatusLoaded, Event: EventFail}
	assert.Equal(t, `illegal plugin status transition FAIL from "loaded"`, err.Error())
	assert.True(t, IsTransitionError(err))
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not plugin", fmt.Errorf("read: %w", ErrNotPlugin), IsNotPlugin, true},
		{"not plugin other", errors.New("other"), IsNotPlugin, false},
		{"exists", &PluginExistsError{ID: "a"}, IsPluginExists, true},
		{"exists other", errors.New("other"), IsPluginExists, false},
		{"validation", &ValidationError{Errors: []string{"x"}}, IsValidationError, true},
		{"validation other", errors.New("other"), IsValidationError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}
