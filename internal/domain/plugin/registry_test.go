package plugin

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	assert.ErrorIs(t, r.Add(nil), ErrNilPlugin)

	clock := &clockPlugin{}
	clock.Attach(nil, newRecord(t, "clock", "1.0"))
	other := strategyPlugin(t, "notes", AfterAll())
	first := strategyPlugin(t, "first", BeforeAll())

	require.NoError(t, r.Add(other))
	require.NoError(t, r.Add(clock))
	require.NoError(t, r.Add(first))

	assert.Equal(t, 3, r.Count())
	assert.True(t, r.Contains("clock"))
	assert.False(t, r.Contains("missing"))

	got, ok := r.Get("clock")
	require.True(t, ok)
	assert.Same(t, clock, got)

	byType, ok := r.ByType(reflect.TypeOf(clock))
	require.True(t, ok)
	assert.Same(t, clock, byType)

	list := r.List()
	list[0] = nil
	assert.NotNil(t, r.List()[0], "List must return a copy")

	assert.Equal(t, []string{"first", "clock", "notes"}, ids(r.Reorder()))
	assert.Equal(t, []string{"first", "clock", "notes"}, ids(r.List()))
}

func TestRegistry_LastRegistrationWinsIndex(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	v1 := strategyPlugin(t, "clock", Any())
	v2 := strategyPlugin(t, "clock", Any())
	require.NoError(t, r.Add(v1))
	require.NoError(t, r.Add(v2))

	got, ok := r.Get("clock")
	require.True(t, ok)
	assert.Same(t, v2, got)
	assert.Equal(t, 2, r.Count())
}
