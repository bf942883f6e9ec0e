package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// AssertFileExists asserts that a file exists at the given path.
func AssertFileExists(t testing.TB, path string, msgAndArgs ...any) {
	t.Helper()

	_, err := os.Stat(path)
	assert.NoError(t, err, msgAndArgs...)
}

// AssertEventually asserts that a condition becomes true within waitFor,
// polling every tick.
func AssertEventually(t testing.TB, condition func() bool, waitFor, tick time.Duration, msgAndArgs ...any) {
	t.Helper()

	assert.Eventually(t, condition, waitFor, tick, msgAndArgs...)
}
