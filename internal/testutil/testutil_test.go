package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsolate_RestoresEnv(t *testing.T) {
	require.NoError(t, os.Setenv("UNITROUTER_NAME", "orig"))
	require.NoError(t, os.Unsetenv("UNITROUTER_LISTEN"))

	t.Cleanup(func() {
		assert.Equal(t, "orig", os.Getenv("UNITROUTER_NAME"))
		_, ok := os.LookupEnv("UNITROUTER_LISTEN")
		assert.False(t, ok, "UNITROUTER_LISTEN should be unset after cleanup")
		_ = os.Unsetenv("UNITROUTER_NAME")
	})

	Isolate(t)
	_, ok := os.LookupEnv("UNITROUTER_NAME")
	assert.False(t, ok, "isolated test should not see outer variables")

	require.NoError(t, os.Setenv("UNITROUTER_LISTEN", ":9999"))
}

func TestRecordingLogger(t *testing.T) {
	t.Parallel()
	l := NewRecordingLogger()
	l.Info("Unit registered", "unit", "navbar")
	l.Warn("slow", "unit", "cart", "elapsed", 3)
	l.Error("boom")

	require.Len(t, l.Entries(), 3)
	assert.Len(t, l.Level("warn"), 1)

	e, ok := l.Find("registered")
	require.True(t, ok)
	v, ok := e.Arg("unit")
	require.True(t, ok)
	assert.Equal(t, "navbar", v)

	_, ok = e.Arg("missing")
	assert.False(t, ok)

	l.Reset()
	assert.Empty(t, l.Entries())
}
