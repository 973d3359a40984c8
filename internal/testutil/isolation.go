// Package testutil holds helpers shared by tests across packages.
package testutil

import (
	"os"
	"strings"
	"testing"
)

// EnvPrefix is the prefix of every variable the config loader reads.
const EnvPrefix = "UNITROUTER_"

// Isolate clears every UNITROUTER_ variable for the duration of the test and
// restores the previous values on cleanup. Tests that call it must not run
// in parallel with each other.
func Isolate(t *testing.T) {
	t.Helper()

	snapshot := map[string]string{}
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		snapshot[key] = value
		_ = os.Unsetenv(key)
	}

	t.Cleanup(func() {
		for _, kv := range os.Environ() {
			key, _, ok := strings.Cut(kv, "=")
			if ok && strings.HasPrefix(key, EnvPrefix) {
				_ = os.Unsetenv(key)
			}
		}
		for k, v := range snapshot {
			_ = os.Setenv(k, v)
		}
	})
}
