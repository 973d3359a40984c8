package config

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GoCodeAlone/unitrouter"
	"github.com/GoCodeAlone/unitrouter/feeders"
	"github.com/GoCodeAlone/unitrouter/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifest = `name: edge
initialUrl: https://shop.test/
listen: 127.0.0.1:9000
logLevel: debug
logFormat: console
retryBackoff: 1s
rerouteSchedule: "@every 30s"
timeouts:
  mount:
    millis: 500
    dieOnTimeout: true
    warningMillis: 100
units:
  - name: navbar
    paths: ["/"]
    kind: static
  - name: cart
    paths: ["/cart", "/checkout"]
    kind: slow
    props:
      delay: 50ms
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, unitrouter.DefaultTimeouts(), cfg.Timeouts)
	assert.Equal(t, unitrouter.DefaultRetryBackoff, cfg.RetryBackoff)
}

func TestLoader_YAML(t *testing.T) {
	testutil.Isolate(t)
	path := writeConfig(t, "unitctl.yaml", manifest)

	l, err := NewLoader(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())

	cfg, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "edge", cfg.Name)
	assert.Equal(t, "https://shop.test/", cfg.InitialURL)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.Equal(t, unitrouter.TimeoutPolicy{Millis: 500, DieOnTimeout: true, WarningMillis: 100}, cfg.Timeouts.Mount)
	assert.Equal(t, unitrouter.DefaultTimeouts().Unmount, cfg.Timeouts.Unmount, "unset phases keep defaults")
	require.Len(t, cfg.Units, 2)
	assert.Equal(t, []string{"/cart", "/checkout"}, cfg.Units[1].Paths)
	assert.Equal(t, "50ms", cfg.Units[1].Props["delay"])
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	testutil.Isolate(t)
	path := writeConfig(t, "unitctl.yaml", manifest)
	t.Setenv("UNITROUTER_LISTEN", "0.0.0.0:7000")
	t.Setenv("UNITROUTER_TIMEOUTS_MOUNT_MILLIS", "900")
	t.Setenv("UNITROUTER_RETRY_BACKOFF", "3s")
	t.Setenv("UNITROUTER_TRACING", "true")

	l, err := NewLoader(path)
	require.NoError(t, err)
	cfg, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:7000", cfg.Listen)
	assert.Equal(t, 900, cfg.Timeouts.Mount.Millis)
	assert.True(t, cfg.Timeouts.Mount.DieOnTimeout)
	assert.Equal(t, 3*time.Second, cfg.RetryBackoff)
	assert.True(t, cfg.Tracing)
}

func TestLoader_NoFile(t *testing.T) {
	testutil.Isolate(t)
	t.Setenv("UNITROUTER_NAME", "env-only")

	l, err := NewLoader("")
	require.NoError(t, err)
	cfg, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.Name)
	assert.Empty(t, cfg.Units)
}

func TestLoader_TOMLAndJSON(t *testing.T) {
	t.Parallel()

	toml := writeConfig(t, "unitctl.toml", `name = "t"
initialUrl = "https://t.test/"
listen = "127.0.0.1:1"
logLevel = "warn"
logFormat = "json"

[[units]]
name = "home"
paths = ["/"]
kind = "static"
`)
	cfg, err := NewLoaderWithFeeders(feeders.NewTomlFeeder(toml)).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t", cfg.Name)
	require.Len(t, cfg.Units, 1)

	json := writeConfig(t, "unitctl.json", `{"name":"j","units":[{"name":"home","paths":["/"],"kind":"flaky"}]}`)
	cfg, err = NewLoaderWithFeeders(feeders.NewJSONFeeder(json)).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "j", cfg.Name)
	assert.Equal(t, "flaky", cfg.Units[0].Kind)
}

func TestLoader_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewLoader("unitctl.ini")
	assert.ErrorIs(t, err, feeders.ErrUnsupportedExtension)

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	l, err := NewLoader(missing)
	require.NoError(t, err)
	_, err = l.Load(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewLoaderWithFeeders().Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing name", func(c *Config) { c.Name = "" }},
		{"bad url", func(c *Config) { c.InitialURL = "not a url" }},
		{"bad listen", func(c *Config) { c.Listen = "nowhere" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"negative backoff", func(c *Config) { c.RetryBackoff = -time.Second }},
		{"negative timeout", func(c *Config) { c.Timeouts.Bootstrap.Millis = -1 }},
		{"unit without paths", func(c *Config) {
			c.Units = []UnitSpec{{Name: "x", Kind: "static"}}
		}},
		{"unit with unknown kind", func(c *Config) {
			c.Units = []UnitSpec{{Name: "x", Kind: "magic", Paths: []string{"/"}}}
		}},
		{"duplicate units", func(c *Config) {
			c.Units = []UnitSpec{
				{Name: "x", Kind: "static", Paths: []string{"/"}},
				{Name: "x", Kind: "static", Paths: []string{"/a"}},
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestUnitSpec_ActivityFunc(t *testing.T) {
	t.Parallel()
	spec := UnitSpec{Paths: []string{"/cart", "/checkout"}, Exact: true}
	fn := spec.ActivityFunc()

	for path, want := range map[string]bool{"/cart": true, "/checkout": true, "/cart/items": false, "/": false} {
		loc, err := url.Parse("https://shop.test" + path)
		require.NoError(t, err)
		assert.Equal(t, want, fn(loc), path)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	testutil.Isolate(t)
	path := writeConfig(t, "unitctl.yaml", manifest)
	l, err := NewLoader(path)
	require.NoError(t, err)

	logger := testutil.NewRecordingLogger()
	w := NewWatcher(l, logger)
	w.debounce = 20 * time.Millisecond

	reloaded := make(chan *Config, 4)
	require.NoError(t, w.Start(context.Background(), func(_ context.Context, cfg *Config) {
		reloaded <- cfg
	}))
	require.NoError(t, w.Start(context.Background(), nil), "second start is a no-op")
	t.Cleanup(func() { _ = w.Stop() })

	require.NoError(t, os.WriteFile(path, []byte(manifest+"  - name: extra\n    paths: [\"/extra\"]\n    kind: static\n"), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Len(t, cfg.Units, 3)
	case <-time.After(3 * time.Second):
		t.Fatal("config was not reloaded")
	}

	require.NoError(t, os.WriteFile(path, []byte("name: \"\"\n"), 0o600))
	require.Eventually(t, func() bool {
		_, ok := logger.Find("Config reload failed")
		return ok
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestWatcher_NoFile(t *testing.T) {
	t.Parallel()
	w := NewWatcher(NewLoaderWithFeeders(), testutil.NewRecordingLogger())
	assert.ErrorIs(t, w.Start(context.Background(), nil), ErrNoConfigFile)
}
