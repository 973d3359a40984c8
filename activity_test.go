package unitrouter

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestPathToActiveWhen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		exact   bool
		matches []string
		misses  []string
	}{
		{
			name:    "prefix",
			pattern: "/app",
			matches: []string{"/app", "/app/", "/app/settings", "/APP", "/app#section", "/app?x=1"},
			misses:  []string{"/application", "/other", "/"},
		},
		{
			name:    "exact",
			pattern: "/app",
			exact:   true,
			matches: []string{"/app", "/app/", "/app#section"},
			misses:  []string{"/app/settings", "/application"},
		},
		{
			name:    "trailing slash prefix",
			pattern: "/app/",
			matches: []string{"/app/", "/app/anything"},
			misses:  []string{"/app"},
		},
		{
			name:    "trailing slash exact",
			pattern: "/app/",
			exact:   true,
			matches: []string{"/app/"},
			misses:  []string{"/app/anything", "/app"},
		},
		{
			name:    "dynamic segment prefix",
			pattern: "/users/:id",
			matches: []string{"/users/42", "/users/42/", "/users/42/edit"},
			misses:  []string{"/users", "/users/", "/accounts/42"},
		},
		{
			name:    "dynamic segment exact",
			pattern: "/users/:id",
			exact:   true,
			matches: []string{"/users/42", "/users/42/"},
			misses:  []string{"/users/42/edit"},
		},
		{
			name:    "dynamic segment in the middle",
			pattern: "/users/:id/settings",
			matches: []string{"/users/42/settings", "/users/abc/settings/privacy"},
			misses:  []string{"/users/42", "/users/42/profile"},
		},
		{
			name:    "missing leading slash",
			pattern: "app",
			matches: []string{"/app/x"},
			misses:  []string{"/xapp"},
		},
		{
			name:    "regexp metacharacters are literal",
			pattern: "/a.b",
			matches: []string{"/a.b"},
			misses:  []string{"/axb"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fn := PathToActiveWhen(tt.pattern, tt.exact)
			for _, p := range tt.matches {
				assert.True(t, fn(mustURL(t, testOrigin+p)), "%s should match %s", tt.pattern, p)
			}
			for _, p := range tt.misses {
				assert.False(t, fn(mustURL(t, testOrigin+p)), "%s should not match %s", tt.pattern, p)
			}
		})
	}
}

func TestPathToActiveWhen_NilLocation(t *testing.T) {
	t.Parallel()
	assert.False(t, PathToActiveWhen("/", false)(nil))
}

func TestActivityCombinators(t *testing.T) {
	t.Parallel()
	loc := mustURL(t, testOrigin+"/cart/items")

	assert.True(t, ActiveWhenPaths("/shop", "/cart")(loc))
	assert.False(t, ActiveWhenPaths("/shop", "/account")(loc))
	assert.False(t, AnyOf()(loc))
	assert.True(t, Always(loc))
	assert.True(t, AnyOf(func(*url.URL) bool { return false }, Always)(loc))
}
