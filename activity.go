package unitrouter

import (
	"net/url"
	"regexp"
	"strings"
)

// PathToActiveWhen builds an activity function from a path pattern.
//
// Segments starting with ':' match any single segment. Matching is case
// insensitive and ignores the query string. Without exact, the pattern
// matches as a prefix on segment boundaries; with exact, the whole path must
// match (a trailing fragment is still allowed).
func PathToActiveWhen(path string, exact bool) ActivityFunc {
	re := pathPattern(path, exact)
	return func(loc *url.URL) bool {
		if loc == nil {
			return false
		}
		return re.MatchString(route(loc))
	}
}

// ActiveWhenPaths is active when any of the prefix patterns match.
func ActiveWhenPaths(paths ...string) ActivityFunc {
	fns := make([]ActivityFunc, 0, len(paths))
	for _, p := range paths {
		fns = append(fns, PathToActiveWhen(p, false))
	}
	return AnyOf(fns...)
}

// AnyOf is active when any of fns is.
func AnyOf(fns ...ActivityFunc) ActivityFunc {
	return func(loc *url.URL) bool {
		for _, fn := range fns {
			if fn(loc) {
				return true
			}
		}
		return false
	}
}

// Always is active for every location.
func Always(*url.URL) bool { return true }

// route is the part of a location that patterns match against: the path plus
// any fragment.
func route(loc *url.URL) string {
	p := loc.EscapedPath()
	if p == "" {
		p = "/"
	}
	if loc.Fragment != "" {
		p += "#" + loc.EscapedFragment()
	}
	return p
}

func pathPattern(path string, exact bool) *regexp.Regexp {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var b strings.Builder
	b.WriteString("(?i)^")
	last, dynamic := 0, false

	flush := func(end int) {
		if dynamic {
			b.WriteString("[^/]+/?")
		} else {
			b.WriteString(regexp.QuoteMeta(path[last:end]))
		}
		if end == len(path) {
			switch {
			case dynamic:
				if exact {
					b.WriteString("$")
				}
			case strings.HasSuffix(path, "/"):
				if !exact {
					b.WriteString(".*")
				}
				b.WriteString("$")
			default:
				if exact {
					b.WriteString("(/)?(#.*)?$")
				} else {
					b.WriteString("(/.*)?(#.*)?$")
				}
			}
		}
		dynamic = !dynamic
		last = end
	}

	for i := 0; i < len(path); i++ {
		c := path[i]
		if (!dynamic && c == ':') || (dynamic && c == '/') {
			flush(i)
		}
	}
	flush(len(path))
	return regexp.MustCompile(b.String())
}
