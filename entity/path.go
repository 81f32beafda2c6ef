// Package entity implements the entity loader (spec.md §4.6): parsing an
// entity-path string, invoking XLLR's load_entity, and managing the
// resulting stub's Created→Loaded→Invocable→Freed lifecycle (§4.8).
package entity

import (
	"fmt"
	"os"
	"strings"
)

// Path is a parsed entity-path: a set of key/value pairs, grounded on
// original_source/utils/entity_path_parser.cpp's comma-separated
// key[=value] grammar, generalized to also accept `${VAR}` and `%VAR%`
// forms regardless of host OS (the original switches on _WIN32 at compile
// time; a single cross-platform binary has no such switch available, so
// this parser recognizes every form unconditionally).
type Path struct {
	items map[string]string
}

// ParsePath parses raw per spec.md §4.6 step 1: a comma-separated list of
// key[=value] pairs. A bare key (no '=') maps to the empty string. Values
// have environment references expanded; an item with more than one '=' is
// rejected as invalid syntax.
func ParsePath(raw string) (*Path, error) {
	items := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		switch len(kv) {
		case 1:
			items[kv[0]] = ""
		case 2:
			if strings.Contains(kv[1], "=") {
				return nil, fmt.Errorf("entity path item %q: too many '='", part)
			}
			items[kv[0]] = expandEnv(kv[1])
		}
	}
	return &Path{items: items}, nil
}

// Get returns the expanded value for key, or "" if key is absent.
func (p *Path) Get(key string) string {
	return p.items[key]
}

// Contains reports whether key was present in the parsed path, regardless
// of whether it carried a value.
func (p *Path) Contains(key string) bool {
	_, ok := p.items[key]
	return ok
}

// expandEnv expands $VAR, ${VAR}, $Env:VAR, and %VAR% references against
// the process environment. Unrecognized or unset variables expand to the
// empty string, matching the original's "if getenv returns null, append
// nothing" behavior.
func expandEnv(s string) string {
	var out strings.Builder
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "${"):
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				out.WriteString(s[i:])
				i = len(s)
				continue
			}
			name := s[i+2 : i+2+end]
			out.WriteString(os.Getenv(name))
			i += 2 + end + 1
		case strings.HasPrefix(s[i:], "$Env:"):
			j := i + len("$Env:")
			end := j
			for end < len(s) && isVarChar(s[end]) {
				end++
			}
			out.WriteString(os.Getenv(s[j:end]))
			i = end
		case s[i] == '$':
			j := i + 1
			end := j
			for end < len(s) && isVarChar(s[end]) {
				end++
			}
			if end == j {
				out.WriteByte('$')
				i++
				continue
			}
			out.WriteString(os.Getenv(s[j:end]))
			i = end
		case s[i] == '%':
			end := strings.IndexByte(s[i+1:], '%')
			if end < 0 {
				out.WriteByte(s[i])
				i++
				continue
			}
			name := s[i+1 : i+1+end]
			out.WriteString(os.Getenv(name))
			i += end + 2
		default:
			out.WriteByte(s[i])
			i++
		}
	}
	return out.String()
}

func isVarChar(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
