// Package sensitive classifies filesystem paths and command-line strings
// against a configurable denylist of secret-bearing filenames (.env and
// friends), with allow entries taking precedence over deny entries.
package sensitive

import (
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/ehrlich-b/boxkite/internal/logger"
)

// Settings is the sensitive_paths section of the settings file.
type Settings struct {
	Deny  []string `yaml:"deny"`
	Allow []string `yaml:"allow"`
}

// Filter holds compiled deny/allow patterns. Build it once; it is
// immutable afterwards and safe for concurrent use.
type Filter struct {
	deny     []glob.Glob
	denyRaw  []string
	allow    []glob.Glob
	allowRaw []string
}

// DefaultFilter returns the built-in filter: deny .env and .env.*,
// allow .env.example.
func DefaultFilter() *Filter {
	return NewFilter([]string{".env", ".env.*"}, []string{".env.example"})
}

// FromSettings builds a filter from user settings layered on top of the
// built-in defaults.
func FromSettings(s Settings) *Filter {
	deny := append([]string{".env", ".env.*"}, s.Deny...)
	allow := append([]string{".env.example"}, s.Allow...)
	return NewFilter(deny, allow)
}

// NewFilter compiles the given pattern lists. `*` matches any run of
// characters including path separators, `?` matches exactly one.
// Patterns that fail to compile are skipped. Absolute allow entries are
// rejected so that configuration cannot exempt an arbitrary on-disk path.
func NewFilter(deny, allow []string) *Filter {
	f := &Filter{}
	for _, p := range deny {
		// Raw deny patterns are kept even when the matcher cannot compile
		// them; filesystem expansion in Resolve still gets a chance.
		f.denyRaw = append(f.denyRaw, p)
		g, err := glob.Compile(p)
		if err != nil {
			logger.Debug("skipping malformed deny pattern", "pattern", p, "error", err)
			continue
		}
		f.deny = append(f.deny, g)
	}
	for _, p := range allow {
		if isAbsolutePattern(p) {
			logger.Warn("ignoring absolute sensitive-path allow entry", "pattern", p)
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			logger.Debug("skipping malformed allow pattern", "pattern", p, "error", err)
			continue
		}
		f.allow = append(f.allow, g)
		f.allowRaw = append(f.allowRaw, p)
	}
	return f
}

// DenyPatterns returns the raw deny patterns in configuration order.
func (f *Filter) DenyPatterns() []string {
	return f.denyRaw
}

// AllowPatterns returns the accepted raw allow patterns in
// configuration order.
func (f *Filter) AllowPatterns() []string {
	return f.allowRaw
}

// IsPathSensitive reports whether the given path names a sensitive file.
func (f *Filter) IsPathSensitive(path string) bool {
	normalized := normalizeCandidate(path)
	return f.matches(normalized, fileName(normalized))
}

// IsCandidateSensitive reports whether an arbitrary string (typically a
// command-line argument) references a sensitive filename. After testing
// the whole string it splits on non-path characters so that names
// embedded in larger tokens (e.g. "cat:.env") are still caught.
func (f *Filter) IsCandidateSensitive(candidate string) bool {
	normalized := normalizeCandidate(candidate)
	if f.matches(normalized, fileName(normalized)) {
		return true
	}

	for _, token := range strings.FieldsFunc(normalized, func(r rune) bool {
		return !isPathTokenChar(r)
	}) {
		if f.matches(token, token) {
			return true
		}
	}

	return false
}

// matches applies allow-over-deny precedence: an allow hit on either the
// full string or the bare file name wins unconditionally.
func (f *Filter) matches(path, name string) bool {
	if f.isAllowed(path, name) {
		return false
	}
	for _, g := range f.deny {
		if g.Match(path) || (name != "" && g.Match(name)) {
			return true
		}
	}
	return false
}

func (f *Filter) isAllowed(path, name string) bool {
	for _, g := range f.allow {
		if g.Match(path) || (name != "" && g.Match(name)) {
			return true
		}
	}
	return false
}

func normalizeCandidate(value string) string {
	return strings.ReplaceAll(value, "\\", "/")
}

// fileName returns the trailing component of an already-normalized path.
func fileName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func isPathTokenChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-' || r == '/':
		return true
	}
	return false
}

// isAbsolutePattern reports whether a raw pattern is rooted: leading
// slash, UNC prefix, drive letter, or an unrooted/rooted ~.
func isAbsolutePattern(candidate string) bool {
	if strings.HasPrefix(candidate, "/") {
		return true
	}
	if strings.HasPrefix(candidate, `\\`) {
		return true
	}
	if len(candidate) >= 2 && candidate[1] == ':' &&
		(candidate[0] >= 'a' && candidate[0] <= 'z' || candidate[0] >= 'A' && candidate[0] <= 'Z') {
		return true
	}
	if rest, ok := strings.CutPrefix(candidate, "~"); ok {
		return rest == "" || strings.HasPrefix(rest, "/")
	}
	return filepath.IsAbs(candidate)
}
