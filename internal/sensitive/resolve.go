package sensitive

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ResolvedPath is one on-disk hit for a deny pattern, carried in every
// string form a confined process might use to name it.
type ResolvedPath struct {
	// Absolute is the path exactly as glob expansion produced it.
	Absolute string
	// Canonical is the symlink-resolved form (falls back to Absolute).
	Canonical string
	// Relative is Canonical relative to the resolution working directory,
	// or empty when the canonical path is not under it.
	Relative string
}

// Variants returns the string forms to deny, in fixed order: absolute,
// canonical when it differs, relative, and dot-prefixed relative.
func (r ResolvedPath) Variants() []string {
	variants := []string{r.Absolute}
	if r.Canonical != r.Absolute {
		variants = append(variants, r.Canonical)
	}
	if r.Relative != "" {
		variants = append(variants, r.Relative, "./"+r.Relative)
	}
	return variants
}

// Resolve expands the filter's deny patterns against the filesystem
// under cwd and returns the sensitive hits, deduplicated and sorted.
// Everything is best effort: malformed patterns are skipped and paths
// that cannot be canonicalized are used as-is. The result order is part
// of the output contract because deny parameters are named positionally.
func (f *Filter) Resolve(cwd string) []ResolvedPath {
	if !filepath.IsAbs(cwd) {
		base, err := os.Getwd()
		if err != nil {
			base = "."
		}
		cwd = filepath.Join(base, cwd)
	}
	if canon, err := filepath.EvalSymlinks(cwd); err == nil {
		cwd = canon
	}

	var results []ResolvedPath
	seen := make(map[ResolvedPath]bool)

	for _, pattern := range f.denyRaw {
		absPattern := pattern
		if !filepath.IsAbs(pattern) {
			absPattern = filepath.Join(cwd, pattern)
		}

		matches, err := doublestar.FilepathGlob(absPattern)
		if err != nil {
			// Malformed pattern; the candidate matcher still covers it.
			continue
		}

		for _, hit := range matches {
			canonical := hit
			if c, err := filepath.EvalSymlinks(hit); err == nil {
				canonical = c
			}
			// Glob expansion knows nothing about allow precedence, so
			// re-classify the canonical path and drop exempted hits.
			if !f.IsPathSensitive(canonical) {
				continue
			}

			entry := ResolvedPath{
				Absolute:  hit,
				Canonical: canonical,
				Relative:  relativeTo(canonical, cwd),
			}
			if seen[entry] {
				continue
			}
			seen[entry] = true
			results = append(results, entry)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Absolute != b.Absolute {
			return a.Absolute < b.Absolute
		}
		if a.Canonical != b.Canonical {
			return a.Canonical < b.Canonical
		}
		return a.Relative < b.Relative
	})
	return results
}

// relativeTo strips the dir prefix from path, returning "" when path is
// not under dir.
func relativeTo(path, dir string) string {
	prefix := dir
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if rest, ok := strings.CutPrefix(path, prefix); ok {
		return rest
	}
	return ""
}
