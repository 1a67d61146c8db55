// Package policy defines the sandbox access-control intent consumed by
// the profile compiler: what a confined process may read, write, and
// reach over the network.
package policy

import (
	"os"
	"path/filepath"
)

// Mode selects one of the closed set of sandbox policies.
type Mode int

const (
	ReadOnly         Mode = iota // Full disk read, no writes, no network
	WorkspaceWrite               // Read everywhere, write under selected roots
	DangerFullAccess             // No confinement at all
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case WorkspaceWrite:
		return "workspace-write"
	case DangerFullAccess:
		return "danger-full-access"
	default:
		return "unknown"
	}
}

// ParseMode converts a string to a Mode. Unknown strings map to the
// most restrictive mode.
func ParseMode(s string) Mode {
	switch s {
	case "read-only":
		return ReadOnly
	case "workspace-write":
		return WorkspaceWrite
	case "danger-full-access":
		return DangerFullAccess
	default:
		return ReadOnly
	}
}

// Policy is the platform-independent sandbox intent. The non-Mode
// fields only apply to WorkspaceWrite.
type Policy struct {
	Mode Mode

	// WritableRoots are extra subtrees the process may write under, in
	// addition to the working directory and temp dirs.
	WritableRoots []string

	// NetworkAccess grants outbound/inbound network in WorkspaceWrite.
	NetworkAccess bool

	// ExcludeTmpdirEnvVar keeps $TMPDIR out of the writable roots.
	ExcludeTmpdirEnvVar bool

	// ExcludeSlashTmp keeps /tmp out of the writable roots.
	ExcludeSlashTmp bool
}

// HasFullDiskWriteAccess reports whether writes are unrestricted.
func (p Policy) HasFullDiskWriteAccess() bool {
	return p.Mode == DangerFullAccess
}

// HasFullDiskReadAccess reports whether reads are unrestricted. Every
// current mode grants full read; write and network are what vary.
func (p Policy) HasFullDiskReadAccess() bool {
	switch p.Mode {
	case ReadOnly, WorkspaceWrite, DangerFullAccess:
		return true
	default:
		return false
	}
}

// HasFullNetworkAccess reports whether the network is unrestricted.
func (p Policy) HasFullNetworkAccess() bool {
	switch p.Mode {
	case DangerFullAccess:
		return true
	case WorkspaceWrite:
		return p.NetworkAccess
	default:
		return false
	}
}

// WritableRoot is one writable subtree together with sub-paths carved
// back out as read-only.
type WritableRoot struct {
	Root             string
	ReadOnlySubpaths []string
}

// WritableRootsWithCwd derives the effective writable roots for a
// compilation rooted at cwd: the configured roots, then cwd, then /tmp
// and $TMPDIR unless excluded. A root containing a top-level .git
// directory gets that directory carved out read-only so a sandboxed
// process cannot rewrite repository history or hooks. The result is
// computed fresh on every call.
func (p Policy) WritableRootsWithCwd(cwd string) []WritableRoot {
	if p.Mode != WorkspaceWrite {
		return nil
	}

	roots := make([]string, 0, len(p.WritableRoots)+3)
	roots = append(roots, p.WritableRoots...)
	roots = append(roots, cwd)
	if !p.ExcludeSlashTmp {
		roots = append(roots, "/tmp")
	}
	if !p.ExcludeTmpdirEnvVar {
		if tmpdir := os.Getenv("TMPDIR"); tmpdir != "" {
			roots = append(roots, tmpdir)
		}
	}

	out := make([]WritableRoot, 0, len(roots))
	for _, root := range roots {
		wr := WritableRoot{Root: root}
		gitDir := filepath.Join(root, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			wr.ReadOnlySubpaths = append(wr.ReadOnlySubpaths, gitDir)
		}
		out = append(out, wr)
	}
	return out
}
