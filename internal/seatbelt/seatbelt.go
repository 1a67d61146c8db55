// Package seatbelt compiles sandbox policies into macOS sandbox-exec
// profiles and builds the argument vector used to launch a confined
// command. Every externally-influenced path crosses into the profile as
// a -D parameter binding, never as interpolated profile text, so a
// crafted filename cannot inject policy language.
package seatbelt

import (
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ehrlich-b/boxkite/internal/policy"
	"github.com/ehrlich-b/boxkite/internal/sensitive"
)

//go:embed base_policy.sbpl
var basePolicy string

// Only /usr/bin/sandbox-exec is trusted. Resolving it from PATH would
// let an attacker inject their own binary; anyone able to replace the
// copy in /usr/bin already has root.
const sandboxExecPath = "/usr/bin/sandbox-exec"

// SandboxEnvVar is set in the child environment so descendants can tell
// which sandbox backend confines them.
const SandboxEnvVar = "BOXKITE_SANDBOX"

// Param is one named value passed to sandbox-exec via -Dname=value.
type Param struct {
	Name  string
	Value string
}

// Profile is the result of one compilation: the profile text, the
// parameter bindings in generation order, and the final sandbox-exec
// argument vector. It is never mutated after construction.
type Profile struct {
	Text   string
	Params []Param
	Args   []string
}

// CommandArgs compiles and returns just the sandbox-exec argument
// vector: -p <profile> (-DNAME=value)* -- <command...>.
func CommandArgs(command []string, pol policy.Policy, cwd string, filter *sensitive.Filter) []string {
	return Compile(command, pol, cwd, filter).Args
}

// Compile turns a sandbox policy plus sensitive-path filter into a
// Seatbelt profile for running command under cwd. It is total: path
// canonicalization falls back to the input form and malformed glob
// patterns are skipped, so compilation never fails.
func Compile(command []string, pol policy.Policy, cwd string, filter *sensitive.Filter) Profile {
	var params []Param

	// Write section. Parameter names are positional, so root order is
	// the policy's encounter order.
	var writeSection string
	haveWrite := false
	if pol.HasFullDiskWriteAccess() {
		writeSection = `(allow file-write* (regex #"^/"))`
		haveWrite = true
	} else if roots := pol.WritableRootsWithCwd(cwd); len(roots) > 0 {
		var clauses []string
		for i, wr := range roots {
			rootParam := fmt.Sprintf("WRITABLE_ROOT_%d", i)
			params = append(params, Param{Name: rootParam, Value: canonicalize(wr.Root)})

			if len(wr.ReadOnlySubpaths) == 0 {
				clauses = append(clauses, fmt.Sprintf("(subpath (param %q))", rootParam))
				continue
			}
			parts := []string{fmt.Sprintf("(subpath (param %q))", rootParam)}
			for j, ro := range wr.ReadOnlySubpaths {
				roParam := fmt.Sprintf("WRITABLE_ROOT_%d_RO_%d", i, j)
				params = append(params, Param{Name: roParam, Value: canonicalize(ro)})
				parts = append(parts, fmt.Sprintf("(require-not (subpath (param %q)))", roParam))
			}
			clauses = append(clauses, fmt.Sprintf("(require-all %s )", strings.Join(parts, " ")))
		}
		writeSection = fmt.Sprintf("(allow file-write*\n%s\n)", strings.Join(clauses, " "))
		haveWrite = true
	}

	// Read-allow section. Without it, reads stay whatever the base
	// policy grants.
	readAllowSection := ""
	if pol.HasFullDiskReadAccess() {
		readAllowSection = "; allow read-only file operations\n(allow file-read*)"
	}

	// Read-deny section. A full-access policy has nothing to protect,
	// so sensitive-path resolution is suppressed entirely.
	var denyStrings []string
	if pol.Mode != policy.DangerFullAccess {
		seen := make(map[string]bool)
		for _, entry := range filter.Resolve(cwd) {
			for _, variant := range entry.Variants() {
				if variant == "" || seen[variant] {
					continue
				}
				seen[variant] = true
				denyStrings = append(denyStrings, variant)
			}
		}
	}
	denySection := ""
	if len(denyStrings) > 0 {
		lines := make([]string, 0, len(denyStrings))
		for k, value := range denyStrings {
			name := fmt.Sprintf("SENSITIVE_DENY_%d", k)
			params = append(params, Param{Name: name, Value: value})
			lines = append(lines, fmt.Sprintf("    (path (param %q))", name))
		}
		denySection = fmt.Sprintf("(deny file-read*\n%s\n)", strings.Join(lines, "\n"))
	}

	networkSection := ""
	if pol.HasFullNetworkAccess() {
		networkSection = "(allow network-outbound)\n(allow network-inbound)\n(allow system-socket)"
	}

	// Section order is a contract of the profile language: later
	// sections must override what earlier ones grant.
	sections := []string{basePolicy}
	if readAllowSection != "" {
		sections = append(sections, readAllowSection)
	}
	if haveWrite {
		sections = append(sections, writeSection)
	}
	if denySection != "" {
		sections = append(sections, denySection)
	}
	if networkSection != "" {
		sections = append(sections, networkSection)
	}
	text := strings.Join(sections, "\n")

	args := make([]string, 0, len(params)+len(command)+3)
	args = append(args, "-p", text)
	for _, p := range params {
		args = append(args, fmt.Sprintf("-D%s=%s", p.Name, p.Value))
	}
	args = append(args, "--")
	args = append(args, command...)

	return Profile{Text: text, Params: params, Args: args}
}

// canonicalize resolves symlinks best effort; a path that cannot be
// resolved (missing, permission denied) is used as-is.
func canonicalize(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}
