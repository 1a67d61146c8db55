package seatbelt

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/ehrlich-b/boxkite/internal/policy"
	"github.com/ehrlich-b/boxkite/internal/sensitive"
)

type populatedTmp struct {
	withGit         string
	noGit           string
	withGitCanon    string
	withGitGitCanon string
	noGitCanon      string
}

func populateTmp(t *testing.T, tmp string) populatedTmp {
	t.Helper()
	withGit := filepath.Join(tmp, "with_git")
	noGit := filepath.Join(tmp, "no_git")
	for _, dir := range []string{filepath.Join(withGit, ".git"), noGit} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	withGitCanon, err := filepath.EvalSymlinks(withGit)
	if err != nil {
		t.Fatalf("canonicalize %s: %v", withGit, err)
	}
	noGitCanon, err := filepath.EvalSymlinks(noGit)
	if err != nil {
		t.Fatalf("canonicalize %s: %v", noGit, err)
	}
	return populatedTmp{
		withGit:         withGit,
		noGit:           noGit,
		withGitCanon:    withGitCanon,
		withGitGitCanon: filepath.Join(withGitCanon, ".git"),
		noGitCanon:      noGitCanon,
	}
}

func TestCommandArgsWithReadOnlyGitSubpath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("/tmp does not exist on Windows")
	}

	tmp := t.TempDir()
	p := populateTmp(t, tmp)
	cwd := filepath.Join(tmp, "cwd") // deliberately not created

	pol := policy.Policy{
		Mode:                policy.WorkspaceWrite,
		WritableRoots:       []string{p.withGit, p.noGit},
		ExcludeTmpdirEnvVar: true,
		ExcludeSlashTmp:     true,
	}

	args := CommandArgs([]string{"/bin/echo", "hello"}, pol, cwd, sensitive.DefaultFilter())

	expectedPolicy := basePolicy + "\n" +
		"; allow read-only file operations\n(allow file-read*)\n" +
		"(allow file-write*\n" +
		`(require-all (subpath (param "WRITABLE_ROOT_0")) (require-not (subpath (param "WRITABLE_ROOT_0_RO_0"))) ) (subpath (param "WRITABLE_ROOT_1")) (subpath (param "WRITABLE_ROOT_2"))` + "\n)"

	expected := []string{
		"-p", expectedPolicy,
		"-DWRITABLE_ROOT_0=" + p.withGitCanon,
		"-DWRITABLE_ROOT_0_RO_0=" + p.withGitGitCanon,
		"-DWRITABLE_ROOT_1=" + p.noGitCanon,
		"-DWRITABLE_ROOT_2=" + cwd,
		"--", "/bin/echo", "hello",
	}
	if !slices.Equal(args, expected) {
		t.Errorf("args mismatch\n got: %q\nwant: %q", args, expected)
	}
}

func TestCommandArgsForCwdAsGitRepo(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("/tmp does not exist on Windows")
	}

	tmpdir := t.TempDir()
	t.Setenv("TMPDIR", tmpdir)
	tmpdirCanon, err := filepath.EvalSymlinks(tmpdir)
	if err != nil {
		t.Fatalf("canonicalize TMPDIR: %v", err)
	}
	slashTmpCanon, err := filepath.EvalSymlinks("/tmp")
	if err != nil {
		t.Fatalf("canonicalize /tmp: %v", err)
	}

	tmp := t.TempDir()
	p := populateTmp(t, tmp)

	// No explicit roots: cwd, /tmp, and $TMPDIR become the writable
	// set, and cwd's top-level .git is carved out read-only.
	pol := policy.Policy{Mode: policy.WorkspaceWrite}

	args := CommandArgs([]string{"/bin/echo", "hello"}, pol, p.withGit, sensitive.DefaultFilter())

	expectedPolicy := basePolicy + "\n" +
		"; allow read-only file operations\n(allow file-read*)\n" +
		"(allow file-write*\n" +
		`(require-all (subpath (param "WRITABLE_ROOT_0")) (require-not (subpath (param "WRITABLE_ROOT_0_RO_0"))) ) (subpath (param "WRITABLE_ROOT_1")) (subpath (param "WRITABLE_ROOT_2"))` + "\n)"

	expected := []string{
		"-p", expectedPolicy,
		"-DWRITABLE_ROOT_0=" + p.withGitCanon,
		"-DWRITABLE_ROOT_0_RO_0=" + p.withGitGitCanon,
		"-DWRITABLE_ROOT_1=" + slashTmpCanon,
		"-DWRITABLE_ROOT_2=" + tmpdirCanon,
		"--", "/bin/echo", "hello",
	}
	if !slices.Equal(args, expected) {
		t.Errorf("args mismatch\n got: %q\nwant: %q", args, expected)
	}
}

func TestCommandArgsIncludeSensitiveReadDenies(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("seatbelt profiles are macOS-only; path assumptions do not hold on Windows")
	}

	cwd := t.TempDir()
	if err := os.WriteFile(filepath.Join(cwd, ".env.local"), []byte("secret"), 0o600); err != nil {
		t.Fatalf("create .env.local: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cwd, ".env.example"), []byte("example"), 0o600); err != nil {
		t.Fatalf("create .env.example: %v", err)
	}

	args := CommandArgs([]string{"/bin/echo"}, policy.Policy{Mode: policy.ReadOnly}, cwd, sensitive.DefaultFilter())

	sensitiveCanon, err := filepath.EvalSymlinks(filepath.Join(cwd, ".env.local"))
	if err != nil {
		t.Fatalf("canonicalize .env.local: %v", err)
	}

	expectedPolicy := basePolicy + "\n" +
		"; allow read-only file operations\n(allow file-read*)\n" +
		"(deny file-read*\n" +
		"    (path (param \"SENSITIVE_DENY_0\"))\n" +
		"    (path (param \"SENSITIVE_DENY_1\"))\n" +
		"    (path (param \"SENSITIVE_DENY_2\"))\n)"

	expected := []string{
		"-p", expectedPolicy,
		"-DSENSITIVE_DENY_0=" + sensitiveCanon,
		"-DSENSITIVE_DENY_1=.env.local",
		"-DSENSITIVE_DENY_2=./.env.local",
		"--", "/bin/echo",
	}
	if !slices.Equal(args, expected) {
		t.Errorf("args mismatch\n got: %q\nwant: %q", args, expected)
	}
}

func TestCompileFullAccessSkipsDenies(t *testing.T) {
	cwd := t.TempDir()
	if err := os.WriteFile(filepath.Join(cwd, ".env"), []byte("secret"), 0o600); err != nil {
		t.Fatalf("create .env: %v", err)
	}

	prof := Compile([]string{"/bin/ls"}, policy.Policy{Mode: policy.DangerFullAccess}, cwd, sensitive.DefaultFilter())

	expectedText := basePolicy + "\n" +
		"; allow read-only file operations\n(allow file-read*)\n" +
		`(allow file-write* (regex #"^/"))` + "\n" +
		"(allow network-outbound)\n(allow network-inbound)\n(allow system-socket)"
	if prof.Text != expectedText {
		t.Errorf("profile text mismatch\n got:\n%s\nwant:\n%s", prof.Text, expectedText)
	}
	if len(prof.Params) != 0 {
		t.Errorf("full access should bind no parameters, got %v", prof.Params)
	}
	if strings.Contains(prof.Text, "deny file-read*") {
		t.Error("full-access profile must not contain a read-deny section")
	}
}

func TestCompileNetworkSection(t *testing.T) {
	cwd := t.TempDir()

	withNet := Compile(nil, policy.Policy{Mode: policy.WorkspaceWrite, NetworkAccess: true, ExcludeSlashTmp: true, ExcludeTmpdirEnvVar: true}, cwd, sensitive.DefaultFilter())
	if !strings.HasSuffix(withNet.Text, "(allow network-outbound)\n(allow network-inbound)\n(allow system-socket)") {
		t.Errorf("network profile should end with the fixed allow block, got:\n%s", withNet.Text)
	}

	withoutNet := Compile(nil, policy.Policy{Mode: policy.WorkspaceWrite, ExcludeSlashTmp: true, ExcludeTmpdirEnvVar: true}, cwd, sensitive.DefaultFilter())
	if strings.Contains(withoutNet.Text, "network") {
		t.Errorf("no network section expected, got:\n%s", withoutNet.Text)
	}
}

func TestCompileParamsMatchArgs(t *testing.T) {
	cwd := t.TempDir()
	prof := Compile([]string{"/bin/echo"}, policy.Policy{Mode: policy.WorkspaceWrite, ExcludeSlashTmp: true, ExcludeTmpdirEnvVar: true}, cwd, sensitive.DefaultFilter())

	if len(prof.Args) < 2 || prof.Args[0] != "-p" || prof.Args[1] != prof.Text {
		t.Fatalf("args must start with -p and the profile text, got %q", prof.Args[:2])
	}
	for i, p := range prof.Params {
		want := "-D" + p.Name + "=" + p.Value
		if prof.Args[2+i] != want {
			t.Errorf("args[%d] = %q, want %q", 2+i, prof.Args[2+i], want)
		}
	}
	sep := 2 + len(prof.Params)
	if prof.Args[sep] != "--" {
		t.Errorf("args[%d] = %q, want --", sep, prof.Args[sep])
	}
	if got := prof.Args[sep+1:]; !slices.Equal(got, []string{"/bin/echo"}) {
		t.Errorf("trailing command = %q, want [/bin/echo]", got)
	}
}
