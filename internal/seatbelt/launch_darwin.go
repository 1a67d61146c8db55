//go:build darwin

package seatbelt

import (
	"context"
	"fmt"
	"os/exec"
)

// Launch returns a command that runs the compiled profile's argument
// vector under /usr/bin/sandbox-exec. The caller wires stdio and starts
// it; a launch failure surfaces as the usual exec error from Start/Run.
// The child environment is env plus the sandbox marker variable.
func Launch(ctx context.Context, prof Profile, cwd string, env []string) (*exec.Cmd, error) {
	if len(prof.Args) == 0 {
		return nil, fmt.Errorf("empty profile")
	}

	cmd := exec.CommandContext(ctx, sandboxExecPath, prof.Args...)
	cmd.Dir = cwd
	cmd.Env = append(append([]string{}, env...), SandboxEnvVar+"=seatbelt")
	return cmd, nil
}
