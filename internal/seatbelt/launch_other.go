//go:build !darwin

package seatbelt

import (
	"context"
	"fmt"
	"os/exec"
)

// Launch is only supported on macOS; profile compilation itself is
// portable and stays available for inspection on other platforms.
func Launch(ctx context.Context, prof Profile, cwd string, env []string) (*exec.Cmd, error) {
	return nil, fmt.Errorf("seatbelt sandbox requires macOS (sandbox-exec)")
}
