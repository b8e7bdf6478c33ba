package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
)

// DefaultCommand tests a passphrase against a LUKS header without
// activating the volume. The candidate is written to stdin.
var DefaultCommand = []string{"cryptsetup", "open", "--test-passphrase", "--key-file=-", "{resource}"}

// Exec runs an external command per candidate. Exit status 0 is a match,
// the MissCodes statuses are a miss and everything else is an error.
type Exec struct {
	// Command is the argv; "{resource}" is replaced by the resource path.
	Command []string
	// MissCodes defaults to 1 and 2 (cryptsetup's wrong-passphrase codes).
	MissCodes []int
}

func (e *Exec) Verify(ctx context.Context, res *Resource, candidate string) (bool, error) {
	argv := e.Command
	if len(argv) == 0 {
		argv = DefaultCommand
	}
	args := make([]string, len(argv))
	for i, a := range argv {
		args[i] = strings.ReplaceAll(a, "{resource}", res.Path())
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = strings.NewReader(candidate)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		miss := e.MissCodes
		if len(miss) == 0 {
			miss = []int{1, 2}
		}
		if slices.Contains(miss, exitErr.ExitCode()) {
			return false, nil
		}
		return false, fmt.Errorf("verify: %s exited %d: %s", args[0], exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
	}
	return false, fmt.Errorf("verify: run %s: %w", args[0], err)
}
