package platform

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// ExecRunner is a ProcessRunner backed by real subprocess execution.
type ExecRunner struct{}

// Run implements ProcessRunner.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (*RunOutput, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := &RunOutput{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	if err != nil {
		out.ExitCode = -1
		return out, err
	}
	return out, nil
}
