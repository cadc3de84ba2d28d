package platform

import (
	"context"
	"strings"
	"testing"
)

func TestExecRunner_CapturesOutputAndExitCode(t *testing.T) {
	runner := ExecRunner{}
	ctx := context.Background()

	out, err := runner.Run(ctx, t.TempDir(), "sh", "-c", "echo hello; echo oops >&2")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if out.ExitCode != 0 {
		t.Errorf("Expected exit code 0, got %d", out.ExitCode)
	}
	if !strings.Contains(out.Stdout, "hello") {
		t.Errorf("Expected stdout captured, got %q", out.Stdout)
	}
	if !strings.Contains(out.Stderr, "oops") {
		t.Errorf("Expected stderr captured, got %q", out.Stderr)
	}
}

func TestExecRunner_NonZeroExitIsNotAnError(t *testing.T) {
	runner := ExecRunner{}

	out, err := runner.Run(context.Background(), "", "sh", "-c", "exit 3")
	if err != nil {
		t.Fatalf("Expected exit status in output, got error: %v", err)
	}
	if out.ExitCode != 3 {
		t.Errorf("Expected exit code 3, got %d", out.ExitCode)
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	runner := ExecRunner{}

	out, err := runner.Run(context.Background(), "", "definitely-not-a-binary-xyz")
	if err == nil {
		t.Fatal("Expected error for missing binary")
	}
	if out.ExitCode != -1 {
		t.Errorf("Expected exit code -1, got %d", out.ExitCode)
	}
}
