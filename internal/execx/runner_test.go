package execx

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test requires a POSIX shell")
	}
}

func TestRunCapturesStdout(t *testing.T) {
	requireShell(t)

	res, err := (&Runner{}).Run(context.Background(), "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("Stdout = %q, want hello", res.Stdout)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
}

func TestRunReportsExitCode(t *testing.T) {
	requireShell(t)

	res, err := (&Runner{}).Run(context.Background(), "sh", "-c", "echo oops >&2; exit 3")
	if err == nil {
		t.Fatal("Run() should error on a non-zero exit")
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if strings.TrimSpace(res.Stderr) != "oops" {
		t.Errorf("Stderr = %q, want oops", res.Stderr)
	}
}

func TestRunHonorsContext(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := (&Runner{}).Run(ctx, "sh", "-c", "sleep 5")
	if err == nil {
		t.Fatal("Run() should error when the context expires")
	}
}

func TestRunMissingBinary(t *testing.T) {
	_, err := (&Runner{}).Run(context.Background(), "definitely-not-a-real-binary-12345")
	if err == nil {
		t.Fatal("Run() should error for a missing binary")
	}
}
