package config

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
	"testing"
)

func TestWriteFatalPrefixesProgram(t *testing.T) {
	var buf bytes.Buffer
	writeFatal(&buf, "widgetmcp", "open workspace: %s", "locked")
	if got := buf.String(); got != "widgetmcp: open workspace: locked\n" {
		t.Fatalf("writeFatal() = %q", got)
	}
}

// os.Exit cannot be intercepted in-process, so the exit code is checked in a
// subprocess.
func TestExitfExitsWithCode1(t *testing.T) {
	if os.Getenv("TEST_EXITF_SUBPROCESS") == "1" {
		Exitf("fatal: %s", "something broke")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitfExitsWithCode1$")
	cmd.Env = append(os.Environ(), "TEST_EXITF_SUBPROCESS=1")

	out, err := cmd.CombinedOutput()

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected *exec.ExitError, got %T: %v", err, err)
	}
	if exitErr.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %d", exitErr.ExitCode())
	}
	if !strings.Contains(string(out), "fatal: something broke") {
		t.Fatalf("expected stderr to contain %q, got %q", "fatal: something broke", string(out))
	}
}
