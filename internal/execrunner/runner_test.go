package execrunner

import (
	"context"
	"strings"
	"testing"
)

func TestRunRejectsNonAllowlistedExecutable(t *testing.T) {
	r := New(t.TempDir(), []string{"git"})
	res := r.Run(context.Background(), "rm -rf /", nil, 5, "", nil)
	if res.OK || res.Error != "EXECUTABLE_NOT_ALLOWED" {
		t.Fatalf("expected EXECUTABLE_NOT_ALLOWED, got %+v", res)
	}
}

func TestRunAllowlistedEcho(t *testing.T) {
	r := New(t.TempDir(), []string{"echo"})
	res := r.Run(context.Background(), `echo hello`, nil, 5, "", nil)
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Fatalf("unexpected stdout: %q", res.Stdout)
	}
}

func TestRunRejectsCwdEscape(t *testing.T) {
	r := New(t.TempDir(), []string{"echo"})
	res := r.Run(context.Background(), "echo hi", nil, 5, "../../../etc", nil)
	if res.OK || res.Error != "PERMISSION_ERROR" {
		t.Fatalf("expected PERMISSION_ERROR, got %+v", res)
	}
}

func TestRunTimesOut(t *testing.T) {
	r := New(t.TempDir(), []string{"sleep"})
	res := r.Run(context.Background(), "sleep 5", nil, 1, "", nil)
	if res.OK || res.Error != "TIMEOUT" {
		t.Fatalf("expected TIMEOUT, got %+v", res)
	}
}

func TestRunTruncatesOutput(t *testing.T) {
	r := New(t.TempDir(), []string{"echo"})
	r.MaxOutput = 3
	res := r.Run(context.Background(), "echo hello", nil, 5, "", nil)
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if !res.StdoutTruncated {
		t.Fatalf("expected stdout_truncated=true")
	}
	if len(res.Stdout) != 3 {
		t.Fatalf("expected truncated stdout of length 3, got %q", res.Stdout)
	}
}

func TestNormalizeExeStripsExeSuffixAndCase(t *testing.T) {
	if normalizeExe("Python.EXE") != "python" {
		t.Fatalf("expected normalized exe name")
	}
	if normalizeExe("/usr/bin/git") != "git" {
		t.Fatalf("expected basename extraction")
	}
}
