package ptyctl

import (
	"os"
	"strings"
	"testing"
)

func TestWriteStartupFileContainsMarkerScript(t *testing.T) {
	dir, path, err := writeStartupFile()
	if err != nil {
		t.Fatalf("writeStartupFile: %v", err)
	}
	defer os.RemoveAll(dir)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read rcfile: %v", err)
	}
	script := string(data)

	for _, want := range []string{
		`PROMPT_COMMAND='__termihui_precmd_wrapper'`,
		`trap '__termihui_preexec' DEBUG`,
		`133;A;cwd=`,
		`133;B;exit=`,
		`__TERMIHUI_IN_PRECMD`,
	} {
		if !strings.Contains(script, want) {
			t.Errorf("startup script missing %q", want)
		}
	}
}

func TestDidJustFinishRunningEdgeDetection(t *testing.T) {
	c := &Controller{running: true}

	if c.DidJustFinishRunning() {
		t.Fatal("expected false while still running")
	}
	if c.DidJustFinishRunning() {
		t.Fatal("expected false on repeated check with no transition")
	}

	c.running = false
	if !c.DidJustFinishRunning() {
		t.Fatal("expected true on the transition tick")
	}
	if c.DidJustFinishRunning() {
		t.Fatal("expected false after the edge has been consumed")
	}
}

func TestHomeFallback(t *testing.T) {
	old, had := os.LookupEnv("HOME")
	defer func() {
		if had {
			os.Setenv("HOME", old)
		} else {
			os.Unsetenv("HOME")
		}
	}()

	os.Setenv("HOME", "/home/tester")
	if got := homeFallback(); got != "/home/tester" {
		t.Errorf("homeFallback() = %q, want /home/tester", got)
	}

	os.Unsetenv("HOME")
	if got := homeFallback(); got != "/" {
		t.Errorf("homeFallback() with no HOME = %q, want /", got)
	}
}
