package completion

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

func TestExtractLastWord(t *testing.T) {
	cases := []struct {
		text   string
		cursor int
		want   string
	}{
		{"", 0, ""},
		{"ls -la", 6, "-la"},
		{"cd ~/De", 7, "~/De"},
		{"git", 3, "git"},
		{"echo hi ", 8, ""},
	}
	for _, c := range cases {
		if got := extractLastWord(c.text, c.cursor); got != c.want {
			t.Errorf("extractLastWord(%q, %d) = %q, want %q", c.text, c.cursor, got, c.want)
		}
	}
}

func TestIsCommandPosition(t *testing.T) {
	if !isCommandPosition("git", 3) {
		t.Error("expected command position for single word")
	}
	if isCommandPosition("cd ~/De", 7) {
		t.Error("expected path position once whitespace precedes cursor")
	}
}

func TestCommandCompletionsPrefixMatch(t *testing.T) {
	p := &Provider{commands: []string{"git", "grep", "go", "ls"}}
	got := p.commandCompletions("g")
	sort.Strings(got)
	want := []string{"git", "go", "grep"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("commandCompletions(%q) = %v, want %v", "g", got, want)
	}
}

func TestFileCompletionsTildeExpansionPreservesPrefix(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := os.Mkdir(filepath.Join(home, "Desktop"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(home, "Downloads"), 0o755); err != nil {
		t.Fatal(err)
	}

	// Downloads shares only the "D", not the "De", prefix.
	got := fileCompletions("~/De", "/tmp")
	want := []string{"~/Desktop/"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("fileCompletions(~/De) = %v, want %v", got, want)
	}
}

func TestFileCompletionsSkipsDotfilesUnlessRequested(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".hidden"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "visible.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	got := fileCompletions(dir+"/", dir)
	if len(got) != 1 || got[0] != dir+"/visible.txt" {
		t.Errorf("fileCompletions without dot prefix = %v", got)
	}

	got = fileCompletions(dir+"/.", dir)
	if len(got) != 1 || got[0] != dir+"/.hidden" {
		t.Errorf("fileCompletions with dot prefix = %v", got)
	}
}

func TestGetCompletionsEmptyWordReturnsNil(t *testing.T) {
	p := New()
	if got := p.GetCompletions("", 0, "/tmp"); got != nil {
		t.Errorf("expected nil completions for empty text, got %v", got)
	}
}
