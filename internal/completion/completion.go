// Package completion implements the completion provider (component J):
// a PATH-scanned command set plus filesystem path completion, queried on
// demand by the protocol mediator.
package completion

import (
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Provider answers command and path completion queries against a cached,
// sorted set of PATH executables and shell builtins.
type Provider struct {
	commands []string
}

// New scans PATH for executables and enumerates shell builtins, building
// the sorted command set used for command-position completion.
func New() *Provider {
	set := make(map[string]struct{})

	for _, cmd := range scanPath() {
		set[cmd] = struct{}{}
	}
	for _, cmd := range loadBuiltins() {
		set[cmd] = struct{}{}
	}

	commands := make([]string, 0, len(set))
	for cmd := range set {
		commands = append(commands, cmd)
	}
	sort.Strings(commands)

	return &Provider{commands: commands}
}

func scanPath() []string {
	var found []string

	pathEnv := os.Getenv("PATH")
	if pathEnv == "" {
		return found
	}

	sep := string(os.PathListSeparator)
	for _, dir := range strings.Split(pathEnv, sep) {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}

			if runtime.GOOS == "windows" {
				ext := strings.ToLower(filepath.Ext(name))
				switch ext {
				case ".exe", ".cmd", ".bat", ".com":
					found = append(found, strings.TrimSuffix(name, filepath.Ext(name)))
				}
				continue
			}

			if info.Mode()&0o111 != 0 {
				found = append(found, name)
			}
		}
	}
	return found
}

func loadBuiltins() []string {
	if out, err := exec.Command("bash", "-c", "compgen -b").Output(); err == nil {
		return splitNonEmptyLines(string(out))
	}
	if out, err := exec.Command("zsh", "-c", "print -l ${(k)builtins}").Output(); err == nil {
		return splitNonEmptyLines(string(out))
	}
	return nil
}

func splitNonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// GetCompletions returns the completions for text at cursorPosition, using
// cwd to resolve relative path completion.
func (p *Provider) GetCompletions(text string, cursorPosition int, cwd string) []string {
	lastWord := extractLastWord(text, cursorPosition)
	if lastWord == "" {
		return nil
	}

	if isCommandPosition(text, cursorPosition) {
		return p.commandCompletions(lastWord)
	}
	return fileCompletions(lastWord, cwd)
}

func extractLastWord(text string, cursorPosition int) string {
	if text == "" || cursorPosition <= 0 {
		return ""
	}
	if cursorPosition > len(text) {
		cursorPosition = len(text)
	}
	start := cursorPosition - 1
	for start >= 0 && text[start] != ' ' && text[start] != '\t' {
		start--
	}
	start++
	return text[start:cursorPosition]
}

func isCommandPosition(text string, cursorPosition int) bool {
	if cursorPosition <= 0 {
		return true
	}
	if cursorPosition > len(text) {
		cursorPosition = len(text)
	}
	for i := 0; i < cursorPosition; i++ {
		if text[i] == ' ' || text[i] == '\t' {
			return false
		}
	}
	return true
}

func (p *Provider) commandCompletions(prefix string) []string {
	var matches []string
	for _, cmd := range p.commands {
		if strings.HasPrefix(cmd, prefix) {
			matches = append(matches, cmd)
		}
	}
	return matches
}

func fileCompletions(prefix, cwd string) []string {
	var matches []string

	searchDir := cwd
	filePrefix := prefix
	dirPrefix := ""

	if slash := strings.LastIndexByte(prefix, '/'); slash >= 0 {
		searchDir = prefix[:slash]
		filePrefix = prefix[slash+1:]
		dirPrefix = searchDir + "/"
		if searchDir == "" {
			searchDir = "/"
			dirPrefix = "/"
		}
	}

	expandedDir := expandTilde(searchDir)
	if !filepath.IsAbs(expandedDir) && cwd != "" {
		expandedDir = filepath.Join(cwd, expandedDir)
	}

	entries, err := os.ReadDir(expandedDir)
	if err != nil {
		return matches
	}

	allowDotfiles := strings.HasPrefix(filePrefix, ".")
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") && !allowDotfiles {
			continue
		}
		if !strings.HasPrefix(name, filePrefix) {
			continue
		}
		if entry.IsDir() {
			name += "/"
		}
		matches = append(matches, dirPrefix+name)
	}
	return matches
}

// expandTilde expands a leading ~ or ~user to the matching home directory,
// via $HOME/$USERPROFILE or the password database; unrecognized forms are
// returned unchanged.
func expandTilde(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	if len(path) == 1 || path[1] == '/' {
		home := os.Getenv("HOME")
		if home == "" {
			home = os.Getenv("USERPROFILE")
		}
		if home == "" {
			if u, err := user.Current(); err == nil {
				home = u.HomeDir
			}
		}
		if home == "" {
			return path
		}
		if len(path) == 1 {
			return home
		}
		return home + path[1:]
	}

	slash := strings.IndexByte(path, '/')
	var username, rest string
	if slash < 0 {
		username = path[1:]
	} else {
		username = path[1:slash]
		rest = path[slash:]
	}

	u, err := user.Lookup(username)
	if err != nil {
		return path
	}
	return u.HomeDir + rest
}
