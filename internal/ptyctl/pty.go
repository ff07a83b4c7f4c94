// Package ptyctl implements the PTY session controller (component D): one
// pseudo-terminal per session, running an interactive bash shell with
// generated shell-integration hooks, fed and drained by the server loop.
package ptyctl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// ErrNotRunning is returned by operations that require a live child process.
var ErrNotRunning = errors.New("ptyctl: session not running")

// Controller owns one pseudo-terminal and its child bash process.
type Controller struct {
	master     *os.File
	cmd        *exec.Cmd
	running    bool
	wasRunning bool
	startupDir string
}

// Start creates a pseudo-terminal, writes a generated shell-integration
// startup file to a unique temporary path, and execs an interactive,
// non-login bash on a slave tty with local echo cleared (canonical mode is
// kept, so the client sees its own keystrokes via the grid it builds, not a
// second copy echoed back by the tty itself).
func Start() (*Controller, error) {
	startupDir, rcPath, err := writeStartupFile()
	if err != nil {
		return nil, fmt.Errorf("ptyctl: write startup file: %w", err)
	}

	cmd := exec.Command("/bin/bash", "--noprofile", "--rcfile", rcPath, "-i")
	cmd.Env = append(os.Environ(),
		"LANG=en_US.UTF-8",
		"LC_ALL=en_US.UTF-8",
		"TERM=xterm-256color",
		"PS1=",
		"BASH_SILENCE_DEPRECATION_WARNING=1",
	)

	master, err := pty.Start(cmd)
	if err != nil {
		os.RemoveAll(startupDir)
		return nil, fmt.Errorf("ptyctl: start pty: %w", err)
	}

	if err := unix.SetNonblock(int(master.Fd()), true); err != nil {
		master.Close()
		cmd.Process.Kill()
		os.RemoveAll(startupDir)
		return nil, fmt.Errorf("ptyctl: set nonblocking: %w", err)
	}

	if err := disableEcho(master); err != nil {
		master.Close()
		cmd.Process.Kill()
		os.RemoveAll(startupDir)
		return nil, fmt.Errorf("ptyctl: disable echo: %w", err)
	}

	return &Controller{
		master:     master,
		cmd:        cmd,
		running:    true,
		startupDir: startupDir,
	}, nil
}

// disableEcho clears ECHO on the pty's slave tty (reachable through the
// master fd, since the kernel routes termios ioctls to the slave's line
// discipline) while leaving canonical mode intact, so the shell's own
// keystroke echo never doubles what the client renders from the grid.
func disableEcho(master *os.File) error {
	fd := int(master.Fd())
	termios, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}
	termios.Lflag &^= unix.ECHO
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, termios); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}

// Pid returns the child bash process's pid.
func (c *Controller) Pid() int {
	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Running reports whether the child is believed still alive.
func (c *Controller) Running() bool { return c.running }

// ExecuteCommand writes command text plus a trailing newline to the master
// fd, as if a user had typed and pressed enter.
func (c *Controller) ExecuteCommand(command string) (int, error) {
	return c.SendInput([]byte(command + "\n"))
}

// SendInput writes raw bytes to the master fd, for interactive programs
// consuming keystrokes directly.
func (c *Controller) SendInput(data []byte) (int, error) {
	if !c.running {
		return 0, ErrNotRunning
	}
	n, err := c.master.Write(data)
	if err != nil {
		return n, fmt.Errorf("ptyctl: write: %w", err)
	}
	return n, nil
}

// hasData polls the master fd with a zero timeout to check for pending
// bytes without blocking.
func (c *Controller) hasData() (bool, error) {
	fds := []unix.PollFd{{Fd: int32(c.master.Fd()), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return false, err
	}
	return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
}

// ReadOutput drains all currently available bytes from the master fd,
// reading in 4 KiB chunks until EAGAIN/EWOULDBLOCK, EOF, or a fatal error.
// On EOF the running flag becomes false.
func (c *Controller) ReadOutput() ([]byte, error) {
	if !c.running {
		return nil, ErrNotRunning
	}

	var out []byte
	buf := make([]byte, 4096)
	for {
		available, err := c.hasData()
		if err != nil {
			return out, fmt.Errorf("ptyctl: poll: %w", err)
		}
		if !available {
			return out, nil
		}

		n, err := c.master.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
				return out, nil
			}
			if err == io.EOF {
				c.running = false
				return out, nil
			}
			return out, fmt.Errorf("ptyctl: read: %w", err)
		}
		if n == 0 {
			return out, nil
		}
	}
}

// SetWindowSize issues the TTY window-size ioctl. A failure is reported but
// does not terminate the session.
func (c *Controller) SetWindowSize(cols, rows int) error {
	err := pty.Setsize(c.master, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return fmt.Errorf("ptyctl: setsize: %w", err)
	}
	return nil
}

// Terminate sends SIGTERM, waits briefly, then SIGKILL if still running,
// closes the master fd, and reaps the child.
func (c *Controller) Terminate() {
	if c.cmd != nil && c.cmd.Process != nil {
		c.cmd.Process.Signal(syscall.SIGTERM)
		time.Sleep(100 * time.Millisecond)
		if c.running {
			c.cmd.Process.Kill()
		}
		c.cmd.Wait()
	}
	c.master.Close()
	c.running = false
	os.RemoveAll(c.startupDir)
}

// DidJustFinishRunning is a one-shot edge detector: true exactly on the
// tick when running transitions from true to false.
func (c *Controller) DidJustFinishRunning() bool {
	justFinished := c.wasRunning && !c.running
	c.wasRunning = c.running
	return justFinished
}

// GetCurrentWorkingDirectory is the fallback used when a session's
// lastKnownCwd is empty. On Linux it reads the /proc/<pid>/cwd symlink; on
// macOS it shells out (pgrep, lsof) to locate the child bash's cwd. On any
// failure, and on other platforms, it falls back to $HOME (or / when HOME
// is unset).
func (c *Controller) GetCurrentWorkingDirectory() string {
	pid := c.Pid()
	if pid == 0 {
		return homeFallback()
	}

	if runtime.GOOS == "linux" {
		if link, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", pid)); err == nil {
			return link
		}
		return homeFallback()
	}

	if runtime.GOOS == "darwin" {
		if cwd, ok := macCwd(pid); ok {
			return cwd
		}
	}

	return homeFallback()
}

func macCwd(pid int) (string, bool) {
	pgrep := exec.Command("pgrep", "-P", strconv.Itoa(pid), "bash")
	out, err := pgrep.Output()
	if err != nil {
		return "", false
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return "", false
	}
	bashPid := strings.TrimSpace(lines[0])

	lsof := exec.Command("lsof", "-p", bashPid, "-d", "cwd", "-Fn")
	out, err = lsof.Output()
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "n") {
			return line[1:], true
		}
	}
	return "", false
}

func homeFallback() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	return "/"
}

const startupScript = `export PS1=""
__termihui_precmd() { local ec=$?; printf '\033]133;B;exit=%s;cwd=%s\007' "$ec" "$PWD"; }
__termihui_precmd_wrapper() { local ec=$?; __TERMIHUI_IN_PRECMD=1; __termihui_precmd "$ec"; unset __TERMIHUI_IN_PRECMD; }
__termihui_preexec() { if [[ -n "$__TERMIHUI_IN_PRECMD" ]]; then return; fi; if [[ "$BASH_COMMAND" == "__termihui_precmd_wrapper" || "$BASH_COMMAND" == "__termihui_precmd" ]]; then return; fi; printf '\033]133;A;cwd=%s\007' "$PWD"; }
trap '__termihui_preexec' DEBUG
PROMPT_COMMAND='__termihui_precmd_wrapper'
`

// writeStartupFile writes the generated bash rcfile to a unique temporary
// directory, returning that directory (for later cleanup) and the rcfile path.
func writeStartupFile() (dir, path string, err error) {
	dir, err = os.MkdirTemp("", "termihui-rc-")
	if err != nil {
		return "", "", err
	}
	path = filepath.Join(dir, "rcfile.bash")
	if err := os.WriteFile(path, []byte(startupScript), 0o600); err != nil {
		os.RemoveAll(dir)
		return "", "", err
	}
	return dir, path, nil
}
