package storage

import (
	"os"
	"path/filepath"
	"runtime"
)

// appName is the on-disk product name used for the writable data root.
const appName = "termihui"

// DataDir returns the writable root for persisted state, honoring
// XDG_DATA_HOME on Linux, Application Support on macOS, and %APPDATA% on
// Windows, per the persisted-state layout in SPEC_FULL.md.
func DataDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "AppData", "Roaming", appName), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", appName), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", appName), nil
	}
}

// ServerStatePath returns the global database path under root.
func ServerStatePath(root string) string {
	return filepath.Join(root, "server_state.sqlite")
}

// SessionStatePath returns the per-session database path under root.
func SessionStatePath(root string, sessionID uint64) string {
	return filepath.Join(root, sessionFileName(sessionID))
}

func sessionFileName(sessionID uint64) string {
	return "session_" + itoa(sessionID) + ".sqlite"
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
