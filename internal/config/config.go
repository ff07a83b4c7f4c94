// Package config resolves the server's runtime configuration from CLI
// flags and the environment variables the rest of the system consumes
// (HOME, PATH, XDG_DATA_HOME, USERPROFILE/APPDATA).
package config

import (
	"fmt"
	"os"

	"github.com/fnc12/termihui-sub000/internal/storage"
)

// Config is the resolved set of values the server loop needs to start.
type Config struct {
	BindAddress string // host:port, ready for http.Server.Addr
	DataRoot    string
}

// Resolve builds a Config from a CLI-provided bind address and port,
// falling back to storage.DataDir for the writable state root.
func Resolve(host string, port int) (Config, error) {
	root, err := storage.DataDir()
	if err != nil {
		return Config{}, fmt.Errorf("config: resolve data root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Config{}, fmt.Errorf("config: create data root %s: %w", root, err)
	}
	return Config{BindAddress: fmt.Sprintf("%s:%d", host, port), DataRoot: root}, nil
}

// Home returns $HOME, or $USERPROFILE when HOME is unset.
func Home() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	return os.Getenv("USERPROFILE")
}
