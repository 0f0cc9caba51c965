// Package dotdir resolves the .relay/ directory holding config.toml and the
// default SQLite turn store.
package dotdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the name of the relay state directory.
	DirName = ".relay"

	// EnvDir names an environment variable that points at a state
	// directory. It loses to an explicit override and wins over ./.relay.
	EnvDir = "RELAY_CONFIG_DIR"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path of the .relay/ directory to use,
// creating it when missing. Precedence:
//  1. overrideDir (--config-dir)
//  2. $RELAY_CONFIG_DIR
//  3. ./.relay, if it exists
//  4. ~/.relay
func (m *Manager) Target(overrideDir string) (string, error) {
	dir, err := m.resolve(overrideDir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating relay directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

func (m *Manager) resolve(overrideDir string) (string, error) {
	if overrideDir != "" {
		return overrideDir, nil
	}
	if env := os.Getenv(EnvDir); env != "" {
		return env, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if isDir(filepath.Join(cwd, DirName)) {
		return filepath.Join(cwd, DirName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// InitLocal creates .relay/ under parent. created is false when it was
// already there.
func (m *Manager) InitLocal(parent string) (dir string, created bool, err error) {
	dir, err = filepath.Abs(filepath.Join(parent, DirName))
	if err != nil {
		return "", false, err
	}

	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return dir, false, nil
	case err == nil:
		return "", false, fmt.Errorf("%s exists and is not a directory", dir)
	case !errors.Is(err, os.ErrNotExist):
		return "", false, fmt.Errorf("checking %s: %w", dir, err)
	}

	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("creating .relay directory: %w", err)
	}
	return dir, true, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
