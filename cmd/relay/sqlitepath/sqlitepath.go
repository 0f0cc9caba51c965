// Package sqlitepath resolves where "relay serve" keeps its SQLite turn store.
package sqlitepath

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/papercomputeco/relay/pkg/dotdir"
)

// DefaultName is the database file created in the .relay/ directory.
const DefaultName = "relay.sqlite"

// ResolveSQLitePath returns override when set. Otherwise it returns an
// existing database in the resolved .relay/ directory, or the path a new one
// should be created at.
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return "", fmt.Errorf("resolving sqlite path: %w", err)
	}

	for _, candidate := range sqliteCandidates(dir) {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return filepath.Join(dir, DefaultName), nil
}

func sqliteCandidates(dir string) []string {
	return []string{
		filepath.Join(dir, DefaultName),
		filepath.Join(dir, "relay.db"),
	}
}
