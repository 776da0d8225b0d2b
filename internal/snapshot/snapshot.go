// Package snapshot persists the two tracked collections. Both backends keep
// the same contract: each collection is loaded wholesale on open and
// rewritten wholesale after every mutation.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	"permitline/internal/domain"
)

const workspaceDir = ".permitline"

// Store is the persistence boundary for the tracker's state.
type Store interface {
	LoadPermits() ([]domain.Permit, error)
	SavePermits(permits []domain.Permit) error
	LoadMunicipalities() ([]domain.Municipality, error)
	SaveMunicipalities(munis []domain.Municipality) error
	Close() error
}

// EnsureWorkspace creates the workspace state directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	if workspace == "" {
		workspace = "."
	}
	path := filepath.Join(workspace, workspaceDir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open returns a store for the workspace using the named backend
// ("sqlite" or "json").
func Open(workspace, backend string) (Store, error) {
	dir, err := EnsureWorkspace(workspace)
	if err != nil {
		return nil, err
	}
	switch backend {
	case "", "sqlite":
		return openSQLite(dir)
	case "json":
		return openFiles(dir), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
