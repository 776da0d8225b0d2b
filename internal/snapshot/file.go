package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"permitline/internal/domain"
)

// fileStore keeps each collection as a JSON array in its own file,
// replaced atomically on every save.
type fileStore struct {
	dir string
}

func openFiles(dir string) *fileStore {
	return &fileStore{dir: dir}
}

func (s *fileStore) permitsPath() string {
	return filepath.Join(s.dir, "permits.json")
}

func (s *fileStore) municipalitiesPath() string {
	return filepath.Join(s.dir, "municipalities.json")
}

func load[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

func save[T any](path string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *fileStore) LoadPermits() ([]domain.Permit, error) {
	return load[domain.Permit](s.permitsPath())
}

func (s *fileStore) SavePermits(permits []domain.Permit) error {
	return save(s.permitsPath(), permits)
}

func (s *fileStore) LoadMunicipalities() ([]domain.Municipality, error) {
	return load[domain.Municipality](s.municipalitiesPath())
}

func (s *fileStore) SaveMunicipalities(munis []domain.Municipality) error {
	return save(s.municipalitiesPath(), munis)
}

func (s *fileStore) Close() error { return nil }
