package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"permitline/internal/domain"
)

const defaultDBName = "permitline.db"

// sqliteStore keeps each collection as a single JSON document row. Every
// mutation rewrites the full collection, same as the file backend, so the
// document form fits the access pattern.
type sqliteStore struct {
	db *sql.DB
}

func openSQLite(dir string) (*sqliteStore, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared", filepath.Join(dir, defaultDBName))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots(
		name TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init snapshots table: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) loadDoc(name string, out any) error {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM snapshots WHERE name=?`, name).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("decode %s snapshot: %w", name, err)
	}
	return nil
}

func (s *sqliteStore) saveDoc(name string, in any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.Exec(`INSERT INTO snapshots(name,payload,updated_at) VALUES (?,?,?)
ON CONFLICT(name) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at`,
		name, string(payload), now)
	return err
}

func (s *sqliteStore) LoadPermits() ([]domain.Permit, error) {
	var permits []domain.Permit
	if err := s.loadDoc("permits", &permits); err != nil {
		return nil, err
	}
	return permits, nil
}

func (s *sqliteStore) SavePermits(permits []domain.Permit) error {
	if permits == nil {
		permits = []domain.Permit{}
	}
	return s.saveDoc("permits", permits)
}

func (s *sqliteStore) LoadMunicipalities() ([]domain.Municipality, error) {
	var munis []domain.Municipality
	if err := s.loadDoc("municipalities", &munis); err != nil {
		return nil, err
	}
	return munis, nil
}

func (s *sqliteStore) SaveMunicipalities(munis []domain.Municipality) error {
	if munis == nil {
		munis = []domain.Municipality{}
	}
	return s.saveDoc("municipalities", munis)
}

func (s *sqliteStore) Close() error { return s.db.Close() }
