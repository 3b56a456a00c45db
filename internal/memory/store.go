package memory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"verityengine/internal/logging"
)

// Store persists Memory records keyed by IR hash in a local sqlite
// database. Cross-campaign memory is mutated only between campaigns,
// never during traversal, so Store needs no fine-grained locking
// beyond serializing writes to the same underlying *sql.DB.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open creates or opens the memory database at path, creating its parent
// directory and schema if necessary.
func Open(path string) (*Store, error) {
	log := logging.Get(logging.CategoryMemory)

	if path == "" {
		return nil, fmt.Errorf("memory: database path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("memory: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: verify database connection: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: initialize schema: %w", err)
	}
	log.Infow("memory store opened", "path", path)
	return s, nil
}

func (s *Store) initializeSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS campaign_memory (
		ir_hash TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the persisted Memory for irHash, or a fresh empty Memory if
// none exists yet.
func (s *Store) Load(irHash string) (*Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload string
	err := s.db.QueryRow(`SELECT payload FROM campaign_memory WHERE ir_hash = ?`, irHash).Scan(&payload)
	if err == sql.ErrNoRows {
		return New(irHash), nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: load %q: %w", irHash, err)
	}
	return FromJSON([]byte(payload))
}

// Save upserts m, keyed by m.IRHash.
func (s *Store) Save(m *Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := m.ToJSON()
	if err != nil {
		return fmt.Errorf("memory: marshal %q: %w", m.IRHash, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO campaign_memory (ir_hash, payload, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(ir_hash) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP
	`, m.IRHash, string(data))
	if err != nil {
		return fmt.Errorf("memory: save %q: %w", m.IRHash, err)
	}
	return nil
}
