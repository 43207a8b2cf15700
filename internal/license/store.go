// Package license resolves the per-item decryption key material. Keys are
// secrets: they are held in memory only for the life of a request and are
// never written to logs or audit records.
package license

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrKeyNotFound indicates no license row exists for the item.
var ErrKeyNotFound = errors.New("license: key not found")

// Resolver looks up the base64 license key for an item.
type Resolver interface {
	Key(ctx context.Context, itemID string) (string, error)
}

// Store reads license keys from Postgres with a small LRU in front. Rows are
// written by the purchase pipeline; this service only reads them.
type Store struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error

	cache *lru.Cache[string, string]
}

// NewPostgres opens the store and verifies connectivity.
func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, string](1024)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, cache: cache}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS licenses (
  item_id TEXT PRIMARY KEY,
  gkey TEXT NOT NULL
);
`)
	})
	return s.schemaErr
}

// Key returns the base64 license key for itemID. A missing row is
// ErrKeyNotFound; anything else is a dependency failure.
func (s *Store) Key(ctx context.Context, itemID string) (string, error) {
	if err := s.ensureSchema(); err != nil {
		return "", fmt.Errorf("license schema: %w", err)
	}
	id := normalizeItemID(itemID)
	if id == "" {
		return "", ErrKeyNotFound
	}
	if s.cache != nil {
		if key, ok := s.cache.Get(id); ok {
			return key, nil
		}
	}

	var key string
	err := s.db.QueryRowContext(ctx, `SELECT gkey FROM licenses WHERE item_id = $1`, id).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: item %s", ErrKeyNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("license lookup: %w", err)
	}
	if s.cache != nil {
		s.cache.Add(id, key)
	}
	return key, nil
}

func normalizeItemID(itemID string) string {
	return strings.TrimSpace(itemID)
}

// MemoryStore is a map-backed Resolver for local runs and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]string)}
}

func (m *MemoryStore) Put(itemID, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[normalizeItemID(itemID)] = key
}

func (m *MemoryStore) Key(_ context.Context, itemID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.keys[normalizeItemID(itemID)]
	if !ok {
		return "", fmt.Errorf("%w: item %s", ErrKeyNotFound, normalizeItemID(itemID))
	}
	return key, nil
}
