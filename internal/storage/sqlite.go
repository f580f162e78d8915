// Package storage provides the namespaced key-value store backing all
// persisted pipeline state, implemented over SQLite.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Driver sqlite
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("key not found")

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Get returns the raw value stored under (namespace, key).
func (r *Repository) Get(namespace, key string) ([]byte, error) {
	row := r.db.QueryRow(
		`SELECT value FROM kv WHERE namespace = ? AND key = ?`,
		namespace, key,
	)

	var value []byte
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return value, nil
}

// Put stores value under (namespace, key), replacing any previous value.
func (r *Repository) Put(namespace, key string, value []byte) error {
	_, err := r.db.Exec(`
		INSERT INTO kv (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, namespace, key, value, time.Now())

	return err
}

// Delete removes the value stored under (namespace, key). Deleting an absent
// key is not an error.
func (r *Repository) Delete(namespace, key string) error {
	_, err := r.db.Exec(`DELETE FROM kv WHERE namespace = ? AND key = ?`, namespace, key)
	return err
}

// Keys returns all keys in the namespace starting with prefix, sorted.
func (r *Repository) Keys(namespace, prefix string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT key FROM kv
		WHERE namespace = ? AND key LIKE ? ESCAPE '\'
		ORDER BY key
	`, namespace, escapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			continue
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return keys, nil
}

// escapeLike escapes LIKE metacharacters so prefixes match literally.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// Bucket scopes repository access to a single namespace. It is the persisted
// storage handed to each pipeline unit so units cannot step on each other's
// keys.
type Bucket struct {
	repo      *Repository
	namespace string
}

// Bucket returns a store scoped to the given namespace.
func (r *Repository) Bucket(namespace string) *Bucket {
	return &Bucket{repo: r, namespace: namespace}
}

// Name returns the bucket namespace.
func (b *Bucket) Name() string {
	return b.namespace
}

// Get returns the raw value for key, or ErrNotFound.
func (b *Bucket) Get(key string) ([]byte, error) {
	return b.repo.Get(b.namespace, key)
}

// Put stores the raw value for key.
func (b *Bucket) Put(key string, value []byte) error {
	return b.repo.Put(b.namespace, key, value)
}

// Delete removes key from the bucket.
func (b *Bucket) Delete(key string) error {
	return b.repo.Delete(b.namespace, key)
}

// Keys lists bucket keys with the given prefix.
func (b *Bucket) Keys(prefix string) ([]string, error) {
	return b.repo.Keys(b.namespace, prefix)
}

// GetJSON unmarshals the value stored under key into out.
func (b *Bucket) GetJSON(key string, out any) error {
	raw, err := b.Get(key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s/%s: %w", b.namespace, key, err)
	}

	return nil
}

// PutJSON marshals v and stores it under key.
func (b *Bucket) PutJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", b.namespace, key, err)
	}

	return b.Put(key, raw)
}
