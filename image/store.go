package image

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// ErrClassNotFound indicates the requested class has no row in the store.
var ErrClassNotFound = errors.New("class not found")

// ErrMethodNotFound indicates the requested (class, selector) pair has no
// row in the store.
var ErrMethodNotFound = errors.New("method not found")

// Store is the SQLite-backed persistence adapter implementing §6's schema:
// classes, methods (cascading on class deletion), and base_environment.
// sql.Open + PRAGMA busy_timeout + CREATE TABLE IF NOT EXISTS +
// sync.Mutex-guarded writes, across a three-table schema.
//
// Writes to methods are serialised through mu rather than relying on
// SQLite's own locking (§4.12), so that an insert-then-lookup within one
// save is observably atomic to concurrent readers — matching §5's
// single-writer, last-write-wins policy.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or attaches to the SQLite database at dbPath and ensures
// the schema exists.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS classes (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS methods (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			class_id  INTEGER NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
			selector  TEXT NOT NULL,
			arguments JSON NOT NULL,
			body      JSON NOT NULL,
			UNIQUE(class_id, selector)
		)`,
		`CREATE TABLE IF NOT EXISTS base_environment (
			key   TEXT NOT NULL UNIQUE,
			value JSON NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Classes returns every class name, sorted.
func (s *Store) Classes() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM classes")
	if err != nil {
		return nil, fmt.Errorf("querying classes: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning class: %w", err)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, rows.Err()
}

// Methods returns the selectors defined on className, sorted. Returns
// ErrClassNotFound if the class has no row.
func (s *Store) Methods(className string) ([]string, error) {
	classID, err := s.classID(className)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query("SELECT selector FROM methods WHERE class_id = ?", classID)
	if err != nil {
		return nil, fmt.Errorf("querying methods: %w", err)
	}
	defer rows.Close()

	var selectors []string
	for rows.Next() {
		var sel string
		if err := rows.Scan(&sel); err != nil {
			return nil, fmt.Errorf("scanning method: %w", err)
		}
		selectors = append(selectors, sel)
	}
	sort.Strings(selectors)
	return selectors, rows.Err()
}

// Method returns the argument names and body stored for (className,
// selector). Returns ErrClassNotFound or ErrMethodNotFound as appropriate.
func (s *Store) Method(className, selector string) (argNames []string, body any, err error) {
	classID, err := s.classID(className)
	if err != nil {
		return nil, nil, err
	}

	var argsJSON, bodyJSON string
	err = s.db.QueryRow(
		"SELECT arguments, body FROM methods WHERE class_id = ? AND selector = ?",
		classID, selector,
	).Scan(&argsJSON, &bodyJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrMethodNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying method: %w", err)
	}

	if err := json.Unmarshal([]byte(argsJSON), &argNames); err != nil {
		return nil, nil, fmt.Errorf("decoding stored argument names: %w", err)
	}
	if err := json.Unmarshal([]byte(bodyJSON), &body); err != nil {
		return nil, nil, fmt.Errorf("decoding stored body: %w", err)
	}
	return argNames, body, nil
}

// SaveMethod validates and persists (className, selector, argNames, body),
// creating className if it does not already exist. Returns created=true
// when this is a new (class, selector) pair, false when it replaced an
// existing one.
//
// Resolves the Open Question on saveMethod id churn: rather than an
// UPDATE, an existing row is deleted and a fresh one inserted in the same
// transaction, so the method's id always changes on every save — matching
// the reference implementation's actual observed behaviour rather than
// preserving row identity across edits.
func (s *Store) SaveMethod(className, selector string, argNames []string, body any) (created bool, err error) {
	if className == "" || selector == "" {
		return false, fmt.Errorf("className and selector must be non-empty")
	}
	if argNames == nil {
		argNames = []string{}
	}

	argsJSON, err := json.Marshal(argNames)
	if err != nil {
		return false, fmt.Errorf("encoding argument names: %w", err)
	}
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return false, fmt.Errorf("encoding body: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("beginning save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT OR IGNORE INTO classes (name) VALUES (?)", className); err != nil {
		return false, fmt.Errorf("ensuring class: %w", err)
	}

	var classID int64
	if err := tx.QueryRow("SELECT id FROM classes WHERE name = ?", className).Scan(&classID); err != nil {
		return false, fmt.Errorf("resolving class id: %w", err)
	}

	res, err := tx.Exec("DELETE FROM methods WHERE class_id = ? AND selector = ?", classID, selector)
	if err != nil {
		return false, fmt.Errorf("clearing existing method: %w", err)
	}
	affected, _ := res.RowsAffected()
	created = affected == 0

	if _, err := tx.Exec(
		"INSERT INTO methods (class_id, selector, arguments, body) VALUES (?, ?, json(?), json(?))",
		classID, selector, string(argsJSON), string(bodyJSON),
	); err != nil {
		return false, fmt.Errorf("inserting method: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing save: %w", err)
	}
	return created, nil
}

// BaseEnvironment returns every stored base_environment row decoded into a
// key->Value JSON blob, suitable for LoadBaseEnvironment or for serving
// GET /base-environment directly.
func (s *Store) BaseEnvironment() (map[string]any, error) {
	rows, err := s.db.Query("SELECT key, value FROM base_environment")
	if err != nil {
		return nil, fmt.Errorf("querying base environment: %w", err)
	}
	defer rows.Close()

	out := map[string]any{}
	for rows.Next() {
		var key, valueJSON string
		if err := rows.Scan(&key, &valueJSON); err != nil {
			return nil, fmt.Errorf("scanning base environment row: %w", err)
		}
		var decoded any
		if err := json.Unmarshal([]byte(valueJSON), &decoded); err != nil {
			return nil, fmt.Errorf("decoding base environment value %q: %w", key, err)
		}
		out[key] = decoded
	}
	return out, rows.Err()
}

// SaveBaseEnvironmentEntry inserts or replaces one base_environment row.
func (s *Store) SaveBaseEnvironmentEntry(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding base environment value: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO base_environment (key, value) VALUES (?, json(?))",
		key, string(data),
	)
	if err != nil {
		return fmt.Errorf("saving base environment entry: %w", err)
	}
	return nil
}

func (s *Store) classID(className string) (int64, error) {
	var id int64
	err := s.db.QueryRow("SELECT id FROM classes WHERE name = ?", className).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrClassNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("resolving class id: %w", err)
	}
	return id, nil
}
