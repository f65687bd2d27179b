package symbols

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/chazu/objcbridge/foreign"
)

// Catalog stores constant descriptions in SQLite so they can be looked up
// without a live runtime.
type Catalog struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenCatalog opens (creating if needed) the catalog at path. ":memory:"
// gives a private in-memory catalog.
func OpenCatalog(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	// one connection, so an in-memory database is shared by every query
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS bundles (
			identifier TEXT PRIMARY KEY,
			position INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS constants (
			bundle TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			PRIMARY KEY (bundle, name)
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating tables: %w", err)
		}
	}
	return &Catalog{db: db, path: path}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Path returns the path the catalog was opened with.
func (c *Catalog) Path() string { return c.path }

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func put(db execer, bundle, name, description string) error {
	_, err := db.Exec(
		`INSERT OR IGNORE INTO bundles (identifier, position)
		 VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM bundles))`,
		bundle,
	)
	if err != nil {
		return fmt.Errorf("saving bundle: %w", err)
	}
	_, err = db.Exec(
		"INSERT OR REPLACE INTO constants (bundle, name, description) VALUES (?, ?, ?)",
		bundle, name, description,
	)
	if err != nil {
		return fmt.Errorf("saving constant: %w", err)
	}
	return nil
}

// Put records one constant. Bundles keep the order in which they were
// first seen.
func (c *Catalog) Put(bundle, name, description string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return put(c.db, bundle, name, description)
}

// Snapshot records every constant of every loaded bundle and returns how
// many were written.
func (c *Catalog) Snapshot(rt foreign.Runtime, src Enumerator) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting snapshot: %w", err)
	}
	n := 0
	for _, b := range src.Bundles() {
		if !b.Loaded {
			continue
		}
		for _, name := range src.ConstantNames(b.Identifier) {
			h, ok := src.Constant(b.Identifier, name)
			if !ok {
				continue
			}
			if err := put(tx, b.Identifier, name, rt.Description(h)); err != nil {
				tx.Rollback()
				return 0, err
			}
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing snapshot: %w", err)
	}
	log.Infof("catalog %s: %d constants", c.path, n)
	return n, nil
}

// Lookup has the same search order as the runtime lookup: the named bundle
// only, or every bundle in catalog order.
func (c *Catalog) Lookup(name, bundle string) (string, error) {
	var row *sql.Row
	if bundle != "" {
		row = c.db.QueryRow(
			"SELECT description FROM constants WHERE bundle = ? AND name = ?",
			bundle, name,
		)
	} else {
		row = c.db.QueryRow(
			`SELECT c.description FROM constants c
			 JOIN bundles b ON b.identifier = c.bundle
			 WHERE c.name = ? ORDER BY b.position LIMIT 1`,
			name,
		)
	}
	var desc string
	if err := row.Scan(&desc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("querying constant: %w", err)
	}
	return desc, nil
}

// Bundles lists catalogued bundle identifiers in order.
func (c *Catalog) Bundles() ([]string, error) {
	rows, err := c.db.Query("SELECT identifier FROM bundles ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("listing bundles: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
