package store

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// StorageVersion is the schema version the Sourcetrail reader expects,
// recorded in the meta table of every database this package creates.
const StorageVersion = "25"

// Store wraps a single SQLite database file.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if absent) the SQLite database at path with WAL
// journaling, foreign keys, a 30s busy timeout, and immediate write
// transactions.
func Open(path string) (*Store, error) {
	dsn := path + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000&_txlock=immediate"
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps tx-scoped PRAGMAs and the immediate lock
	// model predictable.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// schemaDDL is the full storage-version-25 schema. Column names, types and
// foreign keys are fixed by the reader.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS meta(
	id INTEGER,
	key TEXT,
	value TEXT,
	PRIMARY KEY(id)
);
CREATE TABLE IF NOT EXISTS element(
	id INTEGER,
	PRIMARY KEY(id)
);
CREATE TABLE IF NOT EXISTS element_component(
	id INTEGER,
	element_id INTEGER,
	type INTEGER,
	data TEXT,
	PRIMARY KEY(id),
	FOREIGN KEY(element_id) REFERENCES element(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS edge(
	id INTEGER NOT NULL,
	type INTEGER NOT NULL,
	source_node_id INTEGER NOT NULL,
	target_node_id INTEGER NOT NULL,
	PRIMARY KEY(id),
	FOREIGN KEY(id) REFERENCES element(id) ON DELETE CASCADE,
	FOREIGN KEY(source_node_id) REFERENCES node(id) ON DELETE CASCADE,
	FOREIGN KEY(target_node_id) REFERENCES node(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS node(
	id INTEGER NOT NULL,
	type INTEGER NOT NULL,
	serialized_name TEXT,
	PRIMARY KEY(id),
	FOREIGN KEY(id) REFERENCES element(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS symbol(
	id INTEGER NOT NULL,
	definition_kind INTEGER NOT NULL,
	PRIMARY KEY(id),
	FOREIGN KEY(id) REFERENCES node(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS file(
	id INTEGER NOT NULL,
	path TEXT,
	language TEXT,
	modification_time TEXT,
	indexed INTEGER,
	complete INTEGER,
	line_count INTEGER,
	PRIMARY KEY(id),
	FOREIGN KEY(id) REFERENCES node(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS filecontent(
	id INTEGER,
	content TEXT,
	PRIMARY KEY(id),
	FOREIGN KEY(id) REFERENCES file(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS local_symbol(
	id INTEGER NOT NULL,
	name TEXT,
	PRIMARY KEY(id),
	FOREIGN KEY(id) REFERENCES element(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS source_location(
	id INTEGER NOT NULL,
	file_node_id INTEGER,
	start_line INTEGER,
	start_column INTEGER,
	end_line INTEGER,
	end_column INTEGER,
	type INTEGER,
	PRIMARY KEY(id),
	FOREIGN KEY(file_node_id) REFERENCES node(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS occurrence(
	element_id INTEGER NOT NULL,
	source_location_id INTEGER NOT NULL,
	PRIMARY KEY(element_id, source_location_id),
	FOREIGN KEY(element_id) REFERENCES element(id) ON DELETE CASCADE,
	FOREIGN KEY(source_location_id) REFERENCES source_location(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS component_access(
	node_id INTEGER NOT NULL,
	type INTEGER NOT NULL,
	PRIMARY KEY(node_id),
	FOREIGN KEY(node_id) REFERENCES node(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS error(
	id INTEGER NOT NULL,
	message TEXT,
	fatal INTEGER NOT NULL,
	indexed INTEGER NOT NULL,
	translation_unit TEXT,
	PRIMARY KEY(id),
	FOREIGN KEY(id) REFERENCES element(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS node_serialized_name_index ON node(serialized_name);
CREATE INDEX IF NOT EXISTS file_path_index ON file(path);
CREATE INDEX IF NOT EXISTS edge_triple_index ON edge(type, source_node_id, target_node_id);
`

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// clearOrder lists the data tables in FK-safe deletion order. The meta
// table survives a clear.
var clearOrder = []string{
	"occurrence",
	"source_location",
	"component_access",
	"element_component",
	"error",
	"filecontent",
	"file",
	"symbol",
	"edge",
	"local_symbol",
	"node",
	"element",
}

// Clear deletes all index data while keeping the meta rows, so the database
// stays a valid (empty) project.
func (s *Store) Clear() error {
	return s.WithTx(func(tx *Tx) error {
		for _, table := range clearOrder {
			if _, err := tx.tx.Exec("DELETE FROM " + table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}
		return nil
	})
}

// MaxID returns the highest id in use across the element and
// source_location tables, or 0 for an empty database. Location ids are not
// element rows but share the same id space.
func (s *Store) MaxID() (int64, error) {
	var maxID int64
	err := s.db.Get(&maxID, `
		SELECT MAX(
			COALESCE((SELECT MAX(id) FROM element), 0),
			COALESCE((SELECT MAX(id) FROM source_location), 0)
		)`)
	if err != nil {
		return 0, fmt.Errorf("reading max id: %w", err)
	}
	return maxID, nil
}

// NodeNames returns the serialized_name -> id mapping of every node,
// rehydrating the registry fast path when a database is reopened.
func (s *Store) NodeNames() (map[string]int64, error) {
	rows, err := s.db.Queryx("SELECT id, serialized_name FROM node")
	if err != nil {
		return nil, fmt.Errorf("reading node names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]int64)
	for rows.Next() {
		var n Node
		if err := rows.StructScan(&n); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		names[n.SerializedName] = n.ID
	}
	return names, rows.Err()
}

// MetaValue returns the value stored under key in the meta table, or ""
// when the key is absent.
func (s *Store) MetaValue(key string) (string, error) {
	query, args, err := sq.Select("value").From("meta").Where(sq.Eq{"key": key}).Limit(1).ToSql()
	if err != nil {
		return "", fmt.Errorf("building meta query: %w", err)
	}
	var value string
	if err := s.db.Get(&value, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("reading meta %q: %w", key, err)
	}
	return value, nil
}

// InsertMeta appends a key/value row to the meta table.
func (s *Store) InsertMeta(key, value string) error {
	if _, err := s.db.Exec("INSERT INTO meta(key, value) VALUES(?, ?)", key, value); err != nil {
		return fmt.Errorf("writing meta %q: %w", key, err)
	}
	return nil
}

// Checkpoint flushes the WAL into the main database file so the .srctrldb
// can be handed to the reader as a single file.
func (s *Store) Checkpoint() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpointing: %w", err)
	}
	return nil
}

// WithTx runs fn inside a single write transaction (immediate lock via the
// DSN). fn returning an error rolls everything back.
func (s *Store) WithTx(fn func(*Tx) error) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(&Tx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
