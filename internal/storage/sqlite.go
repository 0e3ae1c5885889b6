package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB is the editor's private SQLite file. Documents never live here;
// it only holds state derived from them, such as undo history.
type DB struct {
	conn *sql.DB
}

// schema is applied in order on every open. Each statement is idempotent.
var schema = []struct {
	name string
	stmt string
}{
	// seq orders nodes even when two snapshots share a timestamp.
	{"history_nodes", `CREATE TABLE IF NOT EXISTS history_nodes (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		document_id TEXT NOT NULL,
		parent_id TEXT,
		label TEXT NOT NULL,
		snapshot_json TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`},
	{"history_nodes document index", `CREATE INDEX IF NOT EXISTS idx_history_nodes_document ON history_nodes(document_id)`},
	{"history_nodes parent index", `CREATE INDEX IF NOT EXISTS idx_history_nodes_parent ON history_nodes(parent_id)`},
	// One row per document: the node the document currently matches.
	{"history_state", `CREATE TABLE IF NOT EXISTS history_state (
		document_id TEXT PRIMARY KEY,
		current_node_id TEXT NOT NULL
	)`},
}

// New opens or creates the database at dbPath, creating its directory.
func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// One writer at a time, or SQLite answers SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	for _, s := range schema {
		if _, err := conn.Exec(s.stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return &DB{conn: conn}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}
