package dbclient

import (
	"blockdoc/internal/domain"

	_ "modernc.org/sqlite"
)

// newSQLiteConnector creates a connector for an external SQLite file,
// opened read-only so a table query can never modify it.
func newSQLiteConnector(src domain.TableSource) (*sqlConnector, error) {
	dsn := "file:" + src.Host + "?mode=ro&_pragma=busy_timeout(5000)"
	return newSQLConnector("sqlite", dsn)
}
