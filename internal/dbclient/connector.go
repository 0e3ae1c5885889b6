package dbclient

import (
	"context"
	"fmt"

	"blockdoc/internal/domain"
)

// Table is the result of a read-only query, every value rendered as text.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Connector abstracts reading a table from an external database.
type Connector interface {
	// FetchTable runs a read query and returns at most limit rows.
	FetchTable(ctx context.Context, query string, limit int) (*Table, error)

	// Close closes the connection.
	Close() error
}

// NewConnector creates a Connector for the given source.
func NewConnector(src domain.TableSource) (Connector, error) {
	switch src.Driver {
	case domain.DatabaseDriverSQLite:
		return newSQLiteConnector(src)
	case domain.DatabaseDriverMySQL:
		return newSQLConnector("mysql", buildMySQLDSN(src))
	case domain.DatabaseDriverPostgres:
		return newSQLConnector("postgres", buildPostgresDSN(src))
	case domain.DatabaseDriverMongoDB:
		return newMongoConnector(src)
	case domain.DatabaseDriverCSV, domain.DatabaseDriverJSON:
		return &fileConnector{src: src}, nil
	default:
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("Unsupported database driver: %s", src.Driver)}
	}
}

// Fetch opens a connector for q.Source, runs q and closes it again.
func Fetch(ctx context.Context, q domain.TableQuery) (*Table, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = domain.DefaultTableLimit
	}
	conn, err := NewConnector(q.Source)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.FetchTable(ctx, q.Query, limit)
}
