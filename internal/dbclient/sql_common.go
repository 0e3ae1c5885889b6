package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"blockdoc/internal/domain"
)

const queryTimeout = 30 * time.Second

// readPrefixes are the statement kinds allowed to fill a table.
var readPrefixes = []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "EXPLAIN", "PRAGMA"}

// sqlConnector serves every database/sql driver. The dialect only
// changes the DSN.
type sqlConnector struct {
	driverName string
	db         *sql.DB
}

func newSQLConnector(driverName, dsn string) (*sqlConnector, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s source: %w", driverName, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Minute)
	return &sqlConnector{driverName: driverName, db: db}, nil
}

func isReadQuery(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	return slices.ContainsFunc(readPrefixes, func(p string) bool {
		return strings.HasPrefix(q, p)
	})
}

// FetchTable stops reading after limit rows; the rest of the result set
// is discarded when rows is closed.
func (c *sqlConnector) FetchTable(ctx context.Context, query string, limit int) (*Table, error) {
	if !isReadQuery(query) {
		return nil, &domain.ValidationError{Reason: "Only read queries can fill a table"}
	}
	if limit <= 0 {
		limit = domain.DefaultTableLimit
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s query: %w", c.driverName, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%s columns: %w", c.driverName, err)
	}

	table := &Table{Columns: cols, Rows: [][]string{}}
	for len(table.Rows) < limit && rows.Next() {
		cells, err := scanCells(rows, len(cols))
		if err != nil {
			return nil, err
		}
		table.Rows = append(table.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", c.driverName, err)
	}
	return table, nil
}

// scanCells reads the current row as cell text.
func scanCells(rows *sql.Rows, n int) ([]string, error) {
	raw := make([]any, n)
	dest := make([]any, n)
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	cells := make([]string, n)
	for i, v := range raw {
		cells[i] = cellText(v)
	}
	return cells, nil
}

// cellText renders a driver value. NULL becomes an empty cell and times
// are RFC 3339.
func cellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func (c *sqlConnector) Close() error {
	return c.db.Close()
}
