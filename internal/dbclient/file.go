package dbclient

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"blockdoc/internal/domain"
)

// fileConnector reads a table from a local CSV or JSON file. Options:
// "delimiter" (csv, default comma) and "hasHeader" (csv, default true).
type fileConnector struct {
	src domain.TableSource
}

func (c *fileConnector) FetchTable(ctx context.Context, query string, limit int) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.src.Host == "" {
		return nil, &domain.ValidationError{Reason: "File path is required"}
	}
	data, err := os.ReadFile(c.src.Host)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.src.Host, err)
	}

	var t *Table
	if c.src.Driver == domain.DatabaseDriverCSV {
		t, err = c.csvTable(data)
	} else {
		t, err = jsonTable(data, query)
	}
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(t.Rows) > limit {
		t.Rows = t.Rows[:limit]
	}
	return t, nil
}

func (c *fileConnector) csvTable(data []byte) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	if delim := c.src.Options["delimiter"]; delim != "" {
		reader.Comma = rune(delim[0])
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("Invalid CSV: %v", err)}
	}
	if len(records) == 0 {
		return nil, &domain.ValidationError{Reason: "CSV file is empty"}
	}

	var columns []string
	rows := records
	if !strings.EqualFold(c.src.Options["hasHeader"], "false") {
		columns, rows = records[0], records[1:]
	} else {
		columns = make([]string, len(records[0]))
		for i := range columns {
			columns[i] = fmt.Sprintf("col_%d", i+1)
		}
	}

	// Table rows must all have the header's width.
	out := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, len(columns))
		copy(row, r)
		out[i] = row
	}
	return &Table{Columns: columns, Rows: out}, nil
}

// jsonTable decodes data as relaxed Extended JSON so object key order is
// kept, then follows path to an array of objects.
func jsonTable(data []byte, path string) (*Table, error) {
	wrapped := append(append([]byte(`{"v":`), data...), '}')
	var root bson.D
	if err := bson.UnmarshalExtJSON(wrapped, false, &root); err != nil {
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("Invalid JSON: %v", err)}
	}

	var cur any = root
	keys := []string{"v"}
	if path = strings.TrimSpace(path); path != "" {
		keys = append(keys, strings.Split(path, ".")...)
	}
	for _, key := range keys {
		doc, ok := cur.(bson.D)
		if !ok {
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("Path %q does not lead to an object", path)}
		}
		found := false
		for _, e := range doc {
			if e.Key == key {
				cur, found = e.Value, true
				break
			}
		}
		if !found {
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("Key %q not found", key)}
		}
	}

	arr, ok := cur.(bson.A)
	if !ok {
		return nil, &domain.ValidationError{Reason: "JSON rows must be an array of objects"}
	}
	docs := make([]bson.D, 0, len(arr))
	for i, item := range arr {
		d, ok := item.(bson.D)
		if !ok {
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("Row %d is not an object", i)}
		}
		docs = append(docs, d)
	}
	return documentsToTable(docs), nil
}

func (c *fileConnector) Close() error { return nil }
