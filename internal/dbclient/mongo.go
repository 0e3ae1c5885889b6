package dbclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"blockdoc/internal/domain"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mongoConnector implements Connector for MongoDB.
type mongoConnector struct {
	client *mongo.Client
	dbName string
}

// mongoQuery is the JSON structure users write for MongoDB table queries.
// Filter, projection and sort accept Extended JSON ($oid, $date, ...).
type mongoQuery struct {
	Collection string          `json:"collection"`
	Filter     json.RawMessage `json:"filter,omitempty"`
	Projection json.RawMessage `json:"projection,omitempty"`
	Sort       json.RawMessage `json:"sort,omitempty"`
}

// buildMongoURI returns the connection URI and the database to query.
func buildMongoURI(src domain.TableSource) (string, string) {
	var uri string

	// A full connection string (Atlas mongodb+srv:// or standard mongodb://) is used as is.
	if strings.HasPrefix(src.Host, "mongodb+srv://") || strings.HasPrefix(src.Host, "mongodb://") {
		uri = src.Host
		// Replace <password> placeholder commonly found in Atlas connection strings
		if src.Password != "" {
			uri = strings.ReplaceAll(uri, "<password>", src.Password)
			uri = strings.ReplaceAll(uri, "<db_password>", src.Password)
		}
	} else {
		port := src.Port
		if port == 0 {
			port = 27017
		}
		if src.Username != "" {
			uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", src.Username, src.Password, src.Host, port)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%d", src.Host, port)
		}

		// authSource, replicaSet, etc. Sorted so the URI is stable.
		if len(src.Options) > 0 {
			keys := make([]string, 0, len(src.Options))
			for k := range src.Options {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			params := make([]string, 0, len(keys))
			for _, k := range keys {
				params = append(params, k+"="+src.Options[k])
			}
			uri += "/?" + strings.Join(params, "&")
		}
	}

	dbName := src.Database
	if dbName == "" {
		dbName = databaseFromURI(uri)
	}
	return uri, dbName
}

// databaseFromURI extracts the path segment of user:pass@host/DB_NAME?params,
// falling back to "test" like the mongo shell.
func databaseFromURI(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if atIdx := strings.Index(rest, "@"); atIdx != -1 {
		rest = rest[atIdx+1:]
	}
	if slashIdx := strings.Index(rest, "/"); slashIdx != -1 {
		pathPart := rest[slashIdx+1:]
		if qIdx := strings.Index(pathPart, "?"); qIdx != -1 {
			pathPart = pathPart[:qIdx]
		}
		if pathPart != "" {
			return pathPart
		}
	}
	return "test"
}

func newMongoConnector(src domain.TableSource) (*mongoConnector, error) {
	uri, dbName := buildMongoURI(src)

	logURI := uri
	if src.Password != "" {
		logURI = strings.ReplaceAll(logURI, src.Password, "***")
	}
	slog.Debug("connecting to mongo", "component", "dbclient", "uri", logURI, "database", dbName)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &mongoConnector{client: client, dbName: dbName}, nil
}

// parseMongoQuery decodes the query JSON. Extended JSON fields are decoded
// into bson.D so the key order of sort specifications survives.
func parseMongoQuery(query string) (string, bson.D, bson.D, bson.D, error) {
	var mq mongoQuery
	if err := json.Unmarshal([]byte(query), &mq); err != nil {
		return "", nil, nil, nil, &domain.ValidationError{Reason: fmt.Sprintf("Invalid query JSON: %v", err)}
	}
	if mq.Collection == "" {
		return "", nil, nil, nil, &domain.ValidationError{Reason: "Query must specify 'collection'"}
	}

	decode := func(name string, raw json.RawMessage) (bson.D, error) {
		if len(raw) == 0 || string(raw) == "null" {
			return nil, nil
		}
		var doc bson.D
		if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("Invalid %s: %v", name, err)}
		}
		return doc, nil
	}
	filter, err := decode("filter", mq.Filter)
	if err != nil {
		return "", nil, nil, nil, err
	}
	projection, err := decode("projection", mq.Projection)
	if err != nil {
		return "", nil, nil, nil, err
	}
	sortSpec, err := decode("sort", mq.Sort)
	if err != nil {
		return "", nil, nil, nil, err
	}
	if filter == nil {
		filter = bson.D{}
	}
	return mq.Collection, filter, projection, sortSpec, nil
}

func (m *mongoConnector) FetchTable(ctx context.Context, query string, limit int) (*Table, error) {
	collection, filter, projection, sortSpec, err := parseMongoQuery(query)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = domain.DefaultTableLimit
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().SetLimit(int64(limit))
	if projection != nil {
		opts.SetProjection(projection)
	}
	if sortSpec != nil {
		opts.SetSort(sortSpec)
	}

	cursor, err := m.client.Database(m.dbName).Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.D
	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return documentsToTable(docs), nil
}

// documentsToTable lays documents out as rows. Columns follow the order in
// which keys are first seen; missing fields become empty cells.
func documentsToTable(docs []bson.D) *Table {
	colIndex := map[string]int{}
	var columns []string
	for _, doc := range docs {
		for _, elem := range doc {
			if _, ok := colIndex[elem.Key]; !ok {
				colIndex[elem.Key] = len(columns)
				columns = append(columns, elem.Key)
			}
		}
	}

	rows := make([][]string, 0, len(docs))
	for _, doc := range docs {
		row := make([]string, len(columns))
		for _, elem := range doc {
			row[colIndex[elem.Key]] = formatBSON(elem.Value)
		}
		rows = append(rows, row)
	}
	if columns == nil {
		columns = []string{}
	}
	return &Table{Columns: columns, Rows: rows}
}

func formatBSON(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return val.Time().UTC().Format(time.RFC3339)
	case bson.D, bson.A:
		data, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: val}}, false, false)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		// Strip the {"v": ...} wrapper.
		s := string(data)
		return strings.TrimSuffix(strings.TrimPrefix(s, `{"v":`), "}")
	default:
		return cellText(val)
	}
}

func (m *mongoConnector) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
