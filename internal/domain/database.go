package domain

// DatabaseDriver represents the type of database engine a table block can
// be filled from.
type DatabaseDriver string

const (
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverMongoDB  DatabaseDriver = "mongodb"
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"

	// File sources read Host as a local path.
	DatabaseDriverCSV  DatabaseDriver = "csv"
	DatabaseDriverJSON DatabaseDriver = "json"
)

// TableSource holds what is needed to reach an external database. It is
// never persisted with the document.
type TableSource struct {
	Driver   DatabaseDriver    `json:"driver"`
	Host     string            `json:"host"`     // hostname, mongodb:// URI or file path (sqlite)
	Port     int               `json:"port"`     // 0 for the driver default
	Database string            `json:"database"` // db name or empty for sqlite
	Username string            `json:"username"`
	Password string            `json:"password,omitempty"`
	SSLMode  string            `json:"sslMode"`
	Options  map[string]string `json:"options,omitempty"` // driver-specific URI parameters
}

// TableQuery fills a table block from a read-only query. For mongodb the
// query is a JSON object {collection, filter?, projection?, sort?}. For a
// json file it is an optional dotted path to the array of rows; csv
// ignores it.
type TableQuery struct {
	Source        TableSource `json:"source"`
	Query         string      `json:"query"`
	Limit         int         `json:"limit"`         // 0 means DefaultTableLimit
	IncludeHeader bool        `json:"includeHeader"` // first row holds the column names
}

// DefaultTableLimit caps the rows copied into a table block.
const DefaultTableLimit = 200
