package dbclient

import (
	"fmt"

	"blockdoc/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

// buildMySQLDSN constructs a MySQL DSN from a TableSource.
func buildMySQLDSN(src domain.TableSource) string {
	port := src.Port
	if port == 0 {
		port = 3306
	}
	// Format: user:password@tcp(host:port)/dbname?parseTime=true
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		src.Username, src.Password, src.Host, port, src.Database,
	)
	if src.SSLMode == "require" {
		dsn += "&tls=true"
	}
	return dsn
}
