package dbclient

import (
	"fmt"

	"blockdoc/internal/domain"

	_ "github.com/lib/pq"
)

// buildPostgresDSN constructs a Postgres connection string from a TableSource.
func buildPostgresDSN(src domain.TableSource) string {
	port := src.Port
	if port == 0 {
		port = 5432
	}
	sslMode := src.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		src.Host, port, src.Username, src.Password, src.Database, sslMode,
	)
}
