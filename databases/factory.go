package databases

import (
	"fmt"

	"github.com/askdb/askdb/databases/mysql"
	"github.com/askdb/askdb/databases/postgres"
	"github.com/askdb/askdb/databases/sqlite"
)

// NewConnector opens a connector for the configured database type.
func NewConnector(dbType, connectionString string) (Database, error) {
	switch dbType {
	case "postgres":
		return postgres.NewPostgresConnector(connectionString)
	case "mysql":
		return mysql.NewMySQLConnector(connectionString)
	case "sqlite":
		return sqlite.NewSQLiteConnector(connectionString)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}
