package databases

import (
	"context"

	"github.com/askdb/askdb/types"
)

// Database is the relational-store collaborator: bounded introspection,
// best-effort sampling and read-only execution. Implementations must never
// write; every call runs inside a fresh read-only transaction.
type Database interface {
	Ping(ctx context.Context) error
	ListTables(ctx context.Context) ([]string, error)
	DescribeTable(ctx context.Context, table string) (types.TableSchema, error)
	Scan(ctx context.Context, tableList []string) (*types.Snapshot, error)
	Query(ctx context.Context, sql string) ([]types.Row, error)
	Sample(ctx context.Context, table string, limit int) ([]types.Row, error)
	Close() error
}
