package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/askdb/askdb/databases"
	"github.com/askdb/askdb/types"
)

// Executor runs a validated SQL statement and returns its rows.
type Executor interface {
	Execute(ctx context.Context, query string) ([]types.Row, error)
}

// ExecError carries the failing statement alongside the driver error so
// the repair step can feed both back to the model.
type ExecError struct {
	Query string
	Err   error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// DBExecutor executes statements against a live database connector.
type DBExecutor struct {
	db     databases.Database
	logger *zap.Logger
}

func NewDBExecutor(db databases.Database, logger *zap.Logger) *DBExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBExecutor{db: db, logger: logger}
}

func (e *DBExecutor) Execute(ctx context.Context, query string) ([]types.Row, error) {
	rows, err := e.db.Query(ctx, query)
	if err != nil {
		e.logger.Warn("query execution failed",
			zap.String("query", query),
			zap.Error(err))
		return nil, &ExecError{Query: query, Err: err}
	}
	e.logger.Info("query executed", zap.Int("rows", len(rows)))
	return rows, nil
}
