package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/askdb/askdb/databases/dbx"
	"github.com/askdb/askdb/types"
)

type SQLiteConnector struct {
	db *sqlx.DB
}

func NewSQLiteConnector(connectionString string) (*SQLiteConnector, error) {
	db, err := sqlx.Open("sqlite3", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	connector := &SQLiteConnector{
		db: db,
	}

	// Test the connection
	if err := connector.Ping(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return connector, nil
}

func (c *SQLiteConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *SQLiteConnector) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type='table'
		AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	var tables []string
	if err := c.db.SelectContext(ctx, &tables, query); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}

func (c *SQLiteConnector) DescribeTable(ctx context.Context, table string) (types.TableSchema, error) {
	snapshot, err := c.Scan(ctx, []string{table})
	if err != nil {
		return types.TableSchema{}, err
	}
	schema, ok := snapshot.Tables[table]
	if !ok {
		return types.TableSchema{}, fmt.Errorf("table not found: %s", table)
	}
	return schema, nil
}

// Discover
func (c *SQLiteConnector) Scan(ctx context.Context, tablesList []string) (*types.Snapshot, error) {
	tx, err := c.db.BeginTxx(ctx, &sql.TxOptions{
		ReadOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Commit()

	var query string
	var args []interface{}

	if len(tablesList) > 0 {
		// Query specific tables
		placeholders := make([]string, len(tablesList))
		args = make([]interface{}, len(tablesList))

		for i, table := range tablesList {
			placeholders[i] = "?"
			args[i] = table
		}

		query = fmt.Sprintf(`
			SELECT name
			FROM sqlite_master
			WHERE type='table'
			AND name NOT LIKE 'sqlite_%%'
			AND name IN (%s)
		`, strings.Join(placeholders, ","))

	} else {
		query = `
			SELECT name
			FROM sqlite_master
			WHERE type='table'
			AND name NOT LIKE 'sqlite_%'
		`
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tableNames []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tableNames = append(tableNames, tableName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tables: %w", err)
	}

	snapshot := &types.Snapshot{Tables: make(map[string]types.TableSchema)}
	for _, tableName := range tableNames {
		columns, primaryKeys, err := c.loadColumns(ctx, tx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to load columns for table %s: %w", tableName, err)
		}

		foreignKeys, err := c.loadForeignKeys(ctx, tx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to load foreign keys for table %s: %w", tableName, err)
		}

		snapshot.Tables[tableName] = types.TableSchema{
			Columns:     columns,
			PrimaryKeys: primaryKeys,
			ForeignKeys: foreignKeys,
		}
	}

	return snapshot, nil
}

// Query
func (c *SQLiteConnector) Query(ctx context.Context, sqlQuery string) ([]types.Row, error) {
	tx, err := c.db.BeginTxx(ctx, &sql.TxOptions{
		ReadOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("BeginTx failed with error: %w", err)
	}
	defer tx.Commit()

	rows, err := tx.QueryxContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("unable to query db: %w", err)
	}
	defer rows.Close()

	return dbx.CollectRows(rows)
}

// Sample
func (c *SQLiteConnector) Sample(ctx context.Context, table string, limit int) ([]types.Row, error) {
	if !dbx.ValidIdent(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(`SELECT * FROM %q LIMIT ?`, table)
	rows, err := c.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("unable to sample table %s: %w", table, err)
	}
	defer rows.Close()

	return dbx.CollectRows(rows)
}

func (c *SQLiteConnector) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *SQLiteConnector) loadColumns(ctx context.Context, tx *sqlx.Tx, tableName string) ([]types.Column, []string, error) {
	if !dbx.ValidIdent(tableName) {
		return nil, nil, fmt.Errorf("invalid table name: %q", tableName)
	}

	// PRAGMA arguments cannot be bound.
	query := fmt.Sprintf("PRAGMA table_info(%q)", tableName)

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var columns []types.Column
	var primaryKeys []string
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull int
		var defaultValue *string
		var pk int

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return nil, nil, fmt.Errorf("failed to scan column: %w", err)
		}

		columns = append(columns, types.Column{
			Name:     name,
			Type:     dataType,
			Nullable: notNull == 0,
		})
		if pk > 0 {
			primaryKeys = append(primaryKeys, name)
		}
	}

	return columns, primaryKeys, rows.Err()
}

func (c *SQLiteConnector) loadForeignKeys(ctx context.Context, tx *sqlx.Tx, tableName string) ([]types.ForeignKey, error) {
	if !dbx.ValidIdent(tableName) {
		return nil, fmt.Errorf("invalid table name: %q", tableName)
	}

	query := fmt.Sprintf("PRAGMA foreign_key_list(%q)", tableName)

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	defer rows.Close()

	grouped := make(map[int]*types.ForeignKey)
	var order []int
	for rows.Next() {
		var id, seq int
		var referredTable, from string
		var to *string
		var onUpdate, onDelete, match string

		if err := rows.Scan(&id, &seq, &referredTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}

		fk, ok := grouped[id]
		if !ok {
			fk = &types.ForeignKey{ReferredTable: referredTable}
			grouped[id] = fk
			order = append(order, id)
		}
		fk.ConstrainedColumns = append(fk.ConstrainedColumns, from)
		if to != nil {
			fk.ReferredColumns = append(fk.ReferredColumns, *to)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read foreign keys: %w", err)
	}

	foreignKeys := make([]types.ForeignKey, 0, len(order))
	for _, id := range order {
		foreignKeys = append(foreignKeys, *grouped[id])
	}

	return foreignKeys, nil
}
