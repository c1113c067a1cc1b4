package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/askdb/askdb/databases/dbx"
	"github.com/askdb/askdb/types"
)

type MySQLConnector struct {
	db *sqlx.DB
}

func NewMySQLConnector(connectionString string) (*MySQLConnector, error) {
	_, err := mysql.ParseDSN(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	// Open the database connection
	db, err := sqlx.Open("mysql", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	connector := &MySQLConnector{
		db: db,
	}

	if err := connector.Ping(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return connector, nil
}

func (c *MySQLConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *MySQLConnector) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		AND table_schema = DATABASE()
		ORDER BY table_name
	`

	var tables []string
	if err := c.db.SelectContext(ctx, &tables, query); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}

func (c *MySQLConnector) DescribeTable(ctx context.Context, table string) (types.TableSchema, error) {
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
func (c *MySQLConnector) Scan(ctx context.Context, tablesList []string) (*types.Snapshot, error) {
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
			SELECT table_name
			FROM information_schema.tables
			WHERE table_type = 'BASE TABLE'
			AND table_schema = DATABASE()
			AND table_name IN (%s)
		`, strings.Join(placeholders, ","))

	} else {
		// Query all tables in the current database
		query = `
			SELECT table_name
			FROM information_schema.tables
			WHERE table_type = 'BASE TABLE'
			AND table_schema = DATABASE()
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
		columns, err := c.loadColumns(ctx, tx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to load columns for table %s: %w", tableName, err)
		}

		primaryKeys, foreignKeys, err := c.loadKeys(ctx, tx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to load keys for table %s: %w", tableName, err)
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
func (c *MySQLConnector) Query(ctx context.Context, sqlQuery string) ([]types.Row, error) {
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
func (c *MySQLConnector) Sample(ctx context.Context, table string, limit int) ([]types.Row, error) {
	if !dbx.ValidIdent(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf("SELECT * FROM `%s` LIMIT ?", table)
	rows, err := c.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("unable to sample table %s: %w", table, err)
	}
	defer rows.Close()

	return dbx.CollectRows(rows)
}

func (c *MySQLConnector) Close() error {
	return c.db.Close()
}

func (c *MySQLConnector) loadColumns(ctx context.Context, tx *sqlx.Tx, tableName string) ([]types.Column, error) {
	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = ? AND table_schema = DATABASE()
		ORDER BY ordinal_position
	`

	rows, err := tx.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var columns []types.Column
	for rows.Next() {
		var name, dataType, isNullable string
		if err := rows.Scan(&name, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}

		columns = append(columns, types.Column{
			Name:     name,
			Type:     dataType,
			Nullable: isNullable == "YES",
		})
	}

	return columns, rows.Err()
}

func (c *MySQLConnector) loadKeys(ctx context.Context, tx *sqlx.Tx, tableName string) ([]string, []types.ForeignKey, error) {
	query := `
		SELECT
			constraint_name,
			column_name,
			COALESCE(referenced_table_name, ''),
			COALESCE(referenced_column_name, '')
		FROM information_schema.key_column_usage
		WHERE table_name = ? AND table_schema = DATABASE()
		ORDER BY constraint_name, ordinal_position
	`

	rows, err := tx.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query key usage: %w", err)
	}
	defer rows.Close()

	var primaryKeys []string
	grouped := make(map[string]*types.ForeignKey)
	var order []string

	for rows.Next() {
		var constraint, column, referredTable, referredColumn string
		if err := rows.Scan(&constraint, &column, &referredTable, &referredColumn); err != nil {
			return nil, nil, fmt.Errorf("failed to scan key usage: %w", err)
		}

		if constraint == "PRIMARY" {
			primaryKeys = append(primaryKeys, column)
			continue
		}
		if referredTable == "" {
			// Plain unique constraints are not snapshot material.
			continue
		}

		fk, ok := grouped[constraint]
		if !ok {
			fk = &types.ForeignKey{ReferredTable: referredTable}
			grouped[constraint] = fk
			order = append(order, constraint)
		}
		fk.ConstrainedColumns = append(fk.ConstrainedColumns, column)
		fk.ReferredColumns = append(fk.ReferredColumns, referredColumn)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read key usage: %w", err)
	}

	foreignKeys := make([]types.ForeignKey, 0, len(order))
	for _, constraint := range order {
		foreignKeys = append(foreignKeys, *grouped[constraint])
	}

	return primaryKeys, foreignKeys, nil
}
