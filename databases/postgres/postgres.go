package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/askdb/askdb/databases/dbx"
	"github.com/askdb/askdb/types"
)

type PostgresConnector struct {
	db *sqlx.DB
}

func NewPostgresConnector(connectionString string) (*PostgresConnector, error) {
	config, err := pgx.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.PreferSimpleProtocol = true

	db := sqlx.NewDb(stdlib.OpenDB(*config), "pgx")

	connector := &PostgresConnector{
		db: db,
	}

	// Test the connection
	if err := connector.Ping(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return connector, nil
}

func (c *PostgresConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *PostgresConnector) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		AND table_schema = 'public'
		ORDER BY table_name
	`

	var tables []string
	if err := c.db.SelectContext(ctx, &tables, query); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}

func (c *PostgresConnector) DescribeTable(ctx context.Context, table string) (types.TableSchema, error) {
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
func (c *PostgresConnector) Scan(ctx context.Context, tablesList []string) (*types.Snapshot, error) {
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
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = table
		}

		query = fmt.Sprintf(`
			SELECT table_name
			FROM information_schema.tables
			WHERE table_type = 'BASE TABLE'
			AND table_schema = 'public'
			AND table_name IN (%s)
		`, strings.Join(placeholders, ","))

	} else {
		// Query all tables
		query = `
			SELECT table_name
			FROM information_schema.tables
			WHERE table_type = 'BASE TABLE'
			AND table_schema = 'public'
		`
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	snapshot := &types.Snapshot{Tables: make(map[string]types.TableSchema)}
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

	for _, tableName := range tableNames {
		columns, err := c.loadColumns(ctx, tx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to load columns for table %s: %w", tableName, err)
		}

		primaryKeys, err := c.loadPrimaryKeys(ctx, tx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to load primary keys for table %s: %w", tableName, err)
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
func (c *PostgresConnector) Query(ctx context.Context, sqlQuery string) ([]types.Row, error) {
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
func (c *PostgresConnector) Sample(ctx context.Context, table string, limit int) ([]types.Row, error) {
	if !dbx.ValidIdent(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(`SELECT * FROM "public".%q LIMIT $1`, table)
	rows, err := c.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("unable to sample table %s: %w", table, err)
	}
	defer rows.Close()

	return dbx.CollectRows(rows)
}

func (c *PostgresConnector) Close() error {
	return c.db.Close()
}

func (c *PostgresConnector) loadColumns(ctx context.Context, tx *sqlx.Tx, tableName string) ([]types.Column, error) {
	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = $1 AND table_schema = 'public'
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

func (c *PostgresConnector) loadPrimaryKeys(ctx context.Context, tx *sqlx.Tx, tableName string) ([]string, error) {
	query := `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		WHERE i.indrelid = $1::regclass AND i.indisprimary
	`

	rows, err := tx.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query primary keys: %w", err)
	}
	defer rows.Close()

	var primaryKeys []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan primary key: %w", err)
		}
		primaryKeys = append(primaryKeys, name)
	}

	return primaryKeys, rows.Err()
}

func (c *PostgresConnector) loadForeignKeys(ctx context.Context, tx *sqlx.Tx, tableName string) ([]types.ForeignKey, error) {
	query := `
		SELECT
			tc.constraint_name,
			kcu.column_name AS constrained_column,
			ccu.table_name AS referred_table,
			ccu.column_name AS referred_column
		FROM
			information_schema.table_constraints AS tc
			JOIN information_schema.key_column_usage AS kcu
				ON tc.constraint_name = kcu.constraint_name
			JOIN information_schema.constraint_column_usage AS ccu
				ON ccu.constraint_name = tc.constraint_name
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_name = $1
	`

	rows, err := tx.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string]*types.ForeignKey)
	var order []string
	for rows.Next() {
		var constraint, constrained, referredTable, referred string
		if err := rows.Scan(&constraint, &constrained, &referredTable, &referred); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}

		fk, ok := grouped[constraint]
		if !ok {
			fk = &types.ForeignKey{ReferredTable: referredTable}
			grouped[constraint] = fk
			order = append(order, constraint)
		}
		fk.ConstrainedColumns = append(fk.ConstrainedColumns, constrained)
		fk.ReferredColumns = append(fk.ReferredColumns, referred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read foreign keys: %w", err)
	}

	foreignKeys := make([]types.ForeignKey, 0, len(order))
	for _, constraint := range order {
		foreignKeys = append(foreignKeys, *grouped[constraint])
	}

	return foreignKeys, nil
}
