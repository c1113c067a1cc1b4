// Package dbx holds the bits shared by every connector: identifier
// vetting and row materialization.
package dbx

import (
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"

	"github.com/askdb/askdb/jsonutil"
	"github.com/askdb/askdb/types"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether name is safe to interpolate as a quoted
// identifier. Sampling builds SQL from table names, so anything else is
// rejected outright.
func ValidIdent(name string) bool {
	return identPattern.MatchString(name)
}

// CollectRows materializes every row of the result set, normalizing
// driver values (bytes, decimals, timestamps) into transport-friendly
// ones. The rows object is fully drained but not closed; callers own it.
func CollectRows(rows *sqlx.Rows) ([]types.Row, error) {
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("unable to read column types: %w", err)
	}

	typeByColumn := make(map[string]string, len(columnTypes))
	for _, ct := range columnTypes {
		typeByColumn[ct.Name()] = ct.DatabaseTypeName()
	}

	var results []types.Row
	for rows.Next() {
		row := make(types.Row)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("unable to scan row: %w", err)
		}
		for col, val := range row {
			row[col] = jsonutil.NormalizeValue(typeByColumn[col], val)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	return results, nil
}
