package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAcceptsSelect(t *testing.T) {
	v := NewValidator()

	queries := []string{
		"SELECT * FROM users",
		"select id, name from users where id = 1",
		"SELECT u.name, o.total FROM users u JOIN orders o ON o.user_id = u.id",
		"WITH recent AS (SELECT * FROM orders) SELECT * FROM recent",
		"SELECT * FROM users;",
	}
	for _, q := range queries {
		verdict := v.Validate(q)
		assert.True(t, verdict.Valid, "expected %q to pass", q)
		assert.Empty(t, verdict.Reason)
	}
}

func TestValidateRejectsEmpty(t *testing.T) {
	v := NewValidator()

	assert.Equal(t, "empty query", v.Validate("").Reason)
	assert.Equal(t, "empty query", v.Validate("   \n\t").Reason)
}

func TestValidateRejectsNonStatements(t *testing.T) {
	v := NewValidator()

	for _, q := range []string{";;", "-- just a comment", "/* nothing here */"} {
		verdict := v.Validate(q)
		assert.False(t, verdict.Valid)
		assert.Equal(t, "empty or invalid SQL query", verdict.Reason)
	}
}

func TestValidateRejectsNonSelectFirstStatement(t *testing.T) {
	v := NewValidator()

	queries := []string{
		"DELETE FROM users",
		"UPDATE users SET name = 'x'",
		"DROP TABLE users",
		"INSERT INTO users (name) VALUES ('x')",
	}
	for _, q := range queries {
		verdict := v.Validate(q)
		assert.False(t, verdict.Valid, "expected %q to fail", q)
		assert.Equal(t, "only SELECT queries are allowed", verdict.Reason)
	}
}

func TestValidateScansFullTextForBlockedKeywords(t *testing.T) {
	v := NewValidator()

	// The first statement is a SELECT but the text still carries a
	// blocked keyword behind the terminator.
	verdict := v.Validate("SELECT * FROM users; DROP TABLE users")
	assert.False(t, verdict.Valid)
	assert.Equal(t, "disallowed SQL keyword found: DROP", verdict.Reason)
}

func TestValidateKeywordScanIsTextLevel(t *testing.T) {
	v := NewValidator()

	// Blocked keywords match even inside string literals. The gate is
	// conservative on purpose.
	verdict := v.Validate("SELECT * FROM notes WHERE body = 'please update me'")
	assert.False(t, verdict.Valid)
	assert.Equal(t, "disallowed SQL keyword found: UPDATE", verdict.Reason)
}

func TestValidateCaseInsensitiveKeywords(t *testing.T) {
	v := NewValidator()

	verdict := v.Validate("SELECT 1; dRoP table users")
	assert.False(t, verdict.Valid)
	assert.Equal(t, "disallowed SQL keyword found: DROP", verdict.Reason)
}

func TestValidateDoesNotMatchKeywordSubstrings(t *testing.T) {
	v := NewValidator()

	// "created_at" contains CREATE but is not a whole-word match.
	verdict := v.Validate("SELECT created_at, updated_at FROM users")
	assert.True(t, verdict.Valid, "got reason: %s", verdict.Reason)
}
