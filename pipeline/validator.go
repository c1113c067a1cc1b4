package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/DataDog/go-sqllexer"
)

// BlockedKeywords is the fixed deny list scanned as whole words over the
// full input text, case-insensitive.
var BlockedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE",
	"GRANT", "REVOKE", "COMMIT", "ROLLBACK",
}

var blockedPatterns = func() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(BlockedKeywords))
	for _, keyword := range BlockedKeywords {
		patterns[keyword] = regexp.MustCompile(`(?i)\b` + keyword + `\b`)
	}
	return patterns
}()

// statementTypeWords is what a statement can be classified as from its
// leading tokens, mirroring a non-validating SQL tokenizer's notion of a
// statement type.
var statementTypeWords = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"MERGE": true, "REPLACE": true, "CREATE": true, "DROP": true,
	"ALTER": true, "TRUNCATE": true, "GRANT": true, "REVOKE": true,
	"COMMIT": true, "ROLLBACK": true,
}

// Validation is the safety gate's verdict.
type Validation struct {
	Valid  bool
	Reason string
}

// Validator is the security-critical read-only gate. Acceptance means: the
// input parses into at least one statement, the FIRST statement is a
// SELECT, and no blocked keyword occurs anywhere in the original text.
// Only the first statement is ever considered for execution; anything
// after a terminator is discarded, not run.
//
// This is a text-level check only. A query that passes goes straight to
// execution with no dry-run or EXPLAIN; the gate guarantees read-only
// shape, not correctness.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Validate(query string) Validation {
	if strings.TrimSpace(query) == "" {
		return Validation{Valid: false, Reason: "empty query"}
	}

	statements := splitStatements(query)
	if len(statements) == 0 {
		return Validation{Valid: false, Reason: "empty or invalid SQL query"}
	}

	// Single-statement policy: only the first statement counts.
	if inferStatementType(statements[0]) != "SELECT" {
		return Validation{Valid: false, Reason: "only SELECT queries are allowed"}
	}

	// The keyword scan covers the whole original text, not just the
	// first statement.
	for _, keyword := range BlockedKeywords {
		if blockedPatterns[keyword].MatchString(query) {
			return Validation{
				Valid:  false,
				Reason: fmt.Sprintf("disallowed SQL keyword found: %s", keyword),
			}
		}
	}

	return Validation{Valid: true}
}

// splitStatements tokenizes the input and groups significant tokens into
// statements separated by ";". Statements with no significant tokens are
// dropped.
func splitStatements(query string) [][]string {
	lexer := sqllexer.New(query)

	var statements [][]string
	var current []string
	for {
		token := lexer.Scan()
		if token == nil || token.Type == sqllexer.EOF {
			break
		}

		switch token.Type {
		case sqllexer.SPACE, sqllexer.COMMENT, sqllexer.MULTILINE_COMMENT:
			continue
		case sqllexer.ERROR:
			continue
		case sqllexer.PUNCTUATION:
			if token.Value == ";" {
				if len(current) > 0 {
					statements = append(statements, current)
					current = nil
				}
				continue
			}
		}
		current = append(current, token.Value)
	}
	if len(current) > 0 {
		statements = append(statements, current)
	}

	return statements
}

// inferStatementType returns the first recognized statement-type word in
// the token stream, or UNKNOWN. Scanning past leading keywords means CTEs
// (WITH ... SELECT) classify as SELECT.
func inferStatementType(tokens []string) string {
	for _, value := range tokens {
		upper := strings.ToUpper(value)
		if statementTypeWords[upper] {
			return upper
		}
	}
	return "UNKNOWN"
}
