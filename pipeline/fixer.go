package pipeline

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/askdb/askdb/types"
)

// Fixer rewrites a small set of common surface errors without any
// completion call. Both passes are pure and idempotent: running Fix on
// its own output changes nothing.
//
// Known limitations, preserved deliberately:
//   - the literal-quoting pass is syntactic and can quote legitimate
//     unquoted identifiers (or bare numbers) after "= ";
//   - the table-name pass can rewrite a correct identifier that merely
//     resembles a table name, e.g. a column named like a table.
type Fixer struct {
	logger *zap.Logger
}

func NewFixer(logger *zap.Logger) *Fixer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fixer{logger: logger}
}

// Fix applies the literal-quoting pass then the table-name pass to the
// same string and reports whether anything changed.
func (f *Fixer) Fix(query string, snapshot *types.Snapshot) (string, bool) {
	quoted, changedQuotes := quoteBareLiterals(query)
	normalized, changedTables := normalizeTableNames(quoted, snapshot)

	changed := changedQuotes || changedTables
	if changed {
		f.logger.Info("automatically fixed common issues in query",
			zap.String("original", query),
			zap.String("fixed", normalized))
	}
	return normalized, changed
}

var bareLiteralPattern = regexp.MustCompile(`= ([A-Za-z0-9_]+)`)

// quoteBareLiterals rewrites every `= <bareword>` to `= '<bareword>'`
// unless the word is followed by a quote, a digit, a function call, a
// qualified-name dot or an explicit cast.
func quoteBareLiterals(query string) (string, bool) {
	matches := bareLiteralPattern.FindAllStringSubmatchIndex(query, -1)
	if len(matches) == 0 {
		return query, false
	}

	var out strings.Builder
	last := 0
	changed := false
	for _, m := range matches {
		start, end := m[0], m[1]
		wordStart, wordEnd := m[2], m[3]

		if start < last {
			continue
		}
		if alreadyHandled(query[wordEnd:]) {
			continue
		}

		out.WriteString(query[last:start])
		out.WriteString("= '")
		out.WriteString(query[wordStart:wordEnd])
		out.WriteString("'")
		last = end
		changed = true
	}
	if !changed {
		return query, false
	}
	out.WriteString(query[last:])
	return out.String(), true
}

// alreadyHandled checks the text following a bareword for the markers that
// exempt it from quoting.
func alreadyHandled(rest string) bool {
	trimmed := strings.TrimLeft(rest, " \t")
	if trimmed == "" {
		return false
	}
	switch {
	case trimmed[0] == '\'':
		return true
	case trimmed[0] == '(':
		return true
	case trimmed[0] >= '0' && trimmed[0] <= '9':
		return true
	case trimmed[0] == '.':
		// Qualified name, e.g. users.id.
		return true
	case strings.HasPrefix(trimmed, "::"):
		return true
	}
	return false
}

var identWordPattern = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*\b`)

// reservedWords are never treated as table-name candidates.
var reservedWords = map[string]bool{
	"select": true, "from": true, "where": true, "join": true, "inner": true,
	"left": true, "right": true, "outer": true, "cross": true, "on": true,
	"and": true, "or": true, "not": true, "as": true, "in": true, "is": true,
	"null": true, "like": true, "between": true, "group": true, "by": true,
	"order": true, "having": true, "limit": true, "offset": true,
	"union": true, "all": true, "distinct": true, "case": true, "when": true,
	"then": true, "else": true, "end": true, "with": true, "asc": true,
	"desc": true, "count": true, "sum": true, "avg": true, "min": true,
	"max": true,
}

// normalizeTableNames replaces near-matches of known table names (case
// mismatches, singular/plural slips, one-character typos) with the
// canonical schema spelling.
func normalizeTableNames(query string, snapshot *types.Snapshot) (string, bool) {
	if snapshot.Empty() {
		return query, false
	}

	changed := false
	seen := map[string]bool{}
	for _, word := range identWordPattern.FindAllString(query, -1) {
		if seen[word] {
			continue
		}
		seen[word] = true

		if len(word) < 3 || reservedWords[strings.ToLower(word)] {
			continue
		}
		if _, ok := snapshot.Tables[word]; ok {
			// Already the canonical spelling.
			continue
		}

		for name := range snapshot.Tables {
			if !isNearMatch(strings.ToLower(word), strings.ToLower(name)) {
				continue
			}
			pattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
			query = pattern.ReplaceAllString(query, name)
			changed = true
			break
		}
	}

	return query, changed
}

func isNearMatch(word, table string) bool {
	if word == table {
		return true
	}
	if strings.TrimSuffix(word, "s") == strings.TrimSuffix(table, "s") {
		return true
	}
	return levenshtein(word, table) == 1
}

// levenshtein computes edit distance, bailing out early when the lengths
// alone rule out a distance of one.
func levenshtein(a, b string) int {
	if diff := len(a) - len(b); diff > 1 || diff < -1 {
		return 2
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
