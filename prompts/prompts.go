// Package prompts resolves the instruction text for each pipeline role.
// Lookup order is customer-scoped override, then global named prompt, then
// the built-in default. Resolution never fails: there is always usable
// text for every role.
package prompts

import "go.uber.org/zap"

// Role identifiers double as the prompt ids in the store.
const (
	RoleGeneration = "sql_system_message"
	RoleDebug      = "sql_debug_system_message"
	RoleSummary    = "result_summary_system_message"
)

// DefaultGenerationPrompt expects {schema} and {samples} placeholders.
const DefaultGenerationPrompt = `You are an expert SQL assistant that converts natural language questions into SQL queries.
Given the database schema and examples of data, generate a valid SQL SELECT query.
Follow these rules strictly:
1. ONLY generate SELECT queries - never write, update or delete operations
2. Use proper SQL syntax and table/column names exactly as shown in the schema
3. Include appropriate JOINs when needed based on the schema relationships
4. If you cannot generate a valid query, provide a clear error message
5. Never make assumptions about the schema, only use what is provided

The database schema is as follows:
{schema}

{samples}`

// DefaultDebugPrompt expects {schema} and {error} placeholders.
const DefaultDebugPrompt = `You are an expert SQL debugging agent. Your task is to analyze a broken SQL query
and fix any issues while ensuring it remains a read-only SELECT query.

The database schema is:
{schema}

When fixing queries, follow these rules:
1. Only fix the query if you're confident in the solution
2. ONLY generate SELECT queries - never modify to include writes/updates/deletes
3. Maintain the original intent of the query
4. Fix syntax errors, type casting issues, and schema compliance problems
5. If you can't fix the query, provide a clear error message explaining why

The original query failed with this error: {error}`

const DefaultSummaryPrompt = `You are an expert data analyst that summarizes SQL query results.
Your task is to provide a clear, concise summary of the query results in natural language.
Focus on key findings, patterns, and the most relevant information that answers the user's original question.
Keep the summary simple, direct, and to the point.`

var defaults = map[string]string{
	RoleGeneration: DefaultGenerationPrompt,
	RoleDebug:      DefaultDebugPrompt,
	RoleSummary:    DefaultSummaryPrompt,
}

// Resolver is a read-only lookup over an optional store plus the built-in
// defaults.
type Resolver struct {
	store  *Store
	logger *zap.Logger
}

func NewResolver(store *Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve returns the active text for a role, scoped to a customer when
// one is given.
func (r *Resolver) Resolve(role, customerID string) string {
	if r.store != nil {
		if text, ok := r.store.Prompt(role, customerID); ok {
			return text
		}
	}

	text, ok := defaults[role]
	if !ok {
		// Unknown role id; generation text is the least surprising answer.
		r.logger.Warn("unknown prompt role, using generation default", zap.String("role", role))
		return DefaultGenerationPrompt
	}
	return text
}
