package pipeline

import "github.com/askdb/askdb/types"

// Error kinds. Every terminal failure routes through one of these so
// callers get a stable envelope shape regardless of which stage failed.
const (
	KindGenerationFailed    = "sql_generation_failed"
	KindValidationFailed    = "sql_validation_failed"
	KindConnectionError     = "database_connection_error"
	KindExecutionError      = "execution_error"
	KindInsufficientPerms   = "insufficient_permissions"
	KindEmptyResults        = "empty_results"
	KindSummarizationFailed = "summarization_failed"
	KindConfigurationError  = "configuration_error"
	KindGeneralError        = "general_error"
)

var errorMessages = map[string]string{
	KindGenerationFailed:    "I couldn't generate a valid SQL query for your question. Please try rephrasing or providing more context.",
	KindValidationFailed:    "The generated SQL query doesn't meet security requirements. Only read-only queries are allowed.",
	KindConnectionError:     "There was an issue connecting to the database. Please try again later.",
	KindExecutionError:      "An error occurred while executing the query. Please check your question for clarity.",
	KindInsufficientPerms:   "You don't have permission to access this information.",
	KindEmptyResults:        "The query executed successfully but returned no results.",
	KindSummarizationFailed: "I couldn't generate a summary for the query results.",
	KindConfigurationError:  "No usable LLM credential is configured for this request.",
	KindGeneralError:        "An unexpected error occurred. Please try again later.",
}

// FailureResult builds the failure envelope for an error kind. A custom
// message overrides the fixed one; unknown kinds degrade to the general
// error.
func FailureResult(kind, customMessage string) *types.PipelineResult {
	message := customMessage
	if message == "" {
		message = errorMessages[kind]
	}
	if message == "" {
		message = errorMessages[KindGeneralError]
	}

	return &types.PipelineResult{
		Success: false,
		Error: &types.ErrorInfo{
			Type:    kind,
			Message: message,
		},
		Mock: true,
	}
}

// EmptyResult is the distinct success envelope for a query that ran but
// matched nothing. No summarization call is made for it.
func EmptyResult(query string) *types.PipelineResult {
	return &types.PipelineResult{
		Success: true,
		Message: "Query executed successfully but returned no results.",
		Query:   query,
		Data:    []types.Row{},
		Summary: "No data was found for your query.",
	}
}

// SuccessResult builds the envelope for a non-empty, summarized result
// set.
func SuccessResult(query string, rows []types.Row, summary string) *types.PipelineResult {
	count := len(rows)
	return &types.PipelineResult{
		Success:     true,
		Query:       query,
		Data:        rows,
		Summary:     summary,
		RecordCount: &count,
	}
}
