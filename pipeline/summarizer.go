package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/askdb/askdb/jsonutil"
	"github.com/askdb/askdb/llm"
	"github.com/askdb/askdb/prompts"
	"github.com/askdb/askdb/types"
)

const (
	noResultsSummary = "The query returned no results."
	fallbackSummary  = "I couldn't generate a summary for the query results."

	// summaryRowLimit bounds how many rows are shown to the model.
	summaryRowLimit = 10
)

// Summarizer produces the natural-language answer and the markdown
// rendering of the result set. A summarization failure never fails the
// request; the caller gets the fallback text instead.
type Summarizer struct {
	resolver *prompts.Resolver
	models   []string
	maxRows  int
	logger   *zap.Logger
}

func NewSummarizer(resolver *prompts.Resolver, models []string, maxRows int, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 10
	}
	return &Summarizer{resolver: resolver, models: models, maxRows: maxRows, logger: logger}
}

// Summarize answers the original question from the rows: the narrative
// answer followed by the markdown preview table and its row-count
// disclosure, as one string. Always usable; errors are logged and
// absorbed into the fallback text.
func (s *Summarizer) Summarize(ctx context.Context, client llm.Client, scope Scope, question, query string, rows []types.Row) string {
	if len(rows) == 0 {
		return noResultsSummary
	}

	system := s.resolver.Resolve(prompts.RoleSummary, scope.CustomerID)

	shown := rows
	truncated := 0
	if len(shown) > summaryRowLimit {
		truncated = len(shown) - summaryRowLimit
		shown = shown[:summaryRowLimit]
	}
	resultsText := jsonutil.MarshalIndent(shown)
	if truncated > 0 {
		resultsText += fmt.Sprintf("\n... and %d more rows", truncated)
	}

	user := fmt.Sprintf("Original question: %s\nSQL query executed: %s\nQuery results: %s\n\nPlease summarize these results to answer the original question.",
		question, query, resultsText)

	summary, err := completeWithFallbackText(ctx, client, s.models, s.logger, system, user)
	if err != nil {
		s.logger.Warn("summarization failed", zap.Error(err))
		summary = fallbackSummary
	}
	if strings.TrimSpace(summary) == "" {
		summary = fallbackSummary
	}
	return summary + "\n\n" + renderMarkdown(rows, s.maxRows)
}

func completeWithFallbackText(ctx context.Context, client llm.Client, models []string, logger *zap.Logger, system, user string) (string, error) {
	var lastErr error
	for _, model := range models {
		text, err := client.Complete(ctx, model, system, user)
		if err == nil {
			return text, nil
		}
		lastErr = err
		logger.Warn("completion call failed, trying next model",
			zap.String("model", model),
			zap.Error(err))
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no models configured")
	}
	return "", lastErr
}

// renderMarkdown formats rows as a markdown table preceded by a
// disclosure line. At most maxRows rows are shown.
func renderMarkdown(rows []types.Row, maxRows int) string {
	if len(rows) == 0 {
		return ""
	}

	total := len(rows)
	shown := rows
	if total > maxRows {
		shown = rows[:maxRows]
	}

	columns := columnOrder(shown)

	var b strings.Builder
	if total > maxRows {
		fmt.Fprintf(&b, "Here are the top %d results out of %d total rows:\n\n", maxRows, total)
	} else {
		fmt.Fprintf(&b, "Here are all %d results:\n\n", total)
	}

	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(columns)) + "\n")

	for _, row := range shown {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = renderCell(row[col])
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}

// columnOrder is the first-seen union of each row's keys, each row's
// keys visited in sorted order. Map iteration alone would shuffle the
// columns between calls.
func columnOrder(rows []types.Row) []string {
	var columns []string
	seen := make(map[string]bool)
	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	return columns
}

func renderCell(v any) string {
	if v == nil {
		return ""
	}
	text := fmt.Sprintf("%v", v)
	if strings.ContainsAny(text, "|\n") {
		text = "`" + strings.NewReplacer("|", "\\|", "\n", " ").Replace(text) + "`"
	}
	return text
}
