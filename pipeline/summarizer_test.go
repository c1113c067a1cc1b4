package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb/askdb/prompts"
	"github.com/askdb/askdb/types"
)

func testResolver(t *testing.T) *prompts.Resolver {
	t.Helper()
	store, err := prompts.LoadStore("")
	require.NoError(t, err)
	return prompts.NewResolver(store, nil)
}

func TestRenderMarkdownAllRows(t *testing.T) {
	rows := []types.Row{
		{"id": int64(1), "name": "Ada"},
		{"id": int64(2), "name": "Grace"},
	}

	out := renderMarkdown(rows, 10)

	assert.Contains(t, out, "Here are all 2 results:")
	assert.Contains(t, out, "| id | name |")
	assert.Contains(t, out, "| 1 | Ada |")
	assert.Contains(t, out, "| 2 | Grace |")
}

func TestRenderMarkdownTruncates(t *testing.T) {
	var rows []types.Row
	for i := 0; i < 15; i++ {
		rows = append(rows, types.Row{"n": i})
	}

	out := renderMarkdown(rows, 10)

	assert.Contains(t, out, "Here are the top 10 results out of 15 total rows:")
	assert.Contains(t, out, "| 9 |")
	assert.NotContains(t, out, "| 10 |")
	// Disclosure line, blank line, header, separator, 10 data rows.
	assert.Equal(t, 14, strings.Count(out, "\n"))
}

func TestRenderMarkdownEscapesCells(t *testing.T) {
	rows := []types.Row{
		{"note": "a|b"},
		{"note": "line\nbreak"},
		{"note": nil},
	}

	out := renderMarkdown(rows, 10)

	assert.Contains(t, out, "`a\\|b`")
	assert.Contains(t, out, "`line break`")
	assert.NotContains(t, out, "a|b")
}

func TestRenderMarkdownEmpty(t *testing.T) {
	assert.Empty(t, renderMarkdown(nil, 10))
}

func TestRenderMarkdownStableColumnOrder(t *testing.T) {
	rows := []types.Row{
		{"b": 1, "a": 2},
		{"c": 3, "a": 4},
	}

	out := renderMarkdown(rows, 10)

	// Keys come out sorted per row, first seen wins across rows.
	assert.Contains(t, out, "| a | b | c |")
}

func TestSummarizeEmptyRows(t *testing.T) {
	s := NewSummarizer(testResolver(t), []string{"m"}, 10, nil)

	out := s.Summarize(context.Background(), nil, Scope{}, "who?", "SELECT 1", nil)
	assert.Equal(t, noResultsSummary, out)
}

func TestSummarizeFallsBackOnError(t *testing.T) {
	s := NewSummarizer(testResolver(t), []string{"m"}, 10, nil)
	client := &scriptedClient{completeErr: fmt.Errorf("boom")}

	out := s.Summarize(context.Background(), client, Scope{}, "who?", "SELECT 1", []types.Row{{"id": 1}})
	assert.True(t, strings.HasPrefix(out, fallbackSummary), "got: %s", out)
	assert.Contains(t, out, "Here are all 1 results:")
}

func TestSummarizeUsesCompletionText(t *testing.T) {
	s := NewSummarizer(testResolver(t), []string{"m"}, 10, nil)
	client := &scriptedClient{completeText: "There is one user."}

	out := s.Summarize(context.Background(), client, Scope{}, "how many users?", "SELECT 1", []types.Row{{"id": 1}})
	assert.True(t, strings.HasPrefix(out, "There is one user."), "got: %s", out)
	require.Len(t, client.completeCalls, 1)
	assert.Contains(t, client.completeCalls[0], "Original question: how many users?")
	assert.Contains(t, client.completeCalls[0], "SQL query executed: SELECT 1")
}

func TestSummarizeAppendsPreviewTable(t *testing.T) {
	// The narrative and the markdown preview come back as one string.
	s := NewSummarizer(testResolver(t), []string{"m"}, 10, nil)
	client := &scriptedClient{completeText: "Two users."}

	rows := []types.Row{{"name": "Ada"}, {"name": "Grace"}}
	out := s.Summarize(context.Background(), client, Scope{}, "who?", "SELECT name FROM users", rows)

	assert.True(t, strings.HasPrefix(out, "Two users.\n\n"), "got: %s", out)
	assert.Contains(t, out, "Here are all 2 results:")
	assert.Contains(t, out, "| name |")
	assert.Contains(t, out, "| Ada |")
}

func TestSummarizeTruncatesRowsShownToModel(t *testing.T) {
	s := NewSummarizer(testResolver(t), []string{"m"}, 10, nil)
	client := &scriptedClient{completeText: "Many rows."}

	var rows []types.Row
	for i := 0; i < 13; i++ {
		rows = append(rows, types.Row{"n": i})
	}

	s.Summarize(context.Background(), client, Scope{}, "q", "SELECT 1", rows)
	require.Len(t, client.completeCalls, 1)
	assert.Contains(t, client.completeCalls[0], "... and 3 more rows")
}
