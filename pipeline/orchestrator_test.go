package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb/askdb/llm"
	"github.com/askdb/askdb/types"
)

// scriptedClient plays back queued structured replies and a fixed text
// completion.
type scriptedClient struct {
	structured    []structuredReply
	completeText  string
	completeErr   error
	completeCalls []string
}

type structuredReply struct {
	fields map[string]any
	err    error
}

func (c *scriptedClient) Complete(ctx context.Context, model, system, user string) (string, error) {
	c.completeCalls = append(c.completeCalls, user)
	return c.completeText, c.completeErr
}

func (c *scriptedClient) CompleteStructured(ctx context.Context, model, system, user string, fn llm.FunctionSpec) (map[string]any, error) {
	if len(c.structured) == 0 {
		return nil, fmt.Errorf("unexpected structured call %s", fn.Name)
	}
	reply := c.structured[0]
	c.structured = c.structured[1:]
	return reply.fields, reply.err
}

type fakeClients struct {
	client llm.Client
	err    error
}

func (f *fakeClients) ClientFor(ctx context.Context, customerID string) (llm.Client, error) {
	return f.client, f.err
}

type fakeSchema struct {
	snapshot *types.Snapshot
}

func (f *fakeSchema) Current() *types.Snapshot { return f.snapshot }

func (f *fakeSchema) CurrentSamples() map[string][]types.Row { return nil }

// scriptedExecutor plays back queued results and records every executed
// query.
type scriptedExecutor struct {
	results []executorReply
	queries []string
}

type executorReply struct {
	rows []types.Row
	err  error
}

func (e *scriptedExecutor) Execute(ctx context.Context, query string) ([]types.Row, error) {
	e.queries = append(e.queries, query)
	if len(e.results) == 0 {
		return nil, errors.New("unexpected execute call")
	}
	reply := e.results[0]
	e.results = e.results[1:]
	return reply.rows, reply.err
}

func newTestOrchestrator(t *testing.T, client llm.Client, clientErr error, executor Executor) *Orchestrator {
	t.Helper()
	resolver := testResolver(t)
	models := []string{"test-model"}
	validator := NewValidator()
	return NewOrchestrator(
		&fakeClients{client: client, err: clientErr},
		&fakeSchema{snapshot: testSnapshot("users", "orders")},
		NewGenerator(resolver, models, nil),
		NewFixer(nil),
		validator,
		NewDebugger(resolver, validator, models, nil),
		executor,
		NewSummarizer(resolver, models, 10, nil),
		nil,
	)
}

func TestAskSuccess(t *testing.T) {
	client := &scriptedClient{
		structured: []structuredReply{
			{fields: map[string]any{"query": "SELECT id, name FROM users"}},
		},
		completeText: "There are two users.",
	}
	executor := &scriptedExecutor{results: []executorReply{
		{rows: []types.Row{{"id": int64(1), "name": "Ada"}, {"id": int64(2), "name": "Grace"}}},
	}}
	o := newTestOrchestrator(t, client, nil, executor)

	result := o.Ask(context.Background(), "who are the users?", "")

	require.True(t, result.Success)
	assert.Nil(t, result.Error)
	assert.Equal(t, "SELECT id, name FROM users", result.Query)
	assert.Len(t, result.Data, 2)
	require.NotNil(t, result.RecordCount)
	assert.Equal(t, 2, *result.RecordCount)
	assert.False(t, result.WasDebugged)
	assert.Empty(t, result.OriginalQuery)
	// Narrative and preview table arrive in the single summary field.
	assert.True(t, strings.HasPrefix(result.Summary, "There are two users."), "got: %s", result.Summary)
	assert.Contains(t, result.Summary, "Here are all 2 results:")
	assert.Empty(t, result.Message)
}

func TestAskEmptyQuestion(t *testing.T) {
	o := newTestOrchestrator(t, &scriptedClient{}, nil, &scriptedExecutor{})

	result := o.Ask(context.Background(), "   ", "")

	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, KindGeneralError, result.Error.Type)
	assert.Equal(t, "Please provide a question to ask.", result.Error.Message)
}

func TestAskNoCredential(t *testing.T) {
	o := newTestOrchestrator(t, nil, llm.ErrNoCredential, &scriptedExecutor{})

	result := o.Ask(context.Background(), "who?", "acme")

	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, KindConfigurationError, result.Error.Type)
	assert.True(t, result.Mock)
}

func TestAskGenerationRefusal(t *testing.T) {
	client := &scriptedClient{
		structured: []structuredReply{
			{fields: map[string]any{"query": "", "error": "question is not about the database"}},
		},
	}
	executor := &scriptedExecutor{}
	o := newTestOrchestrator(t, client, nil, executor)

	result := o.Ask(context.Background(), "what is the weather?", "")

	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, KindGenerationFailed, result.Error.Type)
	assert.Equal(t, "question is not about the database", result.Error.Message)
	assert.Empty(t, executor.queries)
}

func TestAskValidationFailureRepaired(t *testing.T) {
	client := &scriptedClient{
		structured: []structuredReply{
			{fields: map[string]any{"query": "DELETE FROM users"}},
			{fields: map[string]any{"fixed_query": "SELECT * FROM users", "explanation": "rewrote as a read"}},
		},
		completeText: "One user.",
	}
	executor := &scriptedExecutor{results: []executorReply{
		{rows: []types.Row{{"id": int64(1)}}},
	}}
	o := newTestOrchestrator(t, client, nil, executor)

	result := o.Ask(context.Background(), "remove the users", "")

	require.True(t, result.Success)
	assert.True(t, result.WasDebugged)
	assert.Equal(t, "DELETE FROM users", result.OriginalQuery)
	assert.Equal(t, "SELECT * FROM users", result.Query)
	// The rejected statement never reached the executor.
	assert.Equal(t, []string{"SELECT * FROM users"}, executor.queries)
}

func TestAskValidationFailureRepairRefused(t *testing.T) {
	client := &scriptedClient{
		structured: []structuredReply{
			{fields: map[string]any{"query": "DROP TABLE users"}},
			{fields: map[string]any{"error": "cannot express this as a read-only query"}},
		},
	}
	executor := &scriptedExecutor{}
	o := newTestOrchestrator(t, client, nil, executor)

	result := o.Ask(context.Background(), "drop the users table", "")

	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, KindValidationFailed, result.Error.Type)
	assert.Contains(t, result.Error.Message, "SQL validation failed: ")
	assert.Empty(t, executor.queries)
}

func TestAskRepairedQueryMustRevalidate(t *testing.T) {
	// The repair comes back as another write; it is rejected without a
	// second repair round.
	client := &scriptedClient{
		structured: []structuredReply{
			{fields: map[string]any{"query": "DELETE FROM users"}},
			{fields: map[string]any{"fixed_query": "TRUNCATE users", "explanation": "faster"}},
		},
	}
	executor := &scriptedExecutor{}
	o := newTestOrchestrator(t, client, nil, executor)

	result := o.Ask(context.Background(), "clear the users", "")

	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, KindValidationFailed, result.Error.Type)
	assert.Empty(t, executor.queries)
	assert.Empty(t, client.structured, "repair should be attempted exactly once")
}

func TestAskExecutionFailureRepaired(t *testing.T) {
	client := &scriptedClient{
		structured: []structuredReply{
			{fields: map[string]any{"query": "SELECT nam FROM users"}},
			{fields: map[string]any{"fixed_query": "SELECT name FROM users", "explanation": "column was misspelled"}},
		},
		completeText: "One user named Ada.",
	}
	executor := &scriptedExecutor{results: []executorReply{
		{err: errors.New(`column "nam" does not exist`)},
		{rows: []types.Row{{"name": "Ada"}}},
	}}
	o := newTestOrchestrator(t, client, nil, executor)

	result := o.Ask(context.Background(), "user names", "")

	require.True(t, result.Success)
	assert.True(t, result.WasDebugged)
	assert.Equal(t, "SELECT nam FROM users", result.OriginalQuery)
	assert.Equal(t, "SELECT name FROM users", result.Query)
	assert.Equal(t, []string{"SELECT nam FROM users", "SELECT name FROM users"}, executor.queries)
}

func TestAskExecutionFailureRepairStillFails(t *testing.T) {
	client := &scriptedClient{
		structured: []structuredReply{
			{fields: map[string]any{"query": "SELECT nam FROM users"}},
			{fields: map[string]any{"fixed_query": "SELECT nme FROM users", "explanation": "guess"}},
		},
	}
	executor := &scriptedExecutor{results: []executorReply{
		{err: errors.New(`column "nam" does not exist`)},
		{err: errors.New(`column "nme" does not exist`)},
	}}
	o := newTestOrchestrator(t, client, nil, executor)

	result := o.Ask(context.Background(), "user names", "")

	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, KindExecutionError, result.Error.Type)
	assert.Contains(t, result.Error.Message, `column "nme" does not exist`)
	// One original run, one re-run after repair, nothing more.
	assert.Len(t, executor.queries, 2)
}

func TestAskExecutionFailureRepairRefused(t *testing.T) {
	// The repair declines; the envelope carries the original driver error.
	client := &scriptedClient{
		structured: []structuredReply{
			{fields: map[string]any{"query": "SELECT nam FROM users"}},
			{fields: map[string]any{"error": "cannot determine the right column"}},
		},
	}
	executor := &scriptedExecutor{results: []executorReply{
		{err: errors.New(`column "nam" does not exist`)},
	}}
	o := newTestOrchestrator(t, client, nil, executor)

	result := o.Ask(context.Background(), "user names", "")

	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, KindExecutionError, result.Error.Type)
	assert.Contains(t, result.Error.Message, `column "nam" does not exist`)
	assert.Len(t, executor.queries, 1)
}

func TestAskEmptyResults(t *testing.T) {
	client := &scriptedClient{
		structured: []structuredReply{
			{fields: map[string]any{"query": "SELECT * FROM users WHERE id = 999"}},
		},
	}
	executor := &scriptedExecutor{results: []executorReply{
		{rows: []types.Row{}},
	}}
	o := newTestOrchestrator(t, client, nil, executor)

	result := o.Ask(context.Background(), "find user 999", "")

	require.True(t, result.Success)
	assert.Equal(t, "Query executed successfully but returned no results.", result.Message)
	assert.Equal(t, "No data was found for your query.", result.Summary)
	assert.NotNil(t, result.Data)
	assert.Empty(t, result.Data)
	// No summarization call happens for an empty result set.
	assert.Empty(t, client.completeCalls)
}

func TestAskHeuristicFixBeforeExecution(t *testing.T) {
	// A misspelled table name is corrected without any repair call.
	client := &scriptedClient{
		structured: []structuredReply{
			{fields: map[string]any{"query": "SELECT name FROM usrs"}},
		},
		completeText: "One user.",
	}
	executor := &scriptedExecutor{results: []executorReply{
		{rows: []types.Row{{"name": "Ada"}}},
	}}
	o := newTestOrchestrator(t, client, nil, executor)

	result := o.Ask(context.Background(), "user names", "")

	require.True(t, result.Success)
	assert.False(t, result.WasDebugged)
	assert.Equal(t, []string{"SELECT name FROM users"}, executor.queries)
}

func TestAskGenerationTransportError(t *testing.T) {
	client := &scriptedClient{
		structured: []structuredReply{
			{err: errors.New("connection reset")},
		},
	}
	o := newTestOrchestrator(t, client, nil, &scriptedExecutor{})

	result := o.Ask(context.Background(), "who?", "")

	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, KindGenerationFailed, result.Error.Type)
}
