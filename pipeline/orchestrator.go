package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askdb/askdb/llm"
	"github.com/askdb/askdb/types"
)

// Scope identifies one request. CustomerID selects prompt overrides and
// credentials; RequestID tags log lines.
type Scope struct {
	CustomerID string
	RequestID  string
}

// ClientSource resolves the completion client for a scope.
type ClientSource interface {
	ClientFor(ctx context.Context, customerID string) (llm.Client, error)
}

// SchemaSource supplies the current schema snapshot and table samples.
type SchemaSource interface {
	Current() *types.Snapshot
	CurrentSamples() map[string][]types.Row
}

// Orchestrator drives a question through generation, heuristic fixes,
// validation, execution and summarization. Each of the validation and
// execution stages gets at most one model-driven repair.
type Orchestrator struct {
	clients    ClientSource
	schema     SchemaSource
	generator  *Generator
	fixer      *Fixer
	validator  *Validator
	debugger   *Debugger
	executor   Executor
	summarizer *Summarizer
	logger     *zap.Logger
}

func NewOrchestrator(
	clients ClientSource,
	schema SchemaSource,
	generator *Generator,
	fixer *Fixer,
	validator *Validator,
	debugger *Debugger,
	executor Executor,
	summarizer *Summarizer,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		clients:    clients,
		schema:     schema,
		generator:  generator,
		fixer:      fixer,
		validator:  validator,
		debugger:   debugger,
		executor:   executor,
		summarizer: summarizer,
		logger:     logger,
	}
}

// Ask answers a natural-language question against the database. It
// always returns a well-formed result; failures are encoded in the
// envelope, never panicked or returned as a bare error.
func (o *Orchestrator) Ask(ctx context.Context, question, customerID string) (result *types.PipelineResult) {
	scope := Scope{CustomerID: customerID, RequestID: uuid.NewString()}
	logger := o.logger.With(
		zap.String("request_id", scope.RequestID),
		zap.String("customer_id", scope.CustomerID),
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panicked", zap.Any("panic", r))
			result = FailureResult(KindGeneralError, "")
		}
	}()

	if strings.TrimSpace(question) == "" {
		return FailureResult(KindGeneralError, "Please provide a question to ask.")
	}

	client, err := o.clients.ClientFor(ctx, scope.CustomerID)
	if err != nil {
		logger.Error("no completion client available", zap.Error(err))
		if errors.Is(err, llm.ErrNoCredential) {
			return FailureResult(KindConfigurationError, "")
		}
		return FailureResult(KindGeneralError, "")
	}

	snapshot := o.schema.Current()
	samples := o.schema.CurrentSamples()

	query, err := o.generator.Generate(ctx, client, scope, question, snapshot, samples)
	if err != nil {
		logger.Warn("generation failed", zap.Error(err))
		return FailureResult(KindGenerationFailed, err.Error())
	}

	query, _ = o.fixer.Fix(query, snapshot)

	originalQuery := ""
	wasDebugged := false

	// One repair attempt when validation rejects the statement.
	if verdict := o.validator.Validate(query); !verdict.Valid {
		logger.Warn("validation rejected query",
			zap.String("query", query),
			zap.String("reason", verdict.Reason))

		fixed, repairErr := o.debugger.Repair(ctx, client, scope, query, snapshot, verdict.Reason)
		if repairErr != nil {
			logger.Warn("repair after validation failed", zap.Error(repairErr))
			return FailureResult(KindValidationFailed, "SQL validation failed: "+verdict.Reason)
		}
		originalQuery = query
		wasDebugged = true
		query = fixed
	}

	rows, err := o.executor.Execute(ctx, query)
	if err != nil {
		// One repair attempt when execution fails, then one re-run.
		fixed, repairErr := o.debugger.Repair(ctx, client, scope, query, snapshot, err.Error())
		if repairErr != nil {
			logger.Warn("repair after execution failure failed", zap.Error(repairErr))
			return FailureResult(KindExecutionError, err.Error())
		}
		if !wasDebugged {
			originalQuery = query
		}
		wasDebugged = true
		query = fixed

		rows, err = o.executor.Execute(ctx, query)
		if err != nil {
			logger.Warn("repaired query still failing", zap.Error(err))
			return FailureResult(KindExecutionError, err.Error())
		}
	}

	if len(rows) == 0 {
		return EmptyResult(query)
	}

	summary := o.summarizer.Summarize(ctx, client, scope, question, query, rows)

	res := SuccessResult(query, rows, summary)
	res.WasDebugged = wasDebugged
	res.OriginalQuery = originalQuery
	logger.Info("question answered",
		zap.Int("rows", len(rows)),
		zap.Bool("was_debugged", wasDebugged))
	return res
}
