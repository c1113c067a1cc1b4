package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/askdb/askdb/jsonutil"
	"github.com/askdb/askdb/llm"
	"github.com/askdb/askdb/prompts"
	"github.com/askdb/askdb/types"
)

// Debugger asks the model to repair a SQL statement that failed
// validation or execution. Every repaired statement is re-validated
// before it is accepted; a repair that fails the safety gate is a
// repair failure, not a weaker success.
type Debugger struct {
	resolver  *prompts.Resolver
	validator *Validator
	models    []string
	logger    *zap.Logger
}

func NewDebugger(resolver *prompts.Resolver, validator *Validator, models []string, logger *zap.Logger) *Debugger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debugger{resolver: resolver, validator: validator, models: models, logger: logger}
}

var repairFunction = llm.FunctionSpec{
	Name:        "fix_sql_query",
	Description: "Fix an invalid or failing SQL query",
	Properties: map[string]llm.Property{
		"fixed_query": {Type: "string", Description: "The corrected SQL query"},
		"explanation": {Type: "string", Description: "What was wrong and how it was fixed"},
		"error":       {Type: "string", Description: "Error message if the query cannot be fixed"},
	},
	Required: []string{"fixed_query", "explanation"},
}

func (d *Debugger) Repair(ctx context.Context, client llm.Client, scope Scope, query string, snapshot *types.Snapshot, errorMessage string) (string, error) {
	system := d.resolver.Resolve(prompts.RoleDebug, scope.CustomerID)
	system = strings.ReplaceAll(system, "{schema}", jsonutil.MarshalIndent(snapshot.Tables))
	system = strings.ReplaceAll(system, "{error}", errorMessage)

	user := "Fix this SQL query: " + query

	fields, err := completeWithFallback(ctx, client, d.models, d.logger, func(model string) (map[string]any, error) {
		return client.CompleteStructured(ctx, model, system, user, repairFunction)
	})
	if err != nil {
		return "", fmt.Errorf("failed to repair SQL query: %w", err)
	}

	if errText, _ := fields["error"].(string); strings.TrimSpace(errText) != "" {
		return "", errors.New(errText)
	}

	fixed, _ := fields["fixed_query"].(string)
	if strings.TrimSpace(fixed) == "" {
		return "", errors.New("repaired SQL query is empty")
	}

	if verdict := d.validator.Validate(fixed); !verdict.Valid {
		d.logger.Warn("repaired query rejected by validation",
			zap.String("query", fixed),
			zap.String("reason", verdict.Reason))
		return "", errors.New(verdict.Reason)
	}

	explanation, _ := fields["explanation"].(string)
	d.logger.Info("repaired SQL query",
		zap.String("original", query),
		zap.String("fixed", fixed),
		zap.String("explanation", explanation))
	return fixed, nil
}
