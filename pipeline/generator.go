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

// sampleClipBytes bounds how much sample JSON per table goes into the
// generation prompt.
const sampleClipBytes = 500

// Generator turns a natural-language question into a candidate SQL
// statement through one structured completion call. Models are tried in
// the configured order; the first call that comes back wins.
type Generator struct {
	resolver *prompts.Resolver
	models   []string
	logger   *zap.Logger
}

func NewGenerator(resolver *prompts.Resolver, models []string, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{resolver: resolver, models: models, logger: logger}
}

var generateFunction = llm.FunctionSpec{
	Name:        "generate_sql_query",
	Description: "Generate a SQL query from natural language",
	Properties: map[string]llm.Property{
		"query": {Type: "string", Description: "The SQL query to execute"},
		"error": {Type: "string", Description: "Error message if unable to generate a valid query"},
	},
	Required: []string{"query"},
}

func (g *Generator) Generate(ctx context.Context, client llm.Client, scope Scope, question string, snapshot *types.Snapshot, samples map[string][]types.Row) (string, error) {
	system := g.buildSystemPrompt(scope, snapshot, samples)

	fields, err := completeWithFallback(ctx, client, g.models, g.logger, func(model string) (map[string]any, error) {
		return client.CompleteStructured(ctx, model, system, question, generateFunction)
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate SQL query: %w", err)
	}

	if errText, _ := fields["error"].(string); strings.TrimSpace(errText) != "" {
		// The model's explicit refusal wins over any query it also returned.
		g.logger.Warn("generation declined", zap.String("error", errText))
		return "", errors.New(errText)
	}

	query, _ := fields["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "", errors.New("generated SQL query is empty")
	}

	g.logger.Info("generated SQL query", zap.String("query", query))
	return query, nil
}

func (g *Generator) buildSystemPrompt(scope Scope, snapshot *types.Snapshot, samples map[string][]types.Row) string {
	text := g.resolver.Resolve(prompts.RoleGeneration, scope.CustomerID)

	var samplesText strings.Builder
	if len(samples) > 0 {
		samplesText.WriteString("Here are some examples of the data:\n")
		for table, rows := range samples {
			samplesText.WriteString("\nTable: " + table + "\n")
			rendered := jsonutil.MarshalIndent(rows)
			if len(rendered) > sampleClipBytes {
				rendered = rendered[:sampleClipBytes]
			}
			samplesText.WriteString(rendered + "...\n")
		}
	}

	text = strings.ReplaceAll(text, "{schema}", jsonutil.MarshalIndent(snapshot.Tables))
	text = strings.ReplaceAll(text, "{samples}", samplesText.String())
	return text
}

// completeWithFallback tries each model in order and returns the first
// response. Only transport-level failures advance to the next model; a
// response that carries an error field is a real answer and is returned
// as-is.
func completeWithFallback(ctx context.Context, client llm.Client, models []string, logger *zap.Logger, call func(model string) (map[string]any, error)) (map[string]any, error) {
	if len(models) == 0 {
		return nil, errors.New("no models configured")
	}

	var lastErr error
	for _, model := range models {
		fields, err := call(model)
		if err == nil {
			return fields, nil
		}
		lastErr = err
		logger.Warn("completion call failed, trying next model",
			zap.String("model", model),
			zap.Error(err))
	}
	return nil, lastErr
}
