package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiClient issues calls through the Google GenAI SDK. Structured calls
// rely on JSON response schemas instead of tool forcing; the declared
// shape maps onto a genai.Schema.
type GeminiClient struct {
	client *genai.Client
	logger *zap.Logger
}

func NewGeminiClient(ctx context.Context, apiKey string, logger *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, ErrNoCredential
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{client: client, logger: logger}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, model, system, user string) (string, error) {
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	result, err := c.client.Models.GenerateContent(ctx, model, genai.Text(user), config)
	if err != nil {
		return "", fmt.Errorf("GenAI completion failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("empty completion returned")
	}
	return text, nil
}

func (c *GeminiClient) CompleteStructured(ctx context.Context, model, system, user string, fn FunctionSpec) (map[string]any, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   buildGenAISchema(fn),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	result, err := c.client.Models.GenerateContent(ctx, model, genai.Text(user), config)
	if err != nil {
		return nil, fmt.Errorf("GenAI completion failed: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(result.Text()), &fields); err != nil {
		return nil, fmt.Errorf("failed to decode structured response: %w", err)
	}
	return fields, nil
}

func buildGenAISchema(fn FunctionSpec) *genai.Schema {
	properties := make(map[string]*genai.Schema, len(fn.Properties))
	for name, prop := range fn.Properties {
		properties[name] = &genai.Schema{
			Type:        genai.TypeString,
			Description: prop.Description,
		}
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: properties,
		Required:   fn.Required,
	}
}
