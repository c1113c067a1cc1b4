// Package llm wraps the completion-call collaborators. Both providers
// support the same two modes: a plain completion and a structured
// "function result" completion where the caller supplies a named output
// shape and gets back exactly one populated instance of it.
package llm

import (
	"context"
	"errors"
)

// ErrNoCredential is returned when neither a customer-scoped nor a global
// API key is available. Fatal for the request; never retried.
var ErrNoCredential = errors.New("no usable LLM credential configured")

// Property describes one field of a structured output shape.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// FunctionSpec names a structured output shape: field names, types and the
// required subset. Used identically for generation and repair calls.
type FunctionSpec struct {
	Name        string
	Description string
	Properties  map[string]Property
	Required    []string
}

// Client issues completion calls against one provider with one credential.
// Implementations are safe for concurrent use.
type Client interface {
	// Complete sends a system/user prompt pair and returns the raw text.
	Complete(ctx context.Context, model, system, user string) (string, error)
	// CompleteStructured forces the response into the given shape and
	// returns the populated fields.
	CompleteStructured(ctx context.Context, model, system, user string, fn FunctionSpec) (map[string]any, error)
}

// parametersSchema renders the function shape as a JSON-schema object, the
// form both providers consume.
func (fn FunctionSpec) parametersSchema() map[string]any {
	properties := make(map[string]any, len(fn.Properties))
	for name, prop := range fn.Properties {
		properties[name] = map[string]any{
			"type":        prop.Type,
			"description": prop.Description,
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   fn.Required,
	}
}
