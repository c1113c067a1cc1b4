package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAITimeout = 60 * time.Second
	maxOpenAIRetries     = 3
)

// OpenAIClient talks to the OpenAI chat-completions API. Structured calls
// use tool definitions with a forced tool choice so the model must answer
// through the declared shape.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewOpenAIClient(apiKey string, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: defaultOpenAIBaseURL,
		httpClient: &http.Client{
			Timeout: defaultOpenAITimeout,
		},
		logger: logger,
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIToolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type openAIRequest struct {
	Model       string            `json:"model"`
	Messages    []openAIMessage   `json:"messages"`
	Temperature float64           `json:"temperature"`
	Tools       []openAITool      `json:"tools,omitempty"`
	ToolChoice  *openAIToolChoice `json:"tool_choice,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *OpenAIClient) Complete(ctx context.Context, model, system, user string) (string, error) {
	resp, err := c.send(ctx, openAIRequest{
		Model:       model,
		Messages:    buildMessages(system, user),
		Temperature: 0.1,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) CompleteStructured(ctx context.Context, model, system, user string, fn FunctionSpec) (map[string]any, error) {
	choice := &openAIToolChoice{Type: "function"}
	choice.Function.Name = fn.Name

	resp, err := c.send(ctx, openAIRequest{
		Model:       model,
		Messages:    buildMessages(system, user),
		Temperature: 0.1,
		Tools: []openAITool{{
			Type: "function",
			Function: openAIFunction{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  fn.parametersSchema(),
			},
		}},
		ToolChoice: choice,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no completion choices returned")
	}
	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) == 0 || calls[0].Function.Name != fn.Name {
		return nil, fmt.Errorf("no %s function call in response", fn.Name)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(calls[0].Function.Arguments), &fields); err != nil {
		return nil, fmt.Errorf("failed to decode function arguments: %w", err)
	}
	return fields, nil
}

func (c *OpenAIClient) send(ctx context.Context, reqBody openAIRequest) (*openAIResponse, error) {
	if c.apiKey == "" {
		return nil, ErrNoCredential
	}

	// Bound the call when the caller supplied no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxOpenAIRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		// Retry rate limits and upstream hiccups; surface everything else.
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
			c.logger.Warn("completion call retried",
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1))
			continue
		}

		var parsed openAIResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		if parsed.Error != nil {
			return nil, fmt.Errorf("API error (%s): %s", parsed.Error.Type, parsed.Error.Message)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
		}
		return &parsed, nil
	}

	return nil, fmt.Errorf("completion call failed after %d attempts: %w", maxOpenAIRetries+1, lastErr)
}

func buildMessages(system, user string) []openAIMessage {
	messages := make([]openAIMessage, 0, 2)
	if system != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: system})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: user})
	return messages
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
