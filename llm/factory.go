package llm

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// CredentialLookup resolves a customer-scoped API key. Returning false
// falls back to the globally configured key.
type CredentialLookup func(customerID string) (string, bool)

// Factory hands out clients for a request scope. The customer override is
// resolved per request, never stored on a shared client; clients are
// cached by credential so concurrent requests with the same key share one
// transport.
type Factory struct {
	provider  string
	globalKey string
	creds     CredentialLookup
	logger    *zap.Logger

	mu    sync.Mutex
	cache map[string]Client
}

func NewFactory(provider, globalKey string, creds CredentialLookup, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		provider:  provider,
		globalKey: globalKey,
		creds:     creds,
		logger:    logger,
		cache:     make(map[string]Client),
	}
}

// ClientFor resolves the credential for the given customer scope and
// returns a client bound to it. ErrNoCredential when nothing usable is
// configured.
func (f *Factory) ClientFor(ctx context.Context, customerID string) (Client, error) {
	key := f.globalKey
	if customerID != "" && f.creds != nil {
		if customerKey, ok := f.creds(customerID); ok {
			key = customerKey
			f.logger.Debug("using customer-scoped API key", zap.String("customer_id", customerID))
		}
	}
	if key == "" {
		return nil, ErrNoCredential
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if client, ok := f.cache[key]; ok {
		return client, nil
	}

	client, err := f.build(ctx, key)
	if err != nil {
		return nil, err
	}
	f.cache[key] = client
	return client, nil
}

func (f *Factory) build(ctx context.Context, key string) (Client, error) {
	switch f.provider {
	case ProviderOpenAI, "":
		return NewOpenAIClient(key, f.logger), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, key, f.logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", f.provider)
	}
}
