package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storeYAML = `
prompts:
  sql_system_message: "global generation prompt {schema} {samples}"

customers:
  acme:
    api_key: sk-acme-123
    prompts:
      sql_system_message: "acme generation prompt {schema} {samples}"
  empty-key:
    api_key: "   "
`

func writeStore(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadStoreEmptyPath(t *testing.T) {
	store, err := LoadStore("")
	require.NoError(t, err)

	_, ok := store.Prompt(RoleGeneration, "")
	assert.False(t, ok)
	_, ok = store.APIKey("acme")
	assert.False(t, ok)
}

func TestLoadStoreMissingFile(t *testing.T) {
	_, err := LoadStore(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestStoreCustomerOverrideWins(t *testing.T) {
	store, err := LoadStore(writeStore(t, storeYAML))
	require.NoError(t, err)

	text, ok := store.Prompt(RoleGeneration, "acme")
	require.True(t, ok)
	assert.Contains(t, text, "acme generation prompt")

	text, ok = store.Prompt(RoleGeneration, "other")
	require.True(t, ok)
	assert.Contains(t, text, "global generation prompt")
}

func TestStoreAPIKey(t *testing.T) {
	store, err := LoadStore(writeStore(t, storeYAML))
	require.NoError(t, err)

	key, ok := store.APIKey("acme")
	require.True(t, ok)
	assert.Equal(t, "sk-acme-123", key)

	_, ok = store.APIKey("unknown")
	assert.False(t, ok)

	// A whitespace-only key counts as absent.
	_, ok = store.APIKey("empty-key")
	assert.False(t, ok)
}

func TestResolveFallsBackToDefaults(t *testing.T) {
	store, err := LoadStore(writeStore(t, storeYAML))
	require.NoError(t, err)
	r := NewResolver(store, nil)

	// Debug role is not in the store at all.
	assert.Equal(t, DefaultDebugPrompt, r.Resolve(RoleDebug, "acme"))
	assert.Equal(t, DefaultSummaryPrompt, r.Resolve(RoleSummary, ""))
}

func TestResolveUnknownRole(t *testing.T) {
	r := NewResolver(nil, nil)
	assert.Equal(t, DefaultGenerationPrompt, r.Resolve("no_such_role", ""))
}

func TestDefaultPromptPlaceholders(t *testing.T) {
	assert.Contains(t, DefaultGenerationPrompt, "{schema}")
	assert.Contains(t, DefaultGenerationPrompt, "{samples}")
	assert.Contains(t, DefaultDebugPrompt, "{schema}")
	assert.Contains(t, DefaultDebugPrompt, "{error}")
}
