package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  type: sqlite
  file: test.db
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultProvider, cfg.LLM.Provider)
	assert.Equal(t, DefaultModel, cfg.LLM.Model)
	assert.Equal(t, DefaultFallbackModel, cfg.LLM.FallbackModel)
	assert.Equal(t, DefaultSummaryRows, cfg.Summary.MaxRows)
	assert.Equal(t, DefaultSampleRows, cfg.Schema.SampleRows)
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DB_URL", "postgres://u:p@localhost/db")
	path := writeConfig(t, `
database:
  type: postgres
  connection_string: ${TEST_DB_URL}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	connStr, err := cfg.Database.GetConnectionString()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/db", connStr)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestModelsOrder(t *testing.T) {
	l := LLMConfig{Model: "gpt-4o", FallbackModel: "gpt-4"}
	assert.Equal(t, []string{"gpt-4o", "gpt-4"}, l.Models())
}

func TestModelsDeduplicates(t *testing.T) {
	l := LLMConfig{Model: "gpt-4o", FallbackModel: "gpt-4o"}
	assert.Equal(t, []string{"gpt-4o"}, l.Models())
}

func TestGetConnectionString(t *testing.T) {
	pg := DatabaseConfig{DBType: "postgres", ConnectionString: "postgres://localhost/db"}
	got, err := pg.GetConnectionString()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/db", got)

	missing := DatabaseConfig{DBType: "mysql"}
	_, err = missing.GetConnectionString()
	assert.Error(t, err)

	sqlite := DatabaseConfig{DBType: "sqlite"}
	got, err = sqlite.GetConnectionString()
	require.NoError(t, err)
	assert.Equal(t, "database.db", got)

	unknown := DatabaseConfig{DBType: "oracle"}
	_, err = unknown.GetConnectionString()
	assert.Error(t, err)
}
