package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultProvider      = "openai"
	DefaultModel         = "gpt-4o"
	DefaultFallbackModel = "gpt-4"
	DefaultSummaryRows   = 10
	DefaultSampleRows    = 3
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Prompts  PromptsConfig  `yaml:"prompts"`
	Summary  SummaryConfig  `yaml:"summary"`
	Schema   SchemaConfig   `yaml:"schema"`
}

type DatabaseConfig struct {
	DBType           string `yaml:"type"`
	ConnectionString string `yaml:"connection_string,omitempty"`
	File             string `yaml:"file,omitempty"`
}

type LLMConfig struct {
	Provider      string `yaml:"provider"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	FallbackModel string `yaml:"fallback_model"`
}

type PromptsConfig struct {
	// File points at the prompt/credential store. Optional; built-in
	// defaults apply when unset or unreadable.
	File string `yaml:"file,omitempty"`
}

type SummaryConfig struct {
	MaxRows int `yaml:"max_rows"`
}

type SchemaConfig struct {
	SampleRows int `yaml:"sample_rows"`
}

// LoadConfig reads the YAML config, expanding ${VAR} references from the
// environment so secrets stay out of the file. A .env file next to the
// process is loaded first when present.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Best effort; a missing .env just means the environment is already set.
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = DefaultProvider
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
	if c.LLM.FallbackModel == "" {
		c.LLM.FallbackModel = DefaultFallbackModel
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Summary.MaxRows <= 0 {
		c.Summary.MaxRows = DefaultSummaryRows
	}
	if c.Schema.SampleRows <= 0 {
		c.Schema.SampleRows = DefaultSampleRows
	}
}

// Models returns the ordered list of model identifiers tried for every
// completion call: the configured model first, then the fallback.
func (l LLMConfig) Models() []string {
	models := []string{l.Model}
	if l.FallbackModel != "" && l.FallbackModel != l.Model {
		models = append(models, l.FallbackModel)
	}
	return models
}

func (d *DatabaseConfig) GetConnectionString() (string, error) {
	switch d.DBType {
	case "postgres", "mysql":
		if d.ConnectionString == "" {
			return "", fmt.Errorf("connection string is required for %s connection", d.DBType)
		}

		return d.ConnectionString, nil

	case "sqlite":
		if d.File == "" {
			d.File = "database.db"
		}
		return d.File, nil

	default:
		return "", fmt.Errorf("unsupported database type: %s", d.DBType)
	}
}
