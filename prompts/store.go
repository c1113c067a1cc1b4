package prompts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store is the prompt/credential collaborator: a role-keyed, optionally
// customer-scoped text store loaded from a YAML file. It is immutable
// after load; nothing in the pipeline writes back to it.
type Store struct {
	prompts   map[string]string
	customers map[string]customerEntry
}

type customerEntry struct {
	APIKey  string            `yaml:"api_key"`
	Prompts map[string]string `yaml:"prompts"`
}

type storeFile struct {
	Prompts   map[string]string        `yaml:"prompts"`
	Customers map[string]customerEntry `yaml:"customers"`
}

// LoadStore reads the store file. An empty path yields an empty store so
// callers can always hold a non-nil *Store.
func LoadStore(path string) (*Store, error) {
	store := &Store{
		prompts:   map[string]string{},
		customers: map[string]customerEntry{},
	}
	if path == "" {
		return store, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt store: %w", err)
	}

	var file storeFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return nil, fmt.Errorf("failed to parse prompt store: %w", err)
	}

	if file.Prompts != nil {
		store.prompts = file.Prompts
	}
	if file.Customers != nil {
		store.customers = file.Customers
	}
	return store, nil
}

// Prompt looks up a prompt id, preferring the customer override.
func (s *Store) Prompt(id, customerID string) (string, bool) {
	if customerID != "" {
		if entry, ok := s.customers[customerID]; ok {
			if text, ok := entry.Prompts[id]; ok && strings.TrimSpace(text) != "" {
				return text, true
			}
		}
	}
	if text, ok := s.prompts[id]; ok && strings.TrimSpace(text) != "" {
		return text, true
	}
	return "", false
}

// APIKey returns the customer-scoped upstream credential, if any.
func (s *Store) APIKey(customerID string) (string, bool) {
	entry, ok := s.customers[customerID]
	if !ok {
		return "", false
	}
	key := strings.TrimSpace(entry.APIKey)
	return key, key != ""
}
