// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	GPT35Turbo      = "gpt-3.5-turbo-1106"
	GPT4Turbo       = "gpt-4-1106-preview"
	GPT4TurboVision = "gpt-4-vision-preview"
)

// Default returns the built-in catalog.
func Default() *ModelRegistry {
	return &ModelRegistry{
		Version: "1",
		Default: GPT4TurboVision,
		Models: []Model{
			{ID: GPT35Turbo, DisplayName: "GPT-3.5 Turbo", Provider: "openai", MaxTokens: 3000},
			{ID: GPT4Turbo, DisplayName: "GPT-4 Turbo", Provider: "openai", MaxTokens: 3000},
			{ID: GPT4TurboVision, DisplayName: "GPT-4 Turbo with Vision", Provider: "openai", SupportsVision: true, MaxTokens: 3000},
		},
	}
}

// LoadRegistry reads a catalog from a JSON file.
func LoadRegistry(path string) (*ModelRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ModelRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse model registry %s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("model registry %s: %w", path, err)
	}
	return &reg, nil
}

// LoadOrDefault loads path, or returns the built-in catalog when path is empty.
func LoadOrDefault(path string) (*ModelRegistry, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadRegistry(path)
}

func (r *ModelRegistry) Get(id string) (Model, bool) {
	for _, m := range r.Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

func (r *ModelRegistry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}
