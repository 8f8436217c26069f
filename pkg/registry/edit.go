// pkg/registry/edit.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Validate checks the catalog for empty or duplicate IDs and a dangling default.
func (r *ModelRegistry) Validate() error {
	if len(r.Models) == 0 {
		return fmt.Errorf("registry contains no models")
	}

	ids := make(map[string]bool, len(r.Models))
	for _, m := range r.Models {
		if m.ID == "" {
			return fmt.Errorf("model missing required field: id")
		}
		if ids[m.ID] {
			return fmt.Errorf("duplicate model ID: %s", m.ID)
		}
		ids[m.ID] = true

		if m.MaxTokens < 0 {
			return fmt.Errorf("model %s: maxTokens must not be negative", m.ID)
		}
	}

	if r.Default != "" && !ids[r.Default] {
		return fmt.Errorf("default model %q is not listed", r.Default)
	}
	return nil
}

// Add appends m. IDs are unique.
func (r *ModelRegistry) Add(m Model) error {
	if m.ID == "" {
		return fmt.Errorf("model id is required")
	}
	if r.Has(m.ID) {
		return fmt.Errorf("model with ID %s already exists", m.ID)
	}
	r.Models = append(r.Models, m)
	r.touch()
	return nil
}

// Update sets a single field of the model identified by id.
func (r *ModelRegistry) Update(id, field, value string) error {
	idx := -1
	for i := range r.Models {
		if r.Models[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("model with ID %s not found", id)
	}

	m := &r.Models[idx]
	switch field {
	case "displayName":
		m.DisplayName = value
	case "provider":
		m.Provider = value
	case "supportsVision":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid supportsVision value: %w", err)
		}
		m.SupportsVision = v
	case "maxTokens":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid maxTokens value: %w", err)
		}
		m.MaxTokens = v
	case "default":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid default value: %w", err)
		}
		if v {
			r.Default = id
		} else if r.Default == id {
			r.Default = ""
		}
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	r.touch()
	return nil
}

// Save writes the catalog as indented JSON, creating parent directories.
func (r *ModelRegistry) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func (r *ModelRegistry) touch() {
	r.LastUpdated = time.Now().UTC().Format(time.RFC3339)
}
