// pkg/registry/schema.go
package registry

// ModelRegistry is the catalog of chat models the analysis may target.
type ModelRegistry struct {
	Version     string  `json:"version"`
	LastUpdated string  `json:"lastUpdated"`
	Default     string  `json:"default"`
	Models      []Model `json:"models"`
}

type Model struct {
	ID             string   `json:"id"`
	DisplayName    string   `json:"displayName"`
	Provider       string   `json:"provider"`
	SupportsVision bool     `json:"supportsVision"`
	MaxTokens      int      `json:"maxTokens"`
	Tags           []string `json:"tags,omitempty"`
}
