// cmd/tools/model-registry/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"usability-workers/pkg/registry"
)

const defaultPath = "configs/models.json"

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	addPath := addCmd.String("path", defaultPath, "Path to the model registry file")
	idAdd := addCmd.String("id", "", "Model ID as sent to the chat completions API (e.g., gpt-4-vision-preview)")
	displayName := addCmd.String("displayName", "", "Display name")
	provider := addCmd.String("provider", "openai", "Provider")
	vision := addCmd.Bool("vision", false, "Model accepts image input")
	maxTokens := addCmd.Int("maxTokens", 3000, "Completion token limit")
	tags := addCmd.String("tags", "", "Comma separated tags")
	makeDefault := addCmd.Bool("default", false, "Make this the default model")

	updatePath := updateCmd.String("path", defaultPath, "Path to the model registry file")
	idUpdate := updateCmd.String("id", "", "Model ID to update")
	field := updateCmd.String("field", "", "Field to update (displayName, provider, supportsVision, maxTokens, default)")
	value := updateCmd.String("value", "", "New value for the field")

	validatePath := validateCmd.String("path", defaultPath, "Path to the model registry file")
	listPath := listCmd.String("path", "", "Path to the model registry file (empty lists the built-in catalog)")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" {
			fmt.Println("Error: id is required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		m := registry.Model{
			ID:             *idAdd,
			DisplayName:    *displayName,
			Provider:       *provider,
			SupportsVision: *vision,
			MaxTokens:      *maxTokens,
			Tags:           splitTags(*tags),
		}
		if err := addModel(*addPath, m, *makeDefault); err != nil {
			fmt.Printf("Error adding model: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added model: %s\n", *idAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateModel(*updatePath, *idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating model: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated model %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*validatePath)
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d models.\n", len(reg.Models))

	case "list":
		listCmd.Parse(os.Args[2:])
		reg, err := registry.LoadOrDefault(*listPath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		printModels(reg)

	case "help":
		fallthrough
	default:
		help()
	}
}

// loadOrNew starts an empty catalog when path does not exist yet.
func loadOrNew(path string) (*registry.ModelRegistry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &registry.ModelRegistry{Version: "1"}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return &registry.ModelRegistry{Version: "1"}, nil
	}
	return registry.LoadRegistry(path)
}

func addModel(path string, m registry.Model, makeDefault bool) error {
	reg, err := loadOrNew(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Add(m); err != nil {
		return err
	}
	if makeDefault || reg.Default == "" {
		reg.Default = m.ID
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	return reg.Save(path)
}

func updateModel(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Update(id, field, value); err != nil {
		return err
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	return reg.Save(path)
}

func printModels(reg *registry.ModelRegistry) {
	for _, m := range reg.Models {
		marker := " "
		if m.ID == reg.Default {
			marker = "*"
		}
		vision := ""
		if m.SupportsVision {
			vision = " [vision]"
		}
		fmt.Printf("%s %-24s %-28s maxTokens=%d%s\n", marker, m.ID, m.DisplayName, m.MaxTokens, vision)
	}
}

func splitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func help() {
	fmt.Print(`
Usage: model-registry <command> [flags]

Commands:
  add      Add a chat model to the registry
  update   Update a field of an existing model
  validate Validate the registry file
  list     Print the catalog (* marks the default)
  help     Show this help message

Examples:
  model-registry add -id gpt-4-vision-preview -displayName "GPT-4 Turbo with Vision" -vision -default
  model-registry update -id gpt-4-1106-preview -field maxTokens -value 4096
  model-registry validate -path configs/models.json

Use 'model-registry <command> -h' for more information about a command.
` + "\n")
}
