package openai

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Prompt is one system message plus a user template rendered over the
// suggestion context
type Prompt struct {
	System       string `yaml:"system"`
	UserTemplate string `yaml:"user_template"`
}

// PromptConfig holds the prompts per suggestion kind
type PromptConfig struct {
	Justification Prompt `yaml:"justification"`
	ReviewNote    Prompt `yaml:"review_note"`
}

// DefaultPrompts returns the built-in prompts
func DefaultPrompts() *PromptConfig {
	return &PromptConfig{
		Justification: Prompt{
			System: "You help employees write short, factual justifications for internal requests. " +
				"Answer with two or three plain sentences and no greeting.",
			UserTemplate: `Request type: {{index . "service"}}
{{with index . "fields"}}Details:
{{.}}
{{end}}Write the justification.`,
		},
		ReviewNote: Prompt{
			System: "You help managers write brief, courteous review notes on employee requests. " +
				"Answer with one or two plain sentences.",
			UserTemplate: `Request type: {{index . "service"}}
Requester: {{index . "requester"}}
Status: {{index . "status"}}
{{with index . "fields"}}Details:
{{.}}
{{end}}{{with index . "last_note"}}Previous note: {{.}}
{{end}}Write the review note.`,
		},
	}
}

// LoadPrompts loads prompt configuration from a YAML file. Kinds missing
// from the file keep their defaults.
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	prompts := DefaultPrompts()
	if err := yaml.Unmarshal(data, prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	return prompts, nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Option("missingkey=zero").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
