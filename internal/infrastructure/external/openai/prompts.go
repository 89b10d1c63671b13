package openai

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompt is one system prompt plus the user message sent with the image.
type Prompt struct {
	System       string `yaml:"system"`
	UserTemplate string `yaml:"user_template"`
}

// PromptConfig holds the extraction prompts
type PromptConfig struct {
	Invoice           Prompt `yaml:"invoice"`
	Classifier        Prompt `yaml:"classifier"`
	DiningApplication Prompt `yaml:"dining_application"`
}

// PromptData is the data available to user templates.
type PromptData struct {
	FileName string
	Provider string
	Model    string
}

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() *PromptConfig {
	prompts, err := parsePrompts(defaultPrompts)
	if err != nil {
		panic(fmt.Sprintf("openai: invalid embedded prompts: %v", err))
	}
	return prompts
}

// LoadPrompts loads prompt configuration from a YAML file. Prompts missing
// from the file keep their built-in text.
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	prompts := DefaultPrompts()
	if err := yaml.Unmarshal(data, prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	if err := prompts.validate(); err != nil {
		return nil, err
	}
	return prompts, nil
}

func parsePrompts(data []byte) (*PromptConfig, error) {
	var prompts PromptConfig
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	if err := prompts.validate(); err != nil {
		return nil, err
	}
	return &prompts, nil
}

func (c *PromptConfig) validate() error {
	for name, p := range map[string]Prompt{
		"invoice":            c.Invoice,
		"classifier":         c.Classifier,
		"dining_application": c.DiningApplication,
	} {
		if p.System == "" {
			return fmt.Errorf("prompt %s: system prompt is empty", name)
		}
		if _, err := template.New(name).Parse(p.UserTemplate); err != nil {
			return fmt.Errorf("prompt %s: %w", name, err)
		}
	}
	return nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data any) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
