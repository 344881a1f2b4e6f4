package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed highlight_styles.yaml
var defaultHighlightStyles []byte

// HighlightStyles holds the inline styles for highlight markers in each state.
type HighlightStyles struct {
	MarkerClass string `yaml:"marker_class"`
	Rest        string `yaml:"rest"`
	Hover       string `yaml:"hover"`
	Active      string `yaml:"active"`
}

// LoadHighlightStyles reads marker styles from path, falling back to the
// embedded defaults for an empty path or any field the file leaves blank.
func LoadHighlightStyles(path string) (*HighlightStyles, error) {
	styles, err := parseHighlightStyles(defaultHighlightStyles)
	if err != nil {
		return nil, fmt.Errorf("parse default highlight styles: %w", err)
	}
	if path == "" {
		return styles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read highlight styles: %w", err)
	}
	override, err := parseHighlightStyles(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if override.MarkerClass != "" {
		styles.MarkerClass = override.MarkerClass
	}
	if override.Rest != "" {
		styles.Rest = override.Rest
	}
	if override.Hover != "" {
		styles.Hover = override.Hover
	}
	if override.Active != "" {
		styles.Active = override.Active
	}
	return styles, nil
}

// DefaultHighlightStyles returns the embedded marker styles.
func DefaultHighlightStyles() *HighlightStyles {
	styles, err := parseHighlightStyles(defaultHighlightStyles)
	if err != nil {
		panic(fmt.Sprintf("embedded highlight styles are invalid: %v", err))
	}
	return styles
}

func parseHighlightStyles(data []byte) (*HighlightStyles, error) {
	var styles HighlightStyles
	if err := yaml.Unmarshal(data, &styles); err != nil {
		return nil, err
	}
	return &styles, nil
}
