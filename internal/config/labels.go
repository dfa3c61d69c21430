package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LabelPreset is a label offered when drafting an issue.
type LabelPreset struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

// DefaultLabelPresets are used when no labels file is configured.
var DefaultLabelPresets = []LabelPreset{
	{Name: "bug", Color: "d73a4a"},
	{Name: "enhancement", Color: "a2eeef"},
	{Name: "question", Color: "d876e3"},
	{Name: "documentation", Color: "0075ca"},
	{Name: "good first issue", Color: "7057ff"},
}

type labelsFile struct {
	Labels []LabelPreset `yaml:"labels"`
}

// LoadLabelPresets reads presets from a YAML file of the form
//
//	labels:
//	  - name: bug
//	    color: d73a4a
//
// An empty path returns the defaults.
func LoadLabelPresets(path string) ([]LabelPreset, error) {
	if path == "" {
		return DefaultLabelPresets, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading labels file: %w", err)
	}
	var f labelsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing labels file: %w", err)
	}
	seen := make(map[string]bool, len(f.Labels))
	out := make([]LabelPreset, 0, len(f.Labels))
	for _, l := range f.Labels {
		if l.Name == "" {
			return nil, fmt.Errorf("labels file %s: label without name", path)
		}
		if seen[l.Name] {
			continue
		}
		seen[l.Name] = true
		out = append(out, l)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("labels file %s contains no labels", path)
	}
	return out, nil
}

// PresetNames returns the preset label names in order.
func PresetNames(presets []LabelPreset) []string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.Name
	}
	return names
}
