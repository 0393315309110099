package acoustic

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed languages.yaml
var defaultModels []byte

// Range is an inclusive target interval.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

func (r Range) mid() float64   { return (r.Min + r.Max) / 2 }
func (r Range) width() float64 { return r.Max - r.Min }

// Model is the acoustic target profile for one language.
type Model struct {
	Language        string   `yaml:"-" json:"language"`
	Pitch           Range    `yaml:"pitch" json:"pitch"`
	Intensity       Range    `yaml:"intensity" json:"intensity"`
	Duration        Range    `yaml:"duration" json:"duration"`
	Characteristics []string `yaml:"characteristics" json:"characteristics"`
}

// ModelTable is an immutable set of language models. It is safe for concurrent use.
type ModelTable struct {
	models   map[string]Model
	fallback string
}

type modelFile struct {
	Default   string           `yaml:"default"`
	Languages map[string]Model `yaml:"languages"`
}

// ParseModelTable builds a table from YAML. Language keys are matched
// case-insensitively.
func ParseModelTable(data []byte) (*ModelTable, error) {
	var f modelFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse language models: %w", err)
	}
	if len(f.Languages) == 0 {
		return nil, fmt.Errorf("language models: no languages defined")
	}

	t := &ModelTable{
		models:   make(map[string]Model, len(f.Languages)),
		fallback: strings.ToLower(strings.TrimSpace(f.Default)),
	}
	for code, m := range f.Languages {
		for name, r := range map[string]Range{"pitch": m.Pitch, "intensity": m.Intensity, "duration": m.Duration} {
			if r.Max <= r.Min {
				return nil, fmt.Errorf("language %q: %s range min %v must be below max %v", code, name, r.Min, r.Max)
			}
		}
		m.Language = code
		t.models[strings.ToLower(code)] = m
	}
	if t.fallback == "" {
		t.fallback = "en"
	}
	if _, ok := t.models[t.fallback]; !ok {
		return nil, fmt.Errorf("language models: default %q is not defined", f.Default)
	}
	return t, nil
}

// LoadModelTable reads the table from path, or the built-in table when path is empty.
func LoadModelTable(path string) (*ModelTable, error) {
	if path == "" {
		return ParseModelTable(defaultModels)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read language models: %w", err)
	}
	return ParseModelTable(data)
}

// Lookup returns the model for language, falling back from a regional code to
// its base language and then to the table default.
func (t *ModelTable) Lookup(language string) Model {
	code := strings.ToLower(strings.TrimSpace(language))
	if m, ok := t.models[code]; ok {
		return m
	}
	if base, _, found := strings.Cut(code, "-"); found {
		if m, ok := t.models[base]; ok {
			return m
		}
	}
	return t.models[t.fallback]
}

// Languages lists the configured language codes, sorted.
func (t *ModelTable) Languages() []string {
	out := make([]string, 0, len(t.models))
	for _, m := range t.models {
		out = append(out, m.Language)
	}
	sort.Strings(out)
	return out
}
