package models

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// labelsFile is the on-disk form of a label table.
//
// Dense tables list names in index order under labels; sparse tables list index/name pairs
// under classes. A file may not use both.
type labelsFile struct {
	Version string        `yaml:"version"`
	Labels  []string      `yaml:"labels"`
	Classes []OutputClass `yaml:"classes"`
}

// LoadLabels reads a label table shipped next to a model.
//
// Files ending in .yaml or .yml are parsed as YAML; anything else is read as plain text with one
// label per line, where blank lines and lines starting with # are ignored.
//
// Arguments:
//   - path: The labels file.
//
// Returns:
//   - *LabelTable: The table.
//   - error: An error if the file cannot be read or describes an invalid table.
func LoadLabels(path string) (*LabelTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read labels file")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseLabelsYAML(data)
	default:
		version := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return ParseLabelsText(version, data)
	}
}

// ParseLabelsYAML parses a YAML label table.
func ParseLabelsYAML(data []byte) (*LabelTable, error) {
	var f labelsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "failed to parse labels file")
	}

	switch {
	case len(f.Labels) > 0 && len(f.Classes) > 0:
		return nil, errors.New("labels file must use either labels or classes, not both")
	case len(f.Classes) > 0:
		return NewLabelTable(f.Version, f.Classes...)
	case len(f.Labels) > 0:
		return FromNames(f.Version, f.Labels...)
	default:
		return nil, errors.New("labels file has no entries")
	}
}

// ParseLabelsText parses a plain-text label table, one name per line.
func ParseLabelsText(version string, data []byte) (*LabelTable, error) {
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read labels")
	}
	if len(names) == 0 {
		return nil, errors.New("labels file has no entries")
	}
	return FromNames(version, names...)
}
