package models

import (
	"sort"

	"github.com/pkg/errors"
)

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int `json:"index" yaml:"index"`
	// The human-readable label.
	Name string `json:"name" yaml:"name"`
}

// LabelTable maps model class indices to ingredient names.
//
// A table may be sparse: a detector trained on a subset of a larger dataset keeps the original
// indices. Tables are immutable after construction and safe to share between goroutines.
type LabelTable struct {
	version   string
	byIndex   map[int]string
	nameToIdx map[string]int
	classes   []OutputClass
}

// NewLabelTable builds a table from explicit index/name pairs.
//
// Arguments:
//   - version: An identifier for the label set, usually tied to the model release.
//   - classes: The index/name pairs. Indices must be unique and non-negative; names non-empty.
//
// Returns:
//   - *LabelTable: The table.
//   - error: An error if an entry is invalid or duplicated.
func NewLabelTable(version string, classes ...OutputClass) (*LabelTable, error) {
	t := &LabelTable{
		version:   version,
		byIndex:   make(map[int]string, len(classes)),
		nameToIdx: make(map[string]int, len(classes)),
		classes:   make([]OutputClass, 0, len(classes)),
	}
	for _, c := range classes {
		if c.Index < 0 {
			return nil, errors.Errorf("label %q has negative index %d", c.Name, c.Index)
		}
		if c.Name == "" {
			return nil, errors.Errorf("label at index %d has no name", c.Index)
		}
		if prev, ok := t.byIndex[c.Index]; ok {
			return nil, errors.Errorf("index %d is assigned to both %q and %q", c.Index, prev, c.Name)
		}
		t.byIndex[c.Index] = c.Name
		if _, ok := t.nameToIdx[c.Name]; !ok {
			t.nameToIdx[c.Name] = c.Index
		}
		t.classes = append(t.classes, c)
	}
	sort.Slice(t.classes, func(i, j int) bool { return t.classes[i].Index < t.classes[j].Index })
	return t, nil
}

// FromNames builds a dense table where names[i] is class i.
func FromNames(version string, names ...string) (*LabelTable, error) {
	classes := make([]OutputClass, len(names))
	for i, name := range names {
		classes[i] = OutputClass{Index: i, Name: name}
	}
	return NewLabelTable(version, classes...)
}

// MustFromNames is FromNames for built-in tables; it panics on invalid input.
func MustFromNames(version string, names ...string) *LabelTable {
	t, err := FromNames(version, names...)
	if err != nil {
		panic(err)
	}
	return t
}

// Version returns the label set identifier.
func (t *LabelTable) Version() string {
	return t.version
}

// Lookup returns the name assigned to idx.
func (t *LabelTable) Lookup(idx int) (string, bool) {
	name, ok := t.byIndex[idx]
	return name, ok
}

// Index returns the first index assigned to name.
func (t *LabelTable) Index(name string) (int, bool) {
	idx, ok := t.nameToIdx[name]
	return idx, ok
}

// Contains reports whether name is a label of the table.
func (t *LabelTable) Contains(name string) bool {
	_, ok := t.nameToIdx[name]
	return ok
}

// Len returns the number of entries.
func (t *LabelTable) Len() int {
	return len(t.classes)
}

// Classes returns a copy of the entries ordered by index.
func (t *LabelTable) Classes() []OutputClass {
	out := make([]OutputClass, len(t.classes))
	copy(out, t.classes)
	return out
}
