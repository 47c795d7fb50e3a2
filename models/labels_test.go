package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLabelTable_Sparse(t *testing.T) {
	table, err := NewLabelTable("veg", OutputClass{Index: 3, Name: "broccoli"}, OutputClass{Index: 2, Name: "carrot"})
	require.NoError(t, err)

	name, ok := table.Lookup(2)
	assert.True(t, ok)
	assert.Equal(t, "carrot", name)

	_, ok = table.Lookup(0)
	assert.False(t, ok, "sparse tables have gaps")

	assert.Equal(t, 2, table.Len())
	assert.Equal(t, "veg", table.Version())
	assert.Equal(t, []OutputClass{{2, "carrot"}, {3, "broccoli"}}, table.Classes())
}

func TestNewLabelTable_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		classes []OutputClass
	}{
		{name: "negative index", classes: []OutputClass{{Index: -1, Name: "apple"}}},
		{name: "empty name", classes: []OutputClass{{Index: 0, Name: ""}}},
		{name: "duplicate index", classes: []OutputClass{{Index: 0, Name: "apple"}, {Index: 0, Name: "pear"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLabelTable("v", tt.classes...)
			assert.Error(t, err)
		})
	}
}

func TestLabelTable_ClassesIsACopy(t *testing.T) {
	classes := IngredientClasses.Classes()
	classes[0].Name = "pear"

	name, _ := IngredientClasses.Lookup(0)
	assert.Equal(t, "apple", name)
}

func TestBuiltinTables(t *testing.T) {
	assert.Equal(t, 5, IngredientClasses.Len())
	assert.Equal(t, 80, YOLOClasses.Len())
	assert.Equal(t, 81, COCOClasses.Len())

	idx, ok := YOLOClasses.Index("broccoli")
	assert.True(t, ok)
	assert.Equal(t, 50, idx)

	idx, ok = COCOClasses.Index("broccoli")
	assert.True(t, ok)
	assert.Equal(t, 51, idx, "COCO keeps index 0 for the background")

	for _, family := range Families {
		table, err := BuiltinTable(family)
		require.NoError(t, err)
		assert.Positive(t, table.Len())
	}
	_, err := BuiltinTable("voc")
	assert.Error(t, err)

	for _, name := range FoodClasses {
		assert.True(t, YOLOClasses.Contains(name), name)
	}
}

func TestLoadLabels(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	t.Run("dense yaml", func(t *testing.T) {
		table, err := LoadLabels(write("dense.yaml", "version: v2\nlabels:\n  - apple\n  - banana\n"))
		require.NoError(t, err)
		assert.Equal(t, "v2", table.Version())
		name, _ := table.Lookup(1)
		assert.Equal(t, "banana", name)
	})

	t.Run("sparse yaml", func(t *testing.T) {
		table, err := LoadLabels(write("sparse.yml", "classes:\n  - {index: 2, name: carrot}\n  - {index: 3, name: broccoli}\n"))
		require.NoError(t, err)
		name, ok := table.Lookup(3)
		assert.True(t, ok)
		assert.Equal(t, "broccoli", name)
	})

	t.Run("plain text", func(t *testing.T) {
		table, err := LoadLabels(write("labels.txt", "# ingredient model\napple\n\nbanana\n  orange  \n"))
		require.NoError(t, err)
		assert.Equal(t, "labels", table.Version())
		assert.Equal(t, 3, table.Len())
		name, _ := table.Lookup(2)
		assert.Equal(t, "orange", name)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := LoadLabels(write("both.yaml", "labels: [apple]\nclasses: [{index: 0, name: apple}]\n"))
		assert.Error(t, err)

		_, err = LoadLabels(write("empty.txt", "# nothing\n"))
		assert.Error(t, err)

		_, err = LoadLabels(filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})
}
