package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
}

func TestLoadDirectoryImageFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.jpg", "a.PNG", "notes.txt", "c.webp")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.jpg"), 0o755))

	files, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)

	for i, want := range []string{"a.PNG", "b.jpg", "c.webp"} {
		assert.Equal(t, want, files[i].Name())
		assert.Equal(t, i, files[i].Frame)
		assert.Equal(t, []byte(want), files[i].Data)
	}
}

func TestLoadImageFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "photo.jpeg")

	files, err := LoadImageFiles(filepath.Join(dir, "photo.jpeg"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "photo.jpeg", files[0].Name())

	files, err = LoadImageFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	_, err = LoadImageFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestIsPhoto(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.jpg", true},
		{"a.JPEG", true},
		{"a.gif", true},
		{"a.bmp", false},
		{"a", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPhoto(tt.name), tt.name)
	}
}
