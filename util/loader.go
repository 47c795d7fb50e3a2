// Package util - Loading photo corpora from disk.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// PhotoExtensions are the file extensions the loader picks up.
var PhotoExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Frame is the position of the file in name order.
	Frame int
}

// Name returns the file name without its directory.
func (f ImageFile) Name() string {
	return filepath.Base(f.Path)
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Slice of ImageFile, each containing the raw bytes of an image file, ordered by name.
// - error: Error if the directory or a file cannot be read.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading directory %s", dir)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !IsPhoto(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	files := make([]ImageFile, 0, len(names))
	for i, name := range names {
		file, err := LoadImageFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		file.Frame = i
		files = append(files, file)
	}
	return files, nil
}

// LoadImageFiles reads path, which may be a single photo or a directory of photos.
func LoadImageFiles(path string) ([]ImageFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading %s", path)
	}
	if info.IsDir() {
		return LoadDirectoryImageFiles(path)
	}
	file, err := LoadImageFile(path)
	if err != nil {
		return nil, err
	}
	return []ImageFile{file}, nil
}

// LoadImageFile reads one file.
func LoadImageFile(path string) (ImageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageFile{}, errors.Wrapf(err, "error reading %s", path)
	}
	return ImageFile{Path: path, Data: data}, nil
}

// IsPhoto reports whether name has one of PhotoExtensions.
func IsPhoto(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range PhotoExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
