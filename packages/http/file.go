package http

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
)

// File is one multipart part. A part with Content is sent as a file upload
// named FileName; a part without Content is a plain form field whose value is
// FileName.
type File struct {
	Name        string
	FileName    string
	Content     []byte
	ContentType string
}

// NewFile returns an in-memory file part. An empty contentType is sent as
// application/octet-stream.
func NewFile(name, fileName string, content []byte, contentType string) File {
	if content == nil {
		content = []byte{}
	}
	return File{Name: name, FileName: fileName, Content: content, ContentType: contentType}
}

// Field returns a plain form field part.
func Field(name, value string) File {
	return File{Name: name, FileName: value}
}

// OpenFile reads path into a file part named after the file's base name.
func OpenFile(name, path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return NewFile(name, filepath.Base(path), b, ""), nil
}

// IsFile reports whether f carries file content.
func (f File) IsFile() bool {
	return f.Content != nil
}

// FilesFromMap converts plain name/value pairs into field parts ordered by name.
func FilesFromMap(fields map[string]string) []File {
	files := make([]File, 0, len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		files = append(files, Field(k, fields[k]))
	}
	return files
}
