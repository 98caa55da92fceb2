package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileReader reads files through a cache invalidated by modification time
type FileReader struct {
	contents *FileCache[string]
}

// NewFileReader creates a new FileReader instance with caching
func NewFileReader() *FileReader {
	return &FileReader{contents: NewFileCache[string]()}
}

// ReadFile reads a file and returns its contents as a string with caching
func (fr *FileReader) ReadFile(filePath string) (string, error) {
	if err := NotEmpty("file path")(filePath); err != nil {
		return "", err
	}
	cleanPath := filepath.Clean(filePath)

	if cached, ok := fr.contents.Get(cleanPath); ok {
		return cached, nil
	}

	content, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", filepath.Base(cleanPath), err)
	}

	contentStr := string(content)
	_ = fr.contents.Put(cleanPath, contentStr)
	return contentStr, nil
}
