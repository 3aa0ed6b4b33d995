// Package prompts resolves logical prompt names to files on disk.
package prompts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WeatherSystemPrompt is the system prompt used by both weather workflows.
const WeatherSystemPrompt = "WeatherSystemPrompt.txt"

var (
	ErrNotMapped    = errors.New("prompts: file not in file map")
	ErrFileNotFound = errors.New("prompts: file not found")
)

// Config maps logical file names to paths.
type Config struct {
	Files map[string]string
}

// DefaultConfig maps the known prompt files relative to dir.
func DefaultConfig(dir string) Config {
	return Config{
		Files: map[string]string{
			WeatherSystemPrompt: filepath.Join(dir, WeatherSystemPrompt),
		},
	}
}

// FileService reads prompt templates by logical name.
type FileService struct {
	files map[string]string
}

// NewFileService copies cfg so later changes to the caller's map do not leak in.
func NewFileService(cfg Config) *FileService {
	files := make(map[string]string, len(cfg.Files))
	for name, path := range cfg.Files {
		files[name] = path
	}
	return &FileService{files: files}
}

// Read returns the content of the file mapped to name.
func (s *FileService) Read(name string) (string, error) {
	path, ok := s.files[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotMapped, name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %q at path %q", ErrFileNotFound, name, path)
		}
		return "", fmt.Errorf("prompts: read %q: %w", path, err)
	}
	return string(data), nil
}
