package moody

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Source provides template source text by name. Load reports ok == false
// when no template by that name exists; err is reserved for real failures,
// such as an unreadable file.
type Source interface {
	Load(name string) (content string, ok bool, err error)
}

// MemorySource serves templates from a map of name to template source.
type MemorySource map[string]string

// Load implements Source.
func (s MemorySource) Load(name string) (string, bool, error) {
	content, ok := s[name]
	return content, ok, nil
}

// DirectorySource serves templates from files beneath a directory. Template
// names are slash-separated relative paths, whatever the platform.
type DirectorySource struct {
	Dir string
}

// Load implements Source.
func (s DirectorySource) Load(name string) (string, bool, error) {
	rel, ok := sanitizeName(name)
	if !ok {
		return "", false, fmt.Errorf("template name %q escapes the template directory", name)
	}
	content, err := os.ReadFile(filepath.Join(s.Dir, filepath.FromSlash(rel)))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(content), true, nil
}

// sanitizeName normalizes a template name and rejects any that would resolve
// outside the template directory.
func sanitizeName(name string) (string, bool) {
	if name == "" || strings.HasPrefix(name, "/") {
		return "", false
	}
	var clean = path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	return clean, true
}
