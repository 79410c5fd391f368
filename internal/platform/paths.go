package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// NormalizePath expands a leading "~", makes the path absolute and cleans it
func NormalizePath(path string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", err
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", &PathError{Path: path, Message: err.Error()}
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", &PathError{Path: path, Message: err.Error()}
	}

	return filepath.Clean(abs), nil
}

// IsWithin reports whether path equals root or lies below it. Both paths
// must be absolute and clean.
func IsWithin(root, path string) bool {
	if samePath(root, path) {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if runtime.GOOS == "windows" {
		return strings.HasPrefix(strings.ToLower(path), strings.ToLower(prefix))
	}
	return strings.HasPrefix(path, prefix)
}

func samePath(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// ValidateRoots checks that a source and replica can be mirrored: the
// source must be an existing directory, the replica must not be a file,
// and neither may contain the other. Both paths must be normalized.
func ValidateRoots(source, replica string) error {
	info, err := os.Stat(source)
	if os.IsNotExist(err) {
		return fmt.Errorf("source path does not exist: %s", source)
	} else if err != nil {
		return fmt.Errorf("failed to access source path: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("source path is not a directory: %s", source)
	}

	info, err = os.Stat(replica)
	if err == nil && !info.IsDir() {
		return fmt.Errorf("replica path exists but is not a directory: %s", replica)
	} else if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to access replica path: %w", err)
	}

	if samePath(source, replica) {
		return fmt.Errorf("source and replica cannot be the same: %s", source)
	}
	if IsWithin(source, replica) {
		return fmt.Errorf("replica cannot be inside source directory")
	}
	if IsWithin(replica, source) {
		return fmt.Errorf("source cannot be inside replica directory")
	}

	return nil
}

// ValidatePath checks if a path is valid for the current platform
func ValidatePath(path string) error {
	if path == "" {
		return &PathError{Path: path, Message: "path is empty"}
	}

	if strings.ContainsRune(path, 0) {
		return &PathError{Path: path, Message: "path contains a NUL byte"}
	}

	// Check for invalid characters based on OS
	if runtime.GOOS == "windows" {
		invalidChars := []string{"<", ">", "\"", "|", "?", "*"}
		for _, char := range invalidChars {
			if strings.Contains(path, char) {
				return &PathError{Path: path, Message: "path contains invalid character: " + char}
			}
		}
	}

	return nil
}

// PathError represents a path validation error
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Message
}
