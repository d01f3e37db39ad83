package transport

import (
	"fmt"
	"path/filepath"
	"strings"
)

// imageExtensions the only file types accepted for PUT and GET
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// IsImage checks the extension of name case-insensitively. A name that is
// only an extension, like ".png", does not count.
func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := imageExtensions[ext]; !ok {
		return false
	}
	return len(name) > len(ext)
}

// IsFlatName reports whether name names a file directly inside the storage
// root, with no directory components
func IsFlatName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}

// CheckFilename gate applied before any file or network I/O on both sides
func CheckFilename(name string) error {
	if !IsFlatName(name) || !IsImage(name) {
		return fmt.Errorf("%w: %q", ErrInvalidFileType, name)
	}
	return nil
}
