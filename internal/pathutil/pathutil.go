// Package pathutil implements the canonical logical-path rules: trim
// leading and trailing slashes, reject '..' segments. Handlers used to
// sanitize paths each in their own way; this package is the single rule
// the rest of the system uses instead.
package pathutil

import (
	"strings"

	"github.com/marmos91/ditto-upload/internal/apperror"
)

// Sanitize trims leading and trailing slashes and rejects any segment
// equal to "..". An empty result means the root directory.
func Sanitize(path string) (string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "", nil
	}

	for _, segment := range strings.Split(trimmed, "/") {
		if segment == ".." {
			return "", apperror.New(apperror.BadRequest, "path must not contain '..'")
		}
		if segment == "" {
			return "", apperror.New(apperror.BadRequest, "path must not contain empty segments")
		}
	}

	return trimmed, nil
}

// Join joins a sanitized parent path and a file name into a display path,
// purely for presentation; it is never used to derive an object-store key.
func Join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "/" + name
}

// HasPrefix reports whether path is prefix or a descendant of prefix,
// matching on path segments rather than raw string prefix so that
// "ab" does not match a search for "a".
func HasPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// ReplacePrefix replaces a leading `old` segment-prefix of path with
// `new`, used by Catalog.MovePrefix. Returns path unchanged if it does
// not match the prefix.
func ReplacePrefix(path, old, new string) string {
	if !HasPrefix(path, old) {
		return path
	}
	if path == old {
		return new
	}
	rest := strings.TrimPrefix(path, old+"/")
	if new == "" {
		return rest
	}
	return new + "/" + rest
}
