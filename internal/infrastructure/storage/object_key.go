package storage

import (
	"errors"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidKey is returned for keys that are empty or climb out of the store
var ErrInvalidKey = errors.New("invalid storage key")

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// SanitizeName returns a storage-safe version of a file or folder name.
// Path separators and parent references are removed so the name cannot
// escape its folder.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")

	name = unsafeNameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, ".")

	if name == "" {
		return "file"
	}
	return name
}

// ObjectKey builds the blob path for a trip document:
// trips/<reference>/<kind>/<uuid>-<name>
func ObjectKey(referenceCode, kind, fileName string) string {
	return path.Join(
		"trips",
		SanitizeName(referenceCode),
		SanitizeName(kind),
		uuid.NewString()+"-"+SanitizeName(fileName),
	)
}

// CleanKey normalises a slash-separated key. Leading slashes are dropped and
// any parent reference is rejected, so a key always stays inside the store.
func CleanKey(key string) (string, error) {
	if strings.ContainsRune(key, '\\') {
		return "", ErrInvalidKey
	}
	trimmed := strings.TrimLeft(key, "/")
	for _, seg := range strings.Split(trimmed, "/") {
		if seg == ".." {
			return "", ErrInvalidKey
		}
	}
	clean := path.Clean(trimmed)
	if clean == "." || clean == "" {
		return "", ErrInvalidKey
	}
	return clean, nil
}
