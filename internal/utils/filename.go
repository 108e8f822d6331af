package utils

import (
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/vfaronov/httpheader"
)

// DetermineFilename picks a file name for a response: Content-Disposition
// first, then the last segment of the URL path. ok is false when neither
// yields a usable name.
func DetermineFilename(rawURL string, header http.Header) (name string, ok bool) {
	if header != nil {
		// filename* (RFC 8187) is decoded and preferred by httpheader.
		if _, fn, _ := httpheader.ContentDisposition(header); fn != "" {
			if name, ok := sanitizeFilename(fn); ok {
				return name, true
			}
		}
	}
	return FilenameFromURL(rawURL)
}

// FilenameFromURL returns the unescaped last path segment of rawURL.
// Example: https://example.com/a/b/file%20one.zip -> "file one.zip"
func FilenameFromURL(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	return sanitizeFilename(path.Base(parsed.Path))
}

// IsDirectoryTarget reports whether dest names a directory rather than a
// file: either an existing directory or a path ending in a separator.
func IsDirectoryTarget(dest string) bool {
	if strings.HasSuffix(dest, "/") || strings.HasSuffix(dest, string(os.PathSeparator)) {
		return true
	}
	info, err := os.Stat(dest)
	return err == nil && info.IsDir()
}

func sanitizeFilename(name string) (string, bool) {
	name = strings.TrimSpace(name)
	// Strip any directory part a server might send.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	switch name {
	case "", ".", "..", "/":
		return "", false
	}
	return name, true
}
