// Package storage persists raw uploads and cleaned artifacts behind a small
// key/value interface with local filesystem and S3 backends.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// Key prefixes used by the ingestion pipeline.
const (
	RawPrefix     = "raw_files"
	CleanedPrefix = "cleaned_files"
)

var (
	// ErrArtifactNotFound is returned by Open for unknown keys.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrInvalidKey is returned for keys escaping the store root.
	ErrInvalidKey = errors.New("invalid artifact key")
)

// ArtifactStore stores opaque byte artifacts under slash separated keys.
type ArtifactStore interface {
	// Put writes the artifact and returns its backend location.
	Put(ctx context.Context, key string, r io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// CleanedKey is the key of the cleaned CSV artifact of an upload.
func CleanedKey(uploadID string) string {
	return path.Join(CleanedPrefix, "cleaned_"+uploadID+".csv")
}

// RawKey is the key of a raw upload.
func RawKey(uploadID string, fileName string) string {
	return path.Join(RawPrefix, uploadID+"_"+SanitizeFileName(fileName))
}

// SanitizeFileName reduces an uploaded file name to a safe base name made of
// ASCII letters, digits, '.', '-' and '_'.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	cleaned := strings.TrimLeft(b.String(), "._")
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}

func cleanKey(key string) (string, error) {
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return "", ErrInvalidKey
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(key)), "/")
	if cleaned == "" {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
