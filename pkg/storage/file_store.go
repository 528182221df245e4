package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore implements ObjectStore on the local filesystem. Saved files
// are served back under the given URL prefix.
type LocalStore struct {
	root      string
	urlPrefix string
}

// NewLocalStore creates the storage root if needed.
func NewLocalStore(root, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{root: root, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

// Root returns the directory files are written under.
func (l *LocalStore) Root() string { return l.root }

// Save writes the file to disk and returns its serving URL.
func (l *LocalStore) Save(ctx context.Context, mediaKind, filename, contentType string, r io.Reader, size int64) (string, error) {
	key := NewKey(mediaKind, filename)
	full := filepath.Join(l.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("write file: %w", err)
	}
	return l.urlPrefix + "/" + key, nil
}

// Delete removes a stored file. The key is the path portion of the URL
// returned by Save, without the prefix.
func (l *LocalStore) Delete(ctx context.Context, key string) error {
	key = strings.TrimPrefix(key, l.urlPrefix+"/")
	full := filepath.Join(l.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(l.root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("invalid key %q", key)
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

var _ ObjectStore = (*LocalStore)(nil)
