// Package outputstore defines the storage interface consumed by the Source
// Intel Aggregator and the Orchestrator's trace writer (spec §6), plus a
// filesystem-backed implementation for local/embedded deployments. Callers
// depend on the Store interface, never on *FileStore directly, so a future
// object-storage-backed implementation is a drop-in swap.
package outputstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Store is the consumed storage interface from spec §6: resolve a logical
// key into whatever addressing scheme the backing store uses, then read or
// write bytes/JSON/text at that key.
type Store interface {
	ResolveOutputKey(parts ...string) string
	ReadJSONOrNil(ctx context.Context, key string, out any) (bool, error)
	ReadTextOrEmpty(ctx context.Context, key string) (string, bool, error)
	WriteObject(ctx context.Context, key string, body []byte, contentType string) error
	AppendText(ctx context.Context, key string, text string) error
}

// FileStore implements Store against a local directory tree rooted at Root.
// Keys are '/'-joined logical paths resolved relative to Root.
type FileStore struct {
	Root string
}

// NewFileStore returns a FileStore rooted at root.
func NewFileStore(root string) *FileStore {
	return &FileStore{Root: root}
}

// ResolveOutputKey joins parts into a '/'-separated logical key.
func (f *FileStore) ResolveOutputKey(parts ...string) string {
	return strings.Join(parts, "/")
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.Root, filepath.FromSlash(key))
}

// ReadJSONOrNil reads key and unmarshals it into out. Returns (false, nil)
// when the key does not exist, matching spec §6's readJsonOrNull semantics.
func (f *FileStore) ReadJSONOrNil(_ context.Context, key string, out any) (bool, error) {
	b, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, err
	}
	return true, nil
}

// ReadTextOrEmpty reads key as raw text. Returns (_, false, nil) when the
// key does not exist.
func (f *FileStore) ReadTextOrEmpty(_ context.Context, key string) (string, bool, error) {
	b, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// WriteObject writes body to key, creating parent directories as needed.
func (f *FileStore) WriteObject(_ context.Context, key string, body []byte, _ string) error {
	p := f.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, body, 0o644)
}

// AppendText appends text to key, creating the file and parent directories
// if they don't yet exist.
func (f *FileStore) AppendText(_ context.Context, key string, text string) error {
	p := f.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	fh, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer fh.Close()
	_, err = fh.WriteString(text)
	return err
}

// WriteJSON marshals v and writes it to key via the given Store.
func WriteJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return s.WriteObject(ctx, key, b, "application/json")
}
