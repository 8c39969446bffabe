package clientstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var errCorruptDocument = errors.New("undecodable document")

type fileEntry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// File is a Storage persisted as a single JSON document.
// Every write replaces the document via temp file + rename, so a crash
// mid-write leaves the previous document intact.
type File struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFile returns a file-backed storage at path. The file and its parent
// directory are created lazily on first write.
func NewFile(path string) *File {
	return &File{path: path, now: time.Now}
}

// Path returns the backing file location.
func (f *File) Path() string {
	return f.path
}

// Get implements Storage.
func (f *File) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if key == "" {
		return "", ErrEmptyKey
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return "", err
	}
	e, ok := doc[key]
	if !ok || (!e.ExpiresAt.IsZero() && !f.now().Before(e.ExpiresAt)) {
		return "", ErrNotFound
	}
	return e.Value, nil
}

// GetMany implements Storage.
func (f *File) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if k == "" {
			return nil, ErrEmptyKey
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if e, ok := doc[k]; ok {
			out[k] = e.Value
		}
	}
	return out, nil
}

// SetMany implements Storage.
func (f *File) SetMany(ctx context.Context, values map[string]string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for k := range values {
		if k == "" {
			return ErrEmptyKey
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = f.now().Add(ttl)
	}
	for k, v := range values {
		doc[k] = fileEntry{Value: v, ExpiresAt: expiresAt}
	}
	return f.save(doc)
}

// Update implements Storage.
func (f *File) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return ErrEmptyKey
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	e, found := doc[key]
	next, err := fn(e.Value, found)
	if err != nil {
		return err
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = f.now().Add(ttl)
	}
	doc[key] = fileEntry{Value: next, ExpiresAt: expiresAt}
	return f.save(doc)
}

// Delete implements Storage. A document that cannot be decoded is replaced
// with an empty one, since none of its keys can be read back.
func (f *File) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if errors.Is(err, errCorruptDocument) {
		return f.save(make(map[string]fileEntry))
	}
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := doc[k]; ok {
			delete(doc, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.save(doc)
}

func (f *File) load() (map[string]fileEntry, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]fileEntry), nil
	}
	if err != nil {
		return nil, errors.Join(ErrReadFailed, err)
	}

	doc := make(map[string]fileEntry)
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrReadFailed, errCorruptDocument, fmt.Errorf("decode %s: %w", f.path, err))
	}

	now := f.now()
	for k, e := range doc {
		if !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt) {
			delete(doc, k)
		}
	}
	return doc, nil
}

func (f *File) save(doc map[string]fileEntry) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Join(ErrWriteFailed, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Join(ErrWriteFailed, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return errors.Join(ErrWriteFailed, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Join(ErrWriteFailed, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Join(ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(ErrWriteFailed, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return errors.Join(ErrWriteFailed, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return errors.Join(ErrWriteFailed, err)
	}
	return nil
}
