package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var _ Store = (*File)(nil)

// File persists credentials as a JSON document on disk.
//
// Writes are not protected by file locking; two processes sharing one file
// race with last-write-wins semantics.
type File struct {
	path string
}

// NewFile returns a store backed by the given file path. The file does not
// need to exist yet.
func NewFile(path string) *File {
	return &File{path: path}
}

// GetCredentials reads and validates the stored credentials. A missing file
// or an empty record maps to ErrNotFound.
func (f *File) GetCredentials(_ context.Context) (*Credentials, error) {
	payload, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: reading %s: %w", f.path, err)
	}

	var creds Credentials
	if err := json.Unmarshal(payload, &creds); err != nil {
		return nil, fmt.Errorf("store: decoding %s: %w", f.path, err)
	}
	if creds.AccessToken == "" || creds.ExpiresAt.IsZero() {
		return nil, ErrNotFound
	}
	return &creds, nil
}

// PutCredentials writes the credentials with owner-only permissions.
func (f *File) PutCredentials(_ context.Context, creds *Credentials) error {
	payload, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("store: encoding credentials: %w", err)
	}
	if err := os.WriteFile(f.path, payload, 0600); err != nil {
		return fmt.Errorf("store: writing %s: %w", f.path, err)
	}
	return nil
}
