package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by an ImageStore when no object has the given name
var ErrNotFound = errors.New("object not found")

// ImageStore is a flat, filename-addressable byte store.
// Raw uploads and de-skewed copies each live in their own ImageStore.
type ImageStore interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

// validateName rejects names that would escape a flat store
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid object name %q", name)
	}
	return nil
}
