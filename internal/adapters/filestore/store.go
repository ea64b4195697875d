// Package filestore keeps the customer document in a local JSON file.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/ports"
)

// Store implements ports.DocumentStore on a single JSON file. Every Save
// writes a temp file in the same directory, syncs it and renames it over
// the document, so readers see either the old or the new array.
type Store struct {
	path   string
	logger *slog.Logger
}

var _ ports.DocumentStore = (*Store)(nil)

// New returns a store for path, creating its directory if needed.
func New(path string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("filestore: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("filestore: create dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger.With("store", "file", "path", path)}, nil
}

// Path returns the document location.
func (s *Store) Path() string { return s.path }

// Ping reports whether the document directory is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(s.path))
	}
	return nil
}

// Load reads the document. A missing or empty file is an empty registry.
func (s *Store) Load(ctx context.Context) ([]domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("document missing, starting empty")
			return []domain.Customer{}, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.Customer{}, nil
	}
	var customers []domain.Customer
	if err := json.Unmarshal(data, &customers); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if customers == nil {
		customers = []domain.Customer{}
	}
	return customers, nil
}

// Save replaces the document with customers.
func (s *Store) Save(ctx context.Context, customers []domain.Customer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if customers == nil {
		customers = []domain.Customer{}
	}
	data, err := json.MarshalIndent(customers, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".customers-*.json")
	if err != nil {
		return err
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o640); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		cleanup()
		return err
	}

	s.logger.Debug("document saved", "customers", len(customers), "bytes", len(data))
	return nil
}
