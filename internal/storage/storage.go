// Package storage stores file bodies on a pluggable blob backend. Every stored
// object is addressed by a locator "<scheme>:<ref>" so records written under
// one backend stay readable after the primary backend changes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	// Scheme prefixes every locator produced by the backend.
	Scheme() string
	EnsureBucket(ctx context.Context) error
	// Put stores the body under key and returns the backend reference.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

var (
	ErrUnknownScheme  = errors.New("storage: unknown locator scheme")
	ErrInvalidLocator = errors.New("storage: invalid locator")
)

// Storage writes to a primary backend and reads from any registered one.
type Storage struct {
	primary  ObjectStorage
	backends map[string]ObjectStorage
}

// NewStorage constructs a Storage wrapper. Extra backends are only used to
// resolve locators with their scheme.
func NewStorage(primary ObjectStorage, extra ...ObjectStorage) *Storage {
	s := &Storage{primary: primary, backends: map[string]ObjectStorage{primary.Scheme(): primary}}
	for _, b := range extra {
		if _, ok := s.backends[b.Scheme()]; !ok {
			s.backends[b.Scheme()] = b
		}
	}
	return s
}

// EnsureBucket ensures the primary bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.primary.EnsureBucket(ctx)
}

// Put uploads the body to the primary backend and returns its locator.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	ref, err := s.primary.Put(ctx, key, r, size, contentType)
	if err != nil {
		return "", fmt.Errorf("%s put: %w", s.primary.Scheme(), err)
	}
	return s.primary.Scheme() + ":" + ref, nil
}

// Get opens the object behind a locator.
func (s *Storage) Get(ctx context.Context, locator string) (io.ReadCloser, error) {
	backend, ref, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}
	return backend.Get(ctx, ref)
}

// Delete removes the object behind a locator.
func (s *Storage) Delete(ctx context.Context, locator string) error {
	backend, ref, err := s.resolve(locator)
	if err != nil {
		return err
	}
	return backend.Delete(ctx, ref)
}

// Scheme of the primary backend.
func (s *Storage) Scheme() string {
	return s.primary.Scheme()
}

func (s *Storage) resolve(locator string) (ObjectStorage, string, error) {
	scheme, ref, ok := strings.Cut(locator, ":")
	if !ok || ref == "" {
		return nil, "", ErrInvalidLocator
	}
	backend, ok := s.backends[scheme]
	if !ok {
		return nil, "", fmt.Errorf("%w %q", ErrUnknownScheme, scheme)
	}
	return backend, ref, nil
}

// ObjectKey names an upload: "<prefix>/<unixnano>_<slug>.<ext>".
func ObjectKey(prefix, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	base := slugify(strings.TrimSuffix(filename, path.Ext(filename)))
	if base == "" {
		base = uuid.NewString()[:8]
	}
	if !validExt(ext) {
		ext = ""
	}
	return fmt.Sprintf("%s/%d_%s%s", prefix, now.UnixNano(), base, ext)
}

// slugify lower-cases name and keeps only [a-z0-9-].
func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '-'
	}, s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}

func validExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 10 {
		return false
	}
	for _, r := range ext[1:] {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
