package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

var ErrObjectNotFound = errors.New("storage: object not found")

// MemoryBackend keeps bodies in memory. Used by the memory store mode and tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: map[string][]byte{}}
}

func (m *MemoryBackend) Scheme() string { return "mem" }

func (m *MemoryBackend) EnsureBucket(context.Context) error { return nil }

func (m *MemoryBackend) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[key] = body
	m.mu.Unlock()
	return key, nil
}

func (m *MemoryBackend) Get(_ context.Context, ref string) (io.ReadCloser, error) {
	m.mu.RLock()
	body, ok := m.objects[ref]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (m *MemoryBackend) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[ref]; !ok {
		return ErrObjectNotFound
	}
	delete(m.objects, ref)
	return nil
}

// Len reports the number of stored objects.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
