package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedBackend struct {
	*MemoryBackend
	scheme string
}

func (n namedBackend) Scheme() string { return n.scheme }

func TestStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(NewMemoryBackend())

	locator, err := s.Put(ctx, "repo/1_notes.txt", strings.NewReader("hola"), 4, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "mem:repo/1_notes.txt", locator)

	rc, err := s.Get(ctx, locator)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hola", string(body))

	require.NoError(t, s.Delete(ctx, locator))
	_, err = s.Get(ctx, locator)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestStorage_ResolvesSecondaryBackends(t *testing.T) {
	ctx := context.Background()
	legacy := namedBackend{MemoryBackend: NewMemoryBackend(), scheme: "gridfs"}
	_, err := legacy.Put(ctx, "abc", strings.NewReader("old"), 3, "")
	require.NoError(t, err)

	s := NewStorage(NewMemoryBackend(), legacy)
	assert.Equal(t, "mem", s.Scheme())

	rc, err := s.Get(ctx, "gridfs:abc")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "old", string(body))
}

func TestStorage_BadLocators(t *testing.T) {
	s := NewStorage(NewMemoryBackend())
	_, err := s.Get(context.Background(), "no-scheme")
	assert.ErrorIs(t, err, ErrInvalidLocator)
	_, err = s.Get(context.Background(), "mem:")
	assert.ErrorIs(t, err, ErrInvalidLocator)
	assert.ErrorIs(t, s.Delete(context.Background(), "s3:key"), ErrUnknownScheme)
}

func TestObjectKey(t *testing.T) {
	now := time.Unix(0, 42)
	assert.Equal(t, "r1/42_informe-final.pdf", ObjectKey("r1", "Informe Final.PDF", now))
	assert.Equal(t, "r1/42_a-b.tar", ObjectKey("r1", "a__b.tar", now))
	assert.Equal(t, "r1/42_noext", ObjectKey("r1", "noext", now))

	key := ObjectKey("r1", "###.weird ext!", now)
	assert.True(t, strings.HasPrefix(key, "r1/42_"))
	assert.NotContains(t, key, " ")
}
