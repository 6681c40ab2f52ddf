package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/repohub/repohub-backend/internal/logging"
	"github.com/repohub/repohub-backend/internal/models"
	"github.com/repohub/repohub-backend/internal/storage"
	"github.com/repohub/repohub-backend/internal/store"
)

func newFileService(e *env) (*FileService, *storage.MemoryBackend) {
	backend := storage.NewMemoryBackend()
	svc := NewFileService(e.stores, storage.NewStorage(backend), 1<<20, logging.Discard())
	svc.now = func() time.Time {
		e.clock.Advance(time.Millisecond)
		return e.clock.Now()
	}
	return svc, backend
}

func upload(body string, mod func(*UploadInput)) UploadInput {
	in := UploadInput{
		Body:         strings.NewReader(body),
		OriginalName: "Informe Final.pdf",
		ContentType:  "application/pdf",
		Size:         int64(len(body)),
	}
	if mod != nil {
		mod(&in)
	}
	return in
}

func TestUpload(t *testing.T) {
	e := newEnv(t)
	files, backend := newFileService(e)
	ana := e.register(t, "ana")
	repo := e.createRepo(t, ana.ID, CreateRepositoryInput{Type: "simple"})

	f, err := files.Upload(e.ctx, repo.ID, ana.ID, upload("hola mundo", func(in *UploadInput) {
		in.Tags = []string{"a", "b"}
		in.Importance = 2
	}))
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("hola mundo"))
	assert.Equal(t, hex.EncodeToString(sum[:]), f.Checksum)
	assert.Equal(t, "Informe Final.pdf", f.Title)
	assert.True(t, strings.HasPrefix(f.StorageLocator, "mem:"+repo.ID.Hex()+"/"))
	assert.True(t, strings.HasSuffix(f.Filename, "_informe-final.pdf"))
	assert.Equal(t, 1, backend.Len())

	stored, err := e.stores.Repositories.GetByID(e.ctx, repo.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.Files, f.ID)

	meta, body, err := files.Download(e.ctx, f.ID, ana.ID)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hola mundo", string(data))
	assert.Equal(t, "application/pdf", meta.ContentType)
}

type failingLinkRepos struct {
	store.RepositoryStore
}

func (failingLinkRepos) AddFile(context.Context, primitive.ObjectID, primitive.ObjectID) error {
	return errors.New("write conflict")
}

func TestUpload_LinkFailureRemovesRecordAndBlob(t *testing.T) {
	e := newEnv(t)
	ana := e.register(t, "ana")
	repo := e.createRepo(t, ana.ID, CreateRepositoryInput{Type: "simple"})

	stores := e.stores
	stores.Repositories = failingLinkRepos{e.stores.Repositories}
	backend := storage.NewMemoryBackend()
	files := NewFileService(stores, storage.NewStorage(backend), 1<<20, logging.Discard())

	_, err := files.Upload(e.ctx, repo.ID, ana.ID, upload("hola", nil))
	requireStatus(t, err, 500)

	assert.Equal(t, 0, backend.Len())
	mine, err := e.stores.Files.ListByUploader(e.ctx, ana.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestUpload_Validation(t *testing.T) {
	e := newEnv(t)
	files, _ := newFileService(e)
	ana := e.register(t, "ana")
	bea := e.register(t, "bea")
	repo := e.createRepo(t, ana.ID, CreateRepositoryInput{Type: "simple", MemberEmails: []string{"bea@example.com"}})

	_, err := files.Upload(e.ctx, repo.ID, ana.ID, upload("x", func(in *UploadInput) { in.Importance = 4 }))
	requireStatus(t, err, 400)
	_, err = files.Upload(e.ctx, repo.ID, ana.ID, upload("x", func(in *UploadInput) { in.Size = 2 << 20 }))
	requireStatus(t, err, 413)
	_, err = files.Upload(e.ctx, repo.ID, ana.ID, upload("x", func(in *UploadInput) { in.Body = nil }))
	requireStatus(t, err, 400)

	// Viewers cannot upload.
	_, err = files.Upload(e.ctx, repo.ID, bea.ID, upload("x", nil))
	requireStatus(t, err, 403)
}

func TestListByRepo_HidesSensitiveFromOutsiders(t *testing.T) {
	e := newEnv(t)
	files, _ := newFileService(e)
	ana := e.register(t, "ana")
	bea := e.register(t, "bea")
	public := e.createRepo(t, ana.ID, CreateRepositoryInput{Type: "simple"})
	private := e.createRepo(t, ana.ID, CreateRepositoryInput{Type: "simple", Privacy: "private"})

	open, err := files.Upload(e.ctx, public.ID, ana.ID, upload("a", func(in *UploadInput) { in.Importance = 1 }))
	require.NoError(t, err)
	secret, err := files.Upload(e.ctx, public.ID, ana.ID, upload("b", func(in *UploadInput) {
		in.Sensitive = true
		in.Importance = 3
	}))
	require.NoError(t, err)

	list, err := files.ListByRepo(e.ctx, public.ID, ana.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, secret.ID, list[0].ID)

	list, err = files.ListByRepo(e.ctx, public.ID, bea.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)

	_, _, err = files.Download(e.ctx, secret.ID, bea.ID)
	requireStatus(t, err, 403)

	_, err = files.ListByRepo(e.ctx, private.ID, bea.ID)
	requireStatus(t, err, 403)
}

func TestDeleteFile(t *testing.T) {
	e := newEnv(t)
	files, backend := newFileService(e)
	ana := e.register(t, "ana")
	bea := e.register(t, "bea")
	cris := e.register(t, "cris")
	repo := e.createRepo(t, ana.ID, CreateRepositoryInput{Type: "simple"})
	_, err := e.stores.Repositories.AddParticipant(e.ctx, repo.ID, models.Participant{User: bea.ID, Role: models.RoleWriter, Status: models.ParticipantActive})
	require.NoError(t, err)

	byBea, err := files.Upload(e.ctx, repo.ID, bea.ID, upload("bea", nil))
	require.NoError(t, err)
	byBea2, err := files.Upload(e.ctx, repo.ID, bea.ID, upload("bea2", nil))
	require.NoError(t, err)

	requireStatus(t, files.Delete(e.ctx, byBea.ID, cris.ID), 403)
	require.NoError(t, files.Delete(e.ctx, byBea.ID, bea.ID))
	require.NoError(t, files.Delete(e.ctx, byBea2.ID, ana.ID))
	requireStatus(t, files.Delete(e.ctx, byBea2.ID, ana.ID), 404)

	assert.Equal(t, 0, backend.Len())
	stored, err := e.stores.Repositories.GetByID(e.ctx, repo.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Files)

	mine, err := files.ListMine(e.ctx, bea.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)
}
