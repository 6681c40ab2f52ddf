package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/repohub/repohub-backend/internal/logging"
	"github.com/repohub/repohub-backend/internal/models"
	"github.com/repohub/repohub-backend/internal/storage"
	"github.com/repohub/repohub-backend/internal/store"
	"github.com/repohub/repohub-backend/pkg/utils"
)

// uploadRoles may add files to a repository. The owner always can.
var uploadRoles = []models.Role{models.RoleAdmin, models.RoleWriter, models.RoleCreator}

type FileService struct {
	files    store.FileStore
	repos    store.RepositoryStore
	blobs    *storage.Storage
	maxBytes int64
	log      logging.Logger
	now      func() time.Time
}

func NewFileService(stores store.Stores, blobs *storage.Storage, maxBytes int64, log logging.Logger) *FileService {
	return &FileService{
		files:    stores.Files,
		repos:    stores.Repositories,
		blobs:    blobs,
		maxBytes: maxBytes,
		log:      log,
		now:      time.Now,
	}
}

var errFileNotFound = &utils.NotFoundError{Resource: "file", Message: "Archivo no encontrado"}

type UploadInput struct {
	Body         io.ReadSeeker
	OriginalName string
	ContentType  string
	Size         int64
	Title        string
	Description  string
	Tags         []string
	Importance   int
	Sensitive    bool
}

// Upload stores the body and records its metadata on the repository.
func (s *FileService) Upload(ctx context.Context, repoID, user primitive.ObjectID, in UploadInput) (*models.File, error) {
	if in.Body == nil || in.OriginalName == "" {
		return nil, &utils.ValidationError{Field: "file", Message: "El archivo es obligatorio."}
	}
	if s.maxBytes > 0 && in.Size > s.maxBytes {
		return nil, &utils.ValidationError{Field: "file", Message: "El archivo supera el tamaño máximo permitido.", Status: 413}
	}
	if in.Importance < models.MinImportance || in.Importance > models.MaxImportance {
		return nil, &utils.ValidationError{Field: "importance", Message: "La importancia debe estar entre 0 y 3."}
	}

	repo, err := loadRepository(ctx, s.repos, repoID)
	if err != nil {
		return nil, err
	}
	if _, err := RequireRole(repo, user, uploadRoles...); err != nil {
		return nil, err
	}

	sum := sha256.New()
	if _, err := io.Copy(sum, in.Body); err != nil {
		return nil, utils.Internal("hash upload", err)
	}
	if _, err := in.Body.Seek(0, io.SeekStart); err != nil {
		return nil, utils.Internal("rewind upload", err)
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	now := s.now().UTC()
	key := storage.ObjectKey(repo.ID.Hex(), in.OriginalName, now)
	locator, err := s.blobs.Put(ctx, key, in.Body, in.Size, contentType)
	if err != nil {
		return nil, utils.Internal("store upload", err)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = in.OriginalName
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	f := &models.File{
		Filename:       key[strings.LastIndex(key, "/")+1:],
		OriginalName:   in.OriginalName,
		ContentType:    contentType,
		Size:           in.Size,
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		Tags:           tags,
		Importance:     in.Importance,
		Sensitive:      in.Sensitive,
		Repository:     repo.ID,
		UploadedBy:     user,
		StorageLocator: locator,
		Checksum:       hex.EncodeToString(sum.Sum(nil)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.files.Create(ctx, f); err != nil {
		s.discardBlob(ctx, locator)
		return nil, utils.Internal("create file record", err)
	}
	if err := s.repos.AddFile(ctx, repo.ID, f.ID); err != nil {
		if derr := s.files.Delete(ctx, f.ID); derr != nil {
			s.log.Warn(ctx, "orphaned file record", "file_id", f.ID.Hex(), "err", derr)
		}
		s.discardBlob(ctx, locator)
		return nil, utils.Internal("link file", err)
	}
	s.log.Info(ctx, "file uploaded", "file_id", f.ID.Hex(), "repo_id", repo.ID.Hex(), "size", f.Size)
	return f, nil
}

func (s *FileService) discardBlob(ctx context.Context, locator string) {
	if err := s.blobs.Delete(ctx, locator); err != nil {
		s.log.Warn(ctx, "orphaned upload", "locator", locator, "err", err)
	}
}

// ListByRepo hides sensitive files from viewers outside the repository.
func (s *FileService) ListByRepo(ctx context.Context, repoID, user primitive.ObjectID) ([]models.File, error) {
	repo, err := loadRepository(ctx, s.repos, repoID)
	if err != nil {
		return nil, err
	}
	if !CanView(repo, user) {
		return nil, utils.Forbidden(msgNotAuthorized)
	}
	list, err := s.files.ListByRepo(ctx, repo.ID)
	if err != nil {
		return nil, utils.Internal("list files", err)
	}
	_, memberErr := RequireParticipant(repo, user)
	out := make([]models.File, 0, len(list))
	for _, f := range list {
		if f.Sensitive && memberErr != nil {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *FileService) ListMine(ctx context.Context, user primitive.ObjectID) ([]models.File, error) {
	list, err := s.files.ListByUploader(ctx, user)
	if err != nil {
		return nil, utils.Internal("list files", err)
	}
	if list == nil {
		list = []models.File{}
	}
	return list, nil
}

// Download opens a file body the caller is allowed to read. The caller
// closes the returned reader.
func (s *FileService) Download(ctx context.Context, id, user primitive.ObjectID) (*models.File, io.ReadCloser, error) {
	f, err := s.getFile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	repo, err := loadRepository(ctx, s.repos, f.Repository)
	if err != nil {
		return nil, nil, err
	}
	if !CanView(repo, user) {
		return nil, nil, utils.Forbidden(msgNotAuthorized)
	}
	if f.Sensitive {
		if _, err := RequireParticipant(repo, user); err != nil {
			return nil, nil, err
		}
	}
	body, err := s.blobs.Get(ctx, f.StorageLocator)
	if err != nil {
		return nil, nil, utils.Internal("open file", err)
	}
	return f, body, nil
}

// Delete is allowed for the uploader and the repository owner.
func (s *FileService) Delete(ctx context.Context, id, user primitive.ObjectID) error {
	f, err := s.getFile(ctx, id)
	if err != nil {
		return err
	}
	repo, err := s.repos.GetByID(ctx, f.Repository)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return utils.Internal("load repository", err)
	}
	if f.UploadedBy != user && (repo == nil || !repo.IsOwner(user)) {
		return utils.Forbidden(msgNotAuthorized)
	}

	if err := s.blobs.Delete(ctx, f.StorageLocator); err != nil {
		s.log.Warn(ctx, "delete blob failed", "file_id", f.ID.Hex(), "err", err)
	}
	if err := s.files.Delete(ctx, f.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errFileNotFound
		}
		return utils.Internal("delete file record", err)
	}
	if repo != nil {
		if err := s.repos.RemoveFile(ctx, repo.ID, f.ID); err != nil {
			return utils.Internal("unlink file", err)
		}
	}
	return nil
}

func (s *FileService) getFile(ctx context.Context, id primitive.ObjectID) (*models.File, error) {
	f, err := s.files.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errFileNotFound
	}
	if err != nil {
		return nil, utils.Internal("load file", err)
	}
	return f, nil
}
