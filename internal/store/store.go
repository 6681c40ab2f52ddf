// Package store defines persistence for every document the backend owns.
// The Mongo implementations live here; memstore provides a volatile variant.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/repohub/repohub-backend/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByUsernameOrEmail returns the first user matching either field.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	FindByEmails(ctx context.Context, emails []string) ([]models.User, error)
	SetVerificationCode(ctx context.Context, id primitive.ObjectID, code string, expires time.Time) error
	ClearVerificationCode(ctx context.Context, id primitive.ObjectID) error
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error
	AddRepository(ctx context.Context, userID, repoID primitive.ObjectID) error
	RemoveRepository(ctx context.Context, userID, repoID primitive.ObjectID) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, update models.ProfileUpdate) (*models.User, error)
	ListPublic(ctx context.Context, q models.UserQuery) ([]models.User, error)
}

type RepositoryStore interface {
	Create(ctx context.Context, r *models.Repository) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Repository, error)
	ListOwnedBy(ctx context.Context, userID primitive.ObjectID) ([]models.Repository, error)
	// ListParticipating returns repositories where userID participates without owning them.
	ListParticipating(ctx context.Context, userID primitive.ObjectID) ([]models.Repository, error)
	// ListPublic returns public simple and all creator repositories,
	// RxUno first, then by featured weight, then newest.
	ListPublic(ctx context.Context, search string) ([]models.Repository, error)
	// AddParticipant inserts p unless the user already participates. It
	// reports whether an insert happened; it is safe to call concurrently.
	AddParticipant(ctx context.Context, repoID primitive.ObjectID, p models.Participant) (bool, error)
	AddFile(ctx context.Context, repoID, fileID primitive.ObjectID) error
	RemoveFile(ctx context.Context, repoID, fileID primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type InvitationStore interface {
	Create(ctx context.Context, inv *models.Invitation) error
	FindPending(ctx context.Context, repoID, userID primitive.ObjectID) (*models.Invitation, error)
	FindPendingByToken(ctx context.Context, token string, userID primitive.ObjectID) (*models.Invitation, error)
	ListPendingForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Invitation, error)
	// Transition moves an invitation from one status to another and returns
	// ErrNotFound when it is no longer in the from status.
	Transition(ctx context.Context, id primitive.ObjectID, from, to models.InvitationStatus) error
}

type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Application, error)
	ListByRepo(ctx context.Context, repoID primitive.ObjectID) ([]models.Application, error)
	// Decide closes a pending application; ErrNotFound if it was not pending.
	Decide(ctx context.Context, id primitive.ObjectID, status models.ApplicationStatus, by primitive.ObjectID, at time.Time) error
}

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Notification, error)
	ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error)
	MarkSeen(ctx context.Context, id, userID primitive.ObjectID) (*models.Notification, error)
}

type FileStore interface {
	Create(ctx context.Context, f *models.File) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.File, error)
	// ListByRepo orders by importance desc, then newest.
	ListByRepo(ctx context.Context, repoID primitive.ObjectID) ([]models.File, error)
	ListByUploader(ctx context.Context, userID primitive.ObjectID) ([]models.File, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type PasswordResetStore interface {
	// ReplaceForUser removes earlier resets of the user before inserting r.
	ReplaceForUser(ctx context.Context, r *models.PasswordReset) error
	FindUnusedByHash(ctx context.Context, hash string) (*models.PasswordReset, error)
	// MarkUsed returns ErrNotFound when the reset was already consumed.
	MarkUsed(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

// Stores bundles every store the services need.
type Stores struct {
	Users          UserStore
	Repositories   RepositoryStore
	Invitations    InvitationStore
	Applications   ApplicationStore
	Notifications  NotificationStore
	Files          FileStore
	PasswordResets PasswordResetStore
}

// DefaultUserListLimit caps public directory listings.
const DefaultUserListLimit = 30
