package services

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/repohub/repohub-backend/internal/models"
	"github.com/repohub/repohub-backend/internal/store"
	"github.com/repohub/repohub-backend/pkg/utils"
)

// Access is the result of a successful authorization check on a repository.
type Access struct {
	Repo        *models.Repository
	Participant models.Participant
	IsOwner     bool
}

const msgNotAuthorized = "No autorizado"

// RequireOwner succeeds only for the repository owner.
func RequireOwner(repo *models.Repository, user primitive.ObjectID) (Access, error) {
	if !repo.IsOwner(user) {
		return Access{}, utils.Forbidden(msgNotAuthorized)
	}
	p, _ := repo.Participant(user)
	return Access{Repo: repo, Participant: p, IsOwner: true}, nil
}

// RequireParticipant succeeds for any active participant, owner included.
func RequireParticipant(repo *models.Repository, user primitive.ObjectID) (Access, error) {
	p, ok := repo.Participant(user)
	if !ok && repo.IsOwner(user) {
		p, ok = models.Participant{User: user, Role: models.RoleOwner, Status: models.ParticipantActive}, true
	}
	if !ok || p.Status != models.ParticipantActive {
		return Access{}, utils.Forbidden(msgNotAuthorized)
	}
	return Access{Repo: repo, Participant: p, IsOwner: repo.IsOwner(user)}, nil
}

// RequireRole succeeds for active participants holding one of roles. The
// owner always passes.
func RequireRole(repo *models.Repository, user primitive.ObjectID, roles ...models.Role) (Access, error) {
	access, err := RequireParticipant(repo, user)
	if err != nil {
		return Access{}, err
	}
	if access.IsOwner {
		return access, nil
	}
	for _, r := range roles {
		if access.Participant.Role == r {
			return access, nil
		}
	}
	return Access{}, utils.Forbidden(msgNotAuthorized)
}

// CanView reports whether user may read the repository.
func CanView(repo *models.Repository, user primitive.ObjectID) bool {
	if repo.Privacy() == models.PrivacyPublic {
		return true
	}
	_, err := RequireParticipant(repo, user)
	return err == nil
}

var errRepoNotFound = &utils.NotFoundError{Resource: "repository", Message: "Repositorio no encontrado"}

func loadRepository(ctx context.Context, repos store.RepositoryStore, id primitive.ObjectID) (*models.Repository, error) {
	repo, err := repos.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errRepoNotFound
	}
	if err != nil {
		return nil, utils.Internal("load repository", err)
	}
	return repo, nil
}
