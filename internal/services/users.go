package services

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/repohub/repohub-backend/internal/models"
	"github.com/repohub/repohub-backend/internal/store"
	"github.com/repohub/repohub-backend/pkg/utils"
)

type UserService struct {
	users store.UserStore
}

func NewUserService(users store.UserStore) *UserService {
	return &UserService{users: users}
}

var errUserNotFound = &utils.NotFoundError{Resource: "user", Message: "Usuario no encontrado"}

func (s *UserService) Me(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.Get(ctx, id)
}

func (s *UserService) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, utils.Internal("load user", err)
	}
	return u, nil
}

// List returns public profiles. Unknown sort keys fall back to newest first.
func (s *UserService) List(ctx context.Context, q models.UserQuery) ([]models.User, error) {
	q.Search = strings.TrimSpace(q.Search)
	switch q.Sort {
	case models.UserSortRepos, models.UserSortAntiguedad, models.UserSortReciente:
	default:
		q.Sort = models.UserSortReciente
	}
	if q.Limit <= 0 || q.Limit > store.DefaultUserListLimit {
		q.Limit = store.DefaultUserListLimit
	}
	list, err := s.users.ListPublic(ctx, q)
	if err != nil {
		return nil, utils.Internal("list users", err)
	}
	if list == nil {
		list = []models.User{}
	}
	return list, nil
}

// Update edits a profile. Users may only edit themselves.
func (s *UserService) Update(ctx context.Context, id, actor primitive.ObjectID, update models.ProfileUpdate) (*models.User, error) {
	if id != actor {
		return nil, utils.Forbidden("No puedes editar otro perfil.")
	}
	u, err := s.users.UpdateProfile(ctx, id, update)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, utils.Internal("update profile", err)
	}
	return u, nil
}
