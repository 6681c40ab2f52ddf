// Package memstore keeps every document in process memory. It backs the
// memory store mode and the service tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/repohub/repohub-backend/internal/models"
	"github.com/repohub/repohub-backend/internal/store"
)

// New returns a fresh set of in-memory stores sharing nothing.
func New() store.Stores {
	return store.Stores{
		Users:          &Users{byID: map[primitive.ObjectID]models.User{}},
		Repositories:   &Repositories{byID: map[primitive.ObjectID]models.Repository{}},
		Invitations:    &Invitations{byID: map[primitive.ObjectID]models.Invitation{}},
		Applications:   &Applications{byID: map[primitive.ObjectID]models.Application{}},
		Notifications:  &Notifications{byID: map[primitive.ObjectID]models.Notification{}},
		Files:          &Files{byID: map[primitive.ObjectID]models.File{}},
		PasswordResets: &PasswordResets{byID: map[primitive.ObjectID]models.PasswordReset{}},
	}
}

type Users struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.User
}

func (s *Users) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Username == u.Username || existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.Repositories == nil {
		u.Repositories = []primitive.ObjectID{}
	}
	s.byID[u.ID] = cloneUser(*u)
	return nil
}

func (s *Users) find(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byID {
		if match(u) {
			c := cloneUser(u)
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Users) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.ID == id })
}

func (s *Users) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Username == username })
}

func (s *Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Email == email })
}

func (s *Users) FindByUsernameOrEmail(_ context.Context, username, email string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Username == username || u.Email == email })
}

func (s *Users) FindByEmails(_ context.Context, emails []string) ([]models.User, error) {
	want := map[string]bool{}
	for _, e := range emails {
		want[e] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.User{}
	for _, u := range s.byID {
		if want[u.Email] {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (s *Users) mutate(id primitive.ObjectID, fn func(*models.User)) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	s.byID[id] = u
	c := cloneUser(u)
	return &c, nil
}

func (s *Users) SetVerificationCode(_ context.Context, id primitive.ObjectID, code string, expires time.Time) error {
	_, err := s.mutate(id, func(u *models.User) {
		u.VerificationCode = code
		u.VerificationCodeExpires = &expires
	})
	return err
}

func (s *Users) ClearVerificationCode(_ context.Context, id primitive.ObjectID) error {
	_, err := s.mutate(id, func(u *models.User) {
		u.VerificationCode = ""
		u.VerificationCodeExpires = nil
	})
	return err
}

func (s *Users) UpdatePassword(_ context.Context, id primitive.ObjectID, hash string) error {
	_, err := s.mutate(id, func(u *models.User) { u.PasswordHash = hash })
	return err
}

func (s *Users) AddRepository(_ context.Context, userID, repoID primitive.ObjectID) error {
	_, err := s.mutate(userID, func(u *models.User) {
		for _, id := range u.Repositories {
			if id == repoID {
				return
			}
		}
		u.Repositories = append(u.Repositories, repoID)
		u.RepoCount++
	})
	return err
}

func (s *Users) RemoveRepository(_ context.Context, userID, repoID primitive.ObjectID) error {
	_, err := s.mutate(userID, func(u *models.User) {
		for i, id := range u.Repositories {
			if id == repoID {
				u.Repositories = append(u.Repositories[:i:i], u.Repositories[i+1:]...)
				u.RepoCount--
				return
			}
		}
	})
	return err
}

func (s *Users) UpdateProfile(_ context.Context, id primitive.ObjectID, update models.ProfileUpdate) (*models.User, error) {
	return s.mutate(id, func(u *models.User) { update.Apply(&u.Profile) })
}

func (s *Users) ListPublic(_ context.Context, q models.UserQuery) ([]models.User, error) {
	search := strings.ToLower(q.Search)
	s.mu.RLock()
	out := []models.User{}
	for _, u := range s.byID {
		if !u.IsPublic {
			continue
		}
		if search != "" && !containsFold(search, u.Username, u.Nombre, u.Apellido) {
			continue
		}
		c := cloneUser(u)
		c.PasswordHash = ""
		c.VerificationCode = ""
		c.VerificationCodeExpires = nil
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch q.Sort {
		case models.UserSortRepos:
			if a.RepoCount != b.RepoCount {
				return a.RepoCount > b.RepoCount
			}
			return a.CreatedAt.After(b.CreatedAt)
		case models.UserSortAntiguedad:
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})

	limit := q.Limit
	if limit <= 0 || limit > store.DefaultUserListLimit {
		limit = store.DefaultUserListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneUser(u models.User) models.User {
	u.Repositories = append([]primitive.ObjectID{}, u.Repositories...)
	if u.Hobbies != nil {
		u.Hobbies = append([]string{}, u.Hobbies...)
	}
	if u.VerificationCodeExpires != nil {
		t := *u.VerificationCodeExpires
		u.VerificationCodeExpires = &t
	}
	return u
}

func containsFold(needle string, haystack ...string) bool {
	for _, h := range haystack {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}
