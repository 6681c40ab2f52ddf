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

type Repositories struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.Repository
}

func (s *Repositories) Create(_ context.Context, r *models.Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	s.byID[r.ID] = cloneRepo(*r)
	return nil
}

func (s *Repositories) GetByID(_ context.Context, id primitive.ObjectID) (*models.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := cloneRepo(r)
	return &c, nil
}

func (s *Repositories) list(match func(models.Repository) bool) []models.Repository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Repository{}
	for _, r := range s.byID {
		if match(r) {
			out = append(out, cloneRepo(r))
		}
	}
	return out
}

func newestRepoFirst(out []models.Repository) {
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
}

func (s *Repositories) ListOwnedBy(_ context.Context, userID primitive.ObjectID) ([]models.Repository, error) {
	out := s.list(func(r models.Repository) bool { return r.Owner == userID })
	newestRepoFirst(out)
	return out, nil
}

func (s *Repositories) ListParticipating(_ context.Context, userID primitive.ObjectID) ([]models.Repository, error) {
	out := s.list(func(r models.Repository) bool {
		_, ok := r.Participant(userID)
		return ok && r.Owner != userID
	})
	newestRepoFirst(out)
	return out, nil
}

func (s *Repositories) ListPublic(_ context.Context, search string) ([]models.Repository, error) {
	search = strings.ToLower(search)
	out := s.list(func(r models.Repository) bool {
		if r.Privacy() != models.PrivacyPublic {
			return false
		}
		if search == "" {
			return true
		}
		return containsFold(search, append([]string{r.Name}, r.Tags...)...)
	})
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsRxUno != b.IsRxUno {
			return a.IsRxUno
		}
		if a.FeaturedWeight != b.FeaturedWeight {
			return a.FeaturedWeight > b.FeaturedWeight
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out, nil
}

func (s *Repositories) mutate(id primitive.ObjectID, fn func(*models.Repository) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return false, store.ErrNotFound
	}
	changed := fn(&r)
	if changed {
		r.UpdatedAt = time.Now().UTC()
		s.byID[id] = r
	}
	return changed, nil
}

func (s *Repositories) AddParticipant(_ context.Context, repoID primitive.ObjectID, p models.Participant) (bool, error) {
	return s.mutate(repoID, func(r *models.Repository) bool { return r.AddParticipant(p) })
}

func (s *Repositories) AddFile(_ context.Context, repoID, fileID primitive.ObjectID) error {
	_, err := s.mutate(repoID, func(r *models.Repository) bool {
		for _, id := range r.Files {
			if id == fileID {
				return false
			}
		}
		r.Files = append(r.Files, fileID)
		return true
	})
	return err
}

func (s *Repositories) RemoveFile(_ context.Context, repoID, fileID primitive.ObjectID) error {
	_, err := s.mutate(repoID, func(r *models.Repository) bool {
		for i, id := range r.Files {
			if id == fileID {
				r.Files = append(r.Files[:i:i], r.Files[i+1:]...)
				return true
			}
		}
		return false
	})
	if err == store.ErrNotFound {
		return nil
	}
	return err
}

func (s *Repositories) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func cloneRepo(r models.Repository) models.Repository {
	r.Participants = append([]models.Participant{}, r.Participants...)
	r.Files = append([]primitive.ObjectID{}, r.Files...)
	r.Tags = append([]string{}, r.Tags...)
	if r.Simple != nil {
		s := *r.Simple
		r.Simple = &s
	}
	if r.Creator != nil {
		c := *r.Creator
		c.InterestAreas = append([]string{}, c.InterestAreas...)
		c.GeoAreas = append([]string{}, c.GeoAreas...)
		c.Sectors = append([]string{}, c.Sectors...)
		r.Creator = &c
	}
	return r
}
