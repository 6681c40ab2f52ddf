package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/repohub/repohub-backend/internal/models"
	"github.com/repohub/repohub-backend/internal/store"
)

type Invitations struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.Invitation
}

func (s *Invitations) Create(_ context.Context, inv *models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Token == inv.Token {
			return store.ErrDuplicate
		}
	}
	if inv.ID.IsZero() {
		inv.ID = primitive.NewObjectID()
	}
	s.byID[inv.ID] = *inv
	return nil
}

func (s *Invitations) find(match func(models.Invitation) bool) (*models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.byID {
		if match(inv) {
			c := inv
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Invitations) FindPending(_ context.Context, repoID, userID primitive.ObjectID) (*models.Invitation, error) {
	return s.find(func(i models.Invitation) bool {
		return i.Repo == repoID && i.InvitedUser == userID && i.Status == models.InvitationPending
	})
}

func (s *Invitations) FindPendingByToken(_ context.Context, token string, userID primitive.ObjectID) (*models.Invitation, error) {
	return s.find(func(i models.Invitation) bool {
		return i.Token == token && i.InvitedUser == userID && i.Status == models.InvitationPending
	})
}

func (s *Invitations) ListPendingForUser(_ context.Context, userID primitive.ObjectID) ([]models.Invitation, error) {
	s.mu.RLock()
	out := []models.Invitation{}
	for _, inv := range s.byID {
		if inv.InvitedUser == userID && inv.Status == models.InvitationPending {
			out = append(out, inv)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Invitations) Transition(_ context.Context, id primitive.ObjectID, from, to models.InvitationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.byID[id]
	if !ok || inv.Status != from {
		return store.ErrNotFound
	}
	inv.Status = to
	inv.UpdatedAt = time.Now().UTC()
	s.byID[id] = inv
	return nil
}

type Applications struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.Application
}

func (s *Applications) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if app.ID.IsZero() {
		app.ID = primitive.NewObjectID()
	}
	s.byID[app.ID] = *app
	return nil
}

func (s *Applications) GetByID(_ context.Context, id primitive.ObjectID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &app, nil
}

func (s *Applications) ListByRepo(_ context.Context, repoID primitive.ObjectID) ([]models.Application, error) {
	s.mu.RLock()
	out := []models.Application{}
	for _, app := range s.byID {
		if app.Repo == repoID {
			out = append(out, app)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Applications) Decide(_ context.Context, id primitive.ObjectID, status models.ApplicationStatus, by primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.byID[id]
	if !ok || app.Status != models.ApplicationPending {
		return store.ErrNotFound
	}
	app.Status = status
	app.DecidedBy = &by
	app.DecidedAt = &at
	app.UpdatedAt = at
	s.byID[id] = app
	return nil
}

type Notifications struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.Notification
}

func (s *Notifications) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	s.byID[n.ID] = *n
	return nil
}

func (s *Notifications) GetByID(_ context.Context, id primitive.ObjectID) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &n, nil
}

func (s *Notifications) ListForUser(_ context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	s.mu.RLock()
	out := []models.Notification{}
	for _, n := range s.byID {
		if n.User == userID {
			out = append(out, n)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Notifications) MarkSeen(_ context.Context, id, userID primitive.ObjectID) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok || n.User != userID {
		return nil, store.ErrNotFound
	}
	n.Seen = true
	s.byID[id] = n
	return &n, nil
}

type Files struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.File
}

func (s *Files) Create(_ context.Context, f *models.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	s.byID[f.ID] = *f
	return nil
}

func (s *Files) GetByID(_ context.Context, id primitive.ObjectID) (*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &f, nil
}

func (s *Files) list(match func(models.File) bool) []models.File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.File{}
	for _, f := range s.byID {
		if match(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s *Files) ListByRepo(_ context.Context, repoID primitive.ObjectID) ([]models.File, error) {
	out := s.list(func(f models.File) bool { return f.Repository == repoID })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Files) ListByUploader(_ context.Context, userID primitive.ObjectID) ([]models.File, error) {
	out := s.list(func(f models.File) bool { return f.UploadedBy == userID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Files) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

// PasswordResets drops expired records lazily on lookup.
type PasswordResets struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.PasswordReset
}

func (s *PasswordResets) ReplaceForUser(_ context.Context, r *models.PasswordReset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.byID {
		if existing.UserID == r.UserID {
			delete(s.byID, id)
		}
	}
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	s.byID[r.ID] = *r
	return nil
}

func (s *PasswordResets) FindUnusedByHash(_ context.Context, hash string) (*models.PasswordReset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.byID {
		if r.TokenHash == hash && r.UsedAt == nil {
			c := r
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *PasswordResets) MarkUsed(_ context.Context, id primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok || r.UsedAt != nil {
		return store.ErrNotFound
	}
	r.UsedAt = &at
	s.byID[id] = r
	return nil
}
