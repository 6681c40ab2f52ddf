package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/repohub/repohub-backend/internal/models"
	"github.com/repohub/repohub-backend/internal/store"
)

func TestUsers_CreateRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := New().Users

	require.NoError(t, s.Create(ctx, &models.User{Username: "ana", Email: "ana@x.io"}))
	assert.ErrorIs(t, s.Create(ctx, &models.User{Username: "ana", Email: "other@x.io"}), store.ErrDuplicate)
	assert.ErrorIs(t, s.Create(ctx, &models.User{Username: "bea", Email: "ana@x.io"}), store.ErrDuplicate)
}

func TestUsers_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New().Users
	u := &models.User{Username: "ana", Email: "ana@x.io"}
	require.NoError(t, s.Create(ctx, u))

	got, err := s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	got.Username = "mutated"

	again, err := s.GetByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
}

func TestUsers_ListPublic(t *testing.T) {
	ctx := context.Background()
	s := New().Users
	base := time.Now()
	for i, name := range []string{"ana", "bea", "carla"} {
		u := &models.User{Username: name, Email: name + "@x.io", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		u.IsPublic = name != "bea"
		u.RepoCount = i
		require.NoError(t, s.Create(ctx, u))
	}

	users, err := s.ListPublic(ctx, models.UserQuery{})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "carla", users[0].Username)

	users, err = s.ListPublic(ctx, models.UserQuery{Sort: models.UserSortAntiguedad})
	require.NoError(t, err)
	assert.Equal(t, "ana", users[0].Username)

	users, err = s.ListPublic(ctx, models.UserQuery{Search: "CAR"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "carla", users[0].Username)
}

func TestRepositories_AddParticipantConcurrently(t *testing.T) {
	ctx := context.Background()
	s := New().Repositories
	owner := primitive.NewObjectID()
	repo, err := models.NewRepository(owner, models.RepositoryBase{Name: "x"}, models.SimpleSettings{}, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, repo))

	user := primitive.NewObjectID()
	var wg sync.WaitGroup
	added := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.AddParticipant(ctx, repo.ID, models.Participant{User: user, Role: models.RoleViewer, Status: models.ParticipantActive})
			assert.NoError(t, err)
			added <- ok
		}()
	}
	wg.Wait()
	close(added)

	count := 0
	for ok := range added {
		if ok {
			count++
		}
	}
	assert.Equal(t, 1, count)

	got, err := s.GetByID(ctx, repo.ID)
	require.NoError(t, err)
	assert.Len(t, got.Participants, 2)
}

func TestRepositories_ListPublicOrdering(t *testing.T) {
	ctx := context.Background()
	s := New().Repositories
	owner := primitive.NewObjectID()
	now := time.Now()

	mk := func(name string, attrs models.RepositoryAttrs, rx bool, weight int, age time.Duration) {
		r, err := models.NewRepository(owner, models.RepositoryBase{Name: name, IsRxUno: rx}, attrs, now.Add(-age))
		require.NoError(t, err)
		if !rx {
			r.FeaturedWeight = weight
		}
		require.NoError(t, s.Create(ctx, r))
	}
	mk("old-public", models.SimpleSettings{Privacy: models.PrivacyPublic}, false, 0, 2*time.Hour)
	mk("new-public", models.SimpleSettings{Privacy: models.PrivacyPublic}, false, 0, time.Hour)
	mk("private", models.SimpleSettings{Privacy: models.PrivacyPrivate}, false, 0, 0)
	mk("weighted", models.CreatorSettings{}, false, 50, 3*time.Hour)
	mk("rxuno", models.CreatorSettings{}, true, 0, 4*time.Hour)

	repos, err := s.ListPublic(ctx, "")
	require.NoError(t, err)
	var names []string
	for _, r := range repos {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"rxuno", "weighted", "new-public", "old-public"}, names)

	repos, err = s.ListPublic(ctx, "WEIGH")
	require.NoError(t, err)
	require.Len(t, repos, 1)
}

func TestInvitations_TransitionIsConditional(t *testing.T) {
	ctx := context.Background()
	s := New().Invitations
	inv := &models.Invitation{Token: "t", Status: models.InvitationPending}
	require.NoError(t, s.Create(ctx, inv))

	require.NoError(t, s.Transition(ctx, inv.ID, models.InvitationPending, models.InvitationAccepted))
	assert.ErrorIs(t, s.Transition(ctx, inv.ID, models.InvitationPending, models.InvitationAccepted), store.ErrNotFound)
}

func TestPasswordResets_SingleUseAndReplace(t *testing.T) {
	ctx := context.Background()
	s := New().PasswordResets
	user := primitive.NewObjectID()

	first := &models.PasswordReset{UserID: user, TokenHash: "h1", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, s.ReplaceForUser(ctx, first))
	second := &models.PasswordReset{UserID: user, TokenHash: "h2", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, s.ReplaceForUser(ctx, second))

	_, err := s.FindUnusedByHash(ctx, "h1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.FindUnusedByHash(ctx, "h2")
	require.NoError(t, err)
	require.NoError(t, s.MarkUsed(ctx, got.ID, time.Now()))
	assert.ErrorIs(t, s.MarkUsed(ctx, got.ID, time.Now()), store.ErrNotFound)

	_, err = s.FindUnusedByHash(ctx, "h2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// Expiry belongs to the caller's clock, as with the Mongo store.
func TestPasswordResets_FindIgnoresExpiry(t *testing.T) {
	ctx := context.Background()
	s := New().PasswordResets
	old := &models.PasswordReset{UserID: primitive.NewObjectID(), TokenHash: "h", ExpiresAt: time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)}
	require.NoError(t, s.ReplaceForUser(ctx, old))

	got, err := s.FindUnusedByHash(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, old.ID, got.ID)
}

func TestFiles_ListByRepoOrdering(t *testing.T) {
	ctx := context.Background()
	s := New().Files
	repo := primitive.NewObjectID()
	now := time.Now()
	require.NoError(t, s.Create(ctx, &models.File{Title: "low", Repository: repo, Importance: 0, CreatedAt: now}))
	require.NoError(t, s.Create(ctx, &models.File{Title: "high-old", Repository: repo, Importance: 3, CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, s.Create(ctx, &models.File{Title: "high-new", Repository: repo, Importance: 3, CreatedAt: now}))
	require.NoError(t, s.Create(ctx, &models.File{Title: "elsewhere", Repository: primitive.NewObjectID()}))

	files, err := s.ListByRepo(ctx, repo)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "high-new", files[0].Title)
	assert.Equal(t, "high-old", files[1].Title)
	assert.Equal(t, "low", files[2].Title)
}
