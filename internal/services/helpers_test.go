package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/repohub/repohub-backend/internal/auth"
	"github.com/repohub/repohub-backend/internal/logging"
	"github.com/repohub/repohub-backend/internal/mailer"
	"github.com/repohub/repohub-backend/internal/models"
	"github.com/repohub/repohub-backend/internal/ratelimit"
	"github.com/repohub/repohub-backend/internal/store"
	"github.com/repohub/repohub-backend/internal/store/memstore"
	"github.com/repohub/repohub-backend/pkg/utils"
)

const strongPassword = "Sup3r-Secreta!"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) last(t *testing.T) mailer.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var (
	codePattern  = regexp.MustCompile(`<b>(\d{6})</b>`)
	tokenPattern = regexp.MustCompile(`token=([0-9a-f]+)`)
)

func match(t *testing.T, re *regexp.Regexp, s string) string {
	t.Helper()
	m := re.FindStringSubmatch(s)
	require.Len(t, m, 2, "no match in %q", s)
	return m[1]
}

type recordingEmitter struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (e *recordingEmitter) Emit(ctx context.Context, n *models.Notification) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.sent = append(e.sent, *n)
	return nil
}

func (e *recordingEmitter) ofType(typ models.NotificationType) []models.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []models.Notification
	for _, n := range e.sent {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

type env struct {
	ctx        context.Context
	clock      *fakeClock
	stores     store.Stores
	mail       *recordingMailer
	emitter    *recordingEmitter
	signer     *auth.TokenSigner
	auth       *AuthService
	membership *MembershipService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := newFakeClock()
	stores := memstore.New()
	mail := &recordingMailer{}
	emitter := &recordingEmitter{}
	signer := auth.NewTokenSigner("test-secret", 24*time.Hour).WithClock(clock.Now)
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(ratelimit.RetentionTTL), ratelimit.DefaultPolicy).WithClock(clock.Now)

	authSvc := NewAuthService(stores, limiter, mail, signer, AuthConfig{
		AppName:       "RepoHub",
		FrontendURL:   "http://localhost:3000",
		TwoFATTL:      10 * time.Minute,
		ResetTokenTTL: time.Hour,
	}, logging.Discard())
	authSvc.now = clock.Now

	membership := NewMembershipService(stores, emitter, 7*24*time.Hour, logging.Discard())
	membership.now = clock.Now

	return &env{
		ctx:        context.Background(),
		clock:      clock,
		stores:     stores,
		mail:       mail,
		emitter:    emitter,
		signer:     signer,
		auth:       authSvc,
		membership: membership,
	}
}

func (e *env) register(t *testing.T, username string) *models.User {
	t.Helper()
	res, err := e.auth.Register(e.ctx, RegisterInput{Username: username, Email: username + "@example.com", Password: strongPassword})
	require.NoError(t, err)
	u, err := e.stores.Users.GetByID(e.ctx, res.User.ID)
	require.NoError(t, err)
	return u
}

func (e *env) createRepo(t *testing.T, owner primitive.ObjectID, in CreateRepositoryInput) *models.Repository {
	t.Helper()
	if in.Name == "" {
		in.Name = "Repo"
	}
	repo, err := e.membership.CreateRepository(e.ctx, owner, in)
	require.NoError(t, err)
	return repo
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, status, utils.StatusOf(err), "error: %v", err)
}

func asError[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	require.True(t, errors.As(err, &target), "unexpected error type %T: %v", err, err)
	return target
}
