package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/repohub/repohub-backend/internal/models"
	"github.com/repohub/repohub-backend/pkg/utils"
)

func TestRegister_CreatesPersonalRepository(t *testing.T) {
	e := newEnv(t)

	res, err := e.auth.Register(e.ctx, RegisterInput{Username: "Ana", Email: " ANA@Example.com ", Password: strongPassword})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", res.User.Email)
	assert.Equal(t, "Repositorio de Ana", res.Repository.Name)

	user, err := e.stores.Users.GetByID(e.ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{res.Repository.ID}, user.Repositories)
	assert.NotEqual(t, strongPassword, user.PasswordHash)

	repo, err := e.stores.Repositories.GetByID(e.ctx, res.Repository.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RepoTypeSimple, repo.Type)
	assert.Equal(t, models.RepoModePersonal, repo.Simple.Mode)
	assert.Equal(t, models.PrivacyPrivate, repo.Privacy())
	assert.True(t, repo.IsOwner(user.ID))
}

func TestRegister_Validation(t *testing.T) {
	e := newEnv(t)
	e.register(t, "ana")

	tests := []struct {
		name   string
		in     RegisterInput
		status int
	}{
		{"missing fields", RegisterInput{Username: "bea"}, 400},
		{"malformed email", RegisterInput{Username: "bea", Email: "nope", Password: strongPassword}, 422},
		{"weak password", RegisterInput{Username: "bea", Email: "bea@example.com", Password: "short"}, 422},
		{"blank username", RegisterInput{Username: "   ", Email: "bea@example.com", Password: strongPassword}, 400},
		{"duplicate username", RegisterInput{Username: "ana", Email: "other@example.com", Password: strongPassword}, 400},
		{"duplicate email", RegisterInput{Username: "bea", Email: "ana@example.com", Password: strongPassword}, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.auth.Register(e.ctx, tt.in)
			requireStatus(t, err, tt.status)
		})
	}

	_, err := e.auth.Register(e.ctx, RegisterInput{Username: "ana", Email: "x@example.com", Password: strongPassword})
	asError[*utils.ConflictError](t, err)
}

func TestRegister_AcceptsAnyNonEmptyUsername(t *testing.T) {
	e := newEnv(t)
	for i, name := range []string{"ana-maria", "José", "jo", "-bea"} {
		res, err := e.auth.Register(e.ctx, RegisterInput{
			Username: name,
			Email:    fmt.Sprintf("user%d@example.com", i),
			Password: strongPassword,
		})
		require.NoError(t, err, name)
		assert.Equal(t, name, res.User.Username)
	}
}

func TestLoginAndVerify(t *testing.T) {
	e := newEnv(t)
	user := e.register(t, "ana")

	_, err := e.auth.Login(e.ctx, "ana", "Wrong-Passw0rd!")
	requireStatus(t, err, 400)
	_, err = e.auth.Login(e.ctx, "nobody", strongPassword)
	requireStatus(t, err, 400)

	res, err := e.auth.Login(e.ctx, "ana", strongPassword)
	require.NoError(t, err)
	assert.True(t, res.TwoFA)
	assert.Len(t, res.LoginID, 32)
	msg := e.mail.last(t)
	assert.Equal(t, "ana@example.com", msg.To)
	code := match(t, codePattern, msg.HTML)

	_, err = e.auth.VerifyCode(e.ctx, "ana", "000000")
	requireStatus(t, err, 400)

	session, err := e.auth.VerifyCode(e.ctx, "ana", code)
	require.NoError(t, err)
	assert.Equal(t, e.clock.Now().Add(24*time.Hour), session.ExpiresAt)

	id, err := e.signer.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), id.ID)
	assert.Equal(t, "ana", id.Username)

	// The code is single use.
	_, err = e.auth.VerifyCode(e.ctx, "ana", code)
	requireStatus(t, err, 400)
}

func TestVerifyCode_Expired(t *testing.T) {
	e := newEnv(t)
	e.register(t, "ana")
	_, err := e.auth.Login(e.ctx, "ana", strongPassword)
	require.NoError(t, err)
	code := match(t, codePattern, e.mail.last(t).HTML)

	e.clock.Advance(11 * time.Minute)
	_, err = e.auth.VerifyCode(e.ctx, "ana", code)
	requireStatus(t, err, 400)
	assert.Contains(t, err.Error(), "expirado")
}

func TestLogin_MailFailureIsServerError(t *testing.T) {
	e := newEnv(t)
	e.register(t, "ana")
	e.mail.err = errors.New("smtp down")

	_, err := e.auth.Login(e.ctx, "ana", strongPassword)
	requireStatus(t, err, 500)
}

func TestPasswordReset(t *testing.T) {
	e := newEnv(t)
	e.register(t, "ana")

	require.NoError(t, e.auth.RequestPasswordReset(e.ctx, "missing@example.com"))
	assert.Equal(t, 0, e.mail.count())

	require.NoError(t, e.auth.RequestPasswordReset(e.ctx, "ANA@example.com"))
	token := match(t, tokenPattern, e.mail.last(t).HTML)

	requireStatus(t, e.auth.ResetPassword(e.ctx, token, "weak"), 422)
	requireStatus(t, e.auth.ResetPassword(e.ctx, "deadbeef", "Otra-Clave-2024!"), 400)
	requireStatus(t, e.auth.ResetPassword(e.ctx, "", ""), 400)

	require.NoError(t, e.auth.ResetPassword(e.ctx, token, "Otra-Clave-2024!"))
	requireStatus(t, e.auth.ResetPassword(e.ctx, token, "Otra-Clave-2025!"), 400)

	_, err := e.auth.Login(e.ctx, "ana", strongPassword)
	requireStatus(t, err, 400)
	_, err = e.auth.Login(e.ctx, "ana", "Otra-Clave-2024!")
	require.NoError(t, err)
}

func TestPasswordReset_ExpiredAndSuperseded(t *testing.T) {
	e := newEnv(t)
	e.register(t, "ana")

	require.NoError(t, e.auth.RequestPasswordReset(e.ctx, "ana@example.com"))
	first := match(t, tokenPattern, e.mail.last(t).HTML)
	require.NoError(t, e.auth.RequestPasswordReset(e.ctx, "ana@example.com"))
	second := match(t, tokenPattern, e.mail.last(t).HTML)

	requireStatus(t, e.auth.ResetPassword(e.ctx, first, "Otra-Clave-2024!"), 400)

	e.clock.Advance(2 * time.Hour)
	requireStatus(t, e.auth.ResetPassword(e.ctx, second, "Otra-Clave-2024!"), 400)
}

func TestPasswordReset_ConcurrentUseSucceedsOnce(t *testing.T) {
	e := newEnv(t)
	e.register(t, "ana")
	require.NoError(t, e.auth.RequestPasswordReset(e.ctx, "ana@example.com"))
	token := match(t, tokenPattern, e.mail.last(t).HTML)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.auth.ResetPassword(e.ctx, token, "Otra-Clave-2024!")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, ok)
}

func TestResendCode_Throttled(t *testing.T) {
	e := newEnv(t)
	e.register(t, "ana")

	require.NoError(t, e.auth.ResendCode(e.ctx, "ana", "10.0.0.1"))
	assert.Equal(t, 1, e.mail.count())

	err := e.auth.ResendCode(e.ctx, "ana", "10.0.0.1")
	requireStatus(t, err, 429)
	rl := asError[*utils.RateLimitError](t, err)
	assert.Equal(t, 60, rl.RetryAfter)

	e.clock.Advance(time.Minute)
	require.NoError(t, e.auth.ResendCode(e.ctx, "ana", "10.0.0.1"))
	assert.Equal(t, 2, e.mail.count())
}

func TestResendCode_UnknownUserLooksSuccessful(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.auth.ResendCode(e.ctx, "ghost", "10.0.0.1"))
	require.NoError(t, e.auth.ResendCode(e.ctx, "", "10.0.0.2"))
	assert.Equal(t, 0, e.mail.count())

	requireStatus(t, e.auth.ResendCode(e.ctx, "ghost", "10.0.0.9"), 429)
}
