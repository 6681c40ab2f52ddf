package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/repohub/repohub-backend/internal/auth"
	"github.com/repohub/repohub-backend/internal/logging"
	"github.com/repohub/repohub-backend/internal/mailer"
	"github.com/repohub/repohub-backend/internal/models"
	"github.com/repohub/repohub-backend/internal/ratelimit"
	"github.com/repohub/repohub-backend/internal/store"
	"github.com/repohub/repohub-backend/pkg/utils"
)

type AuthConfig struct {
	AppName       string
	FrontendURL   string
	TwoFATTL      time.Duration
	ResetTokenTTL time.Duration
}

// AuthService implements registration, two-factor login and password reset.
type AuthService struct {
	users   store.UserStore
	repos   store.RepositoryStore
	resets  store.PasswordResetStore
	limiter *ratelimit.Limiter
	mail    mailer.Mailer
	signer  *auth.TokenSigner
	cfg     AuthConfig
	log     logging.Logger
	now     func() time.Time
}

func NewAuthService(stores store.Stores, limiter *ratelimit.Limiter, mail mailer.Mailer, signer *auth.TokenSigner, cfg AuthConfig, log logging.Logger) *AuthService {
	return &AuthService{
		users:   stores.Users,
		repos:   stores.Repositories,
		resets:  stores.PasswordResets,
		limiter: limiter,
		mail:    mail,
		signer:  signer,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

const (
	msgAllFieldsRequired  = "Todos los campos son obligatorios."
	msgUserOrEmailTaken   = "El usuario o email ya están en uso."
	msgInvalidCredentials = "Credenciales inválidas."
	msgInvalidResetToken  = "Token inválido o expirado."
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type RegisterResult struct {
	User       models.UserSummary       `json:"user"`
	Repository models.RepositorySummary `json:"repository"`
}

// Register creates the account and its personal repository.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = utils.NormalizeEmail(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, &utils.ValidationError{Message: msgAllFieldsRequired}
	}
	if err := validation.Validate(in.Email, is.Email.Error("Email inválido.")); err != nil {
		return nil, &utils.ValidationError{Field: "email", Message: err.Error(), Status: 422}
	}
	if err := utils.ValidatePasswordStrength(in.Password); err != nil {
		return nil, err
	}

	_, err := s.users.FindByUsernameOrEmail(ctx, in.Username, in.Email)
	if err == nil {
		return nil, &utils.ConflictError{Message: msgUserOrEmailTaken}
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, utils.Internal("lookup user", err)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, utils.Internal("hash password", err)
	}

	now := s.now().UTC()
	user := &models.User{
		CreatedAt:    now,
		UpdatedAt:    now,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, &utils.ConflictError{Message: msgUserOrEmailTaken}
		}
		return nil, utils.Internal("create user", err)
	}

	repo, err := models.NewRepository(user.ID, models.RepositoryBase{
		Name:        "Repositorio de " + user.Username,
		Description: "Repositorio personal",
	}, models.SimpleSettings{Mode: models.RepoModePersonal, Privacy: models.PrivacyPrivate}, now)
	if err != nil {
		return nil, utils.Internal("build personal repository", err)
	}
	if err := s.repos.Create(ctx, repo); err != nil {
		return nil, utils.Internal("create personal repository", err)
	}
	if err := s.users.AddRepository(ctx, user.ID, repo.ID); err != nil {
		return nil, utils.Internal("link personal repository", err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID.Hex(), "repo_id", repo.ID.Hex())
	return &RegisterResult{
		User:       user.Summary(),
		Repository: models.RepositorySummary{ID: repo.ID, Name: repo.Name},
	}, nil
}

type LoginResult struct {
	LoginID string             `json:"login_id"`
	TwoFA   bool               `json:"two_fa"`
	User    models.UserSummary `json:"user"`
}

// Login checks the password and emails a fresh 2FA code. A mail failure is
// returned to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, &utils.ValidationError{Message: "Usuario y contraseña son obligatorios."}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &utils.AuthError{Message: msgInvalidCredentials}
	}
	if err != nil {
		return nil, utils.Internal("lookup user", err)
	}
	ok, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, &utils.AuthError{Message: msgInvalidCredentials}
	}

	if err := s.issueCode(ctx, user); err != nil {
		return nil, err
	}

	loginID, err := utils.RandomHex(16)
	if err != nil {
		return nil, utils.Internal("generate login id", err)
	}
	return &LoginResult{LoginID: loginID, TwoFA: true, User: user.Summary()}, nil
}

func (s *AuthService) issueCode(ctx context.Context, user *models.User) error {
	code, err := utils.SixDigitCode()
	if err != nil {
		return utils.Internal("generate code", err)
	}
	expires := s.now().Add(s.cfg.TwoFATTL).UTC()
	if err := s.users.SetVerificationCode(ctx, user.ID, code, expires); err != nil {
		return utils.Internal("store code", err)
	}
	msg := mailer.VerificationCode(s.cfg.AppName, user.Email, code, s.cfg.TwoFATTL)
	if err := s.mail.Send(ctx, msg); err != nil {
		return utils.Internal("send verification code", err)
	}
	return nil
}

type SessionResult struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	User      models.UserSummary `json:"user"`
}

// VerifyCode consumes the pending 2FA code and issues the session token.
func (s *AuthService) VerifyCode(ctx context.Context, username, code string) (*SessionResult, error) {
	username = strings.TrimSpace(username)
	code = strings.TrimSpace(code)
	if username == "" || code == "" {
		return nil, &utils.ValidationError{Message: "Usuario y código son obligatorios."}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &utils.AuthError{Message: "Usuario no encontrado."}
	}
	if err != nil {
		return nil, utils.Internal("lookup user", err)
	}

	if user.VerificationCode == "" || subtle.ConstantTimeCompare([]byte(user.VerificationCode), []byte(code)) != 1 {
		return nil, &utils.AuthError{Message: "Código inválido."}
	}
	if user.VerificationCodeExpires == nil || user.VerificationCodeExpires.Before(s.now()) {
		return nil, &utils.AuthError{Message: "Código expirado."}
	}

	token, expiresAt, err := s.signer.Issue(auth.Identity{ID: user.ID.Hex(), Email: user.Email, Username: user.Username})
	if err != nil {
		return nil, utils.Internal("issue session token", err)
	}
	if err := s.users.ClearVerificationCode(ctx, user.ID); err != nil {
		return nil, utils.Internal("clear code", err)
	}
	return &SessionResult{Token: token, ExpiresAt: expiresAt, User: user.Summary()}, nil
}

// RequestPasswordReset never reveals whether the email is registered.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return &utils.ValidationError{Field: "email", Message: "El email es obligatorio."}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Error(ctx, "password reset lookup failed", "err", err)
		}
		return nil
	}

	raw, err := utils.RandomHex(32)
	if err != nil {
		s.log.Error(ctx, "password reset token generation failed", "err", err)
		return nil
	}
	now := s.now().UTC()
	reset := &models.PasswordReset{
		UserID:    user.ID,
		TokenHash: utils.HashToken(raw),
		ExpiresAt: now.Add(s.cfg.ResetTokenTTL),
		CreatedAt: now,
	}
	if err := s.resets.ReplaceForUser(ctx, reset); err != nil {
		s.log.Error(ctx, "password reset store failed", "user_id", user.ID.Hex(), "err", err)
		return nil
	}

	link := s.cfg.FrontendURL + "/reset-password?token=" + raw
	if err := s.mail.Send(ctx, mailer.PasswordReset(s.cfg.AppName, user.Email, link, s.cfg.ResetTokenTTL)); err != nil {
		s.log.Error(ctx, "password reset mail failed", "user_id", user.ID.Hex(), "err", err)
	}
	return nil
}

// ResetPassword replaces the password of the token owner. The token is
// single use and the caller is not logged in.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return &utils.ValidationError{Message: "Token y nueva contraseña son obligatorios."}
	}
	if err := utils.ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	reset, err := s.resets.FindUnusedByHash(ctx, utils.HashToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return &utils.AuthError{Message: msgInvalidResetToken}
	}
	if err != nil {
		return utils.Internal("lookup reset token", err)
	}
	now := s.now().UTC()
	if reset.ExpiresAt.Before(now) {
		return &utils.AuthError{Message: msgInvalidResetToken}
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return utils.Internal("hash password", err)
	}
	// Claim the token first so concurrent resets cannot both succeed.
	if err := s.resets.MarkUsed(ctx, reset.ID, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &utils.AuthError{Message: msgInvalidResetToken}
		}
		return utils.Internal("consume reset token", err)
	}
	if err := s.users.UpdatePassword(ctx, reset.UserID, hash); err != nil {
		return utils.Internal("update password", err)
	}
	s.log.Info(ctx, "password reset", "user_id", reset.UserID.Hex())
	return nil
}

// ResendCode issues a new 2FA code behind the resend limiter. Only a
// rate-limit rejection is reported; every other outcome looks like success.
func (s *AuthService) ResendCode(ctx context.Context, username, origin string) error {
	username = strings.TrimSpace(username)

	if err := s.limiter.Allow(ctx, ratelimit.Key(username, origin)); err != nil {
		var rl *utils.RateLimitError
		if errors.As(err, &rl) {
			return rl
		}
		s.log.Warn(ctx, "resend limiter unavailable", "err", err)
	}
	if username == "" {
		return nil
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Error(ctx, "resend lookup failed", "err", err)
		}
		return nil
	}
	if err := s.issueCode(ctx, user); err != nil {
		s.log.Error(ctx, "resend code failed", "user_id", user.ID.Hex(), "err", err)
	}
	return nil
}
