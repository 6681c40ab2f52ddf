package services

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/repohub/repohub-backend/internal/logging"
	"github.com/repohub/repohub-backend/internal/models"
	"github.com/repohub/repohub-backend/internal/store"
	"github.com/repohub/repohub-backend/pkg/utils"
)

// MembershipService owns repositories and everything that changes who
// participates in them.
type MembershipService struct {
	users         store.UserStore
	repos         store.RepositoryStore
	invitations   store.InvitationStore
	applications  store.ApplicationStore
	notify        NotificationEmitter
	invitationTTL time.Duration
	log           logging.Logger
	now           func() time.Time
}

func NewMembershipService(stores store.Stores, notify NotificationEmitter, invitationTTL time.Duration, log logging.Logger) *MembershipService {
	return &MembershipService{
		users:         stores.Users,
		repos:         stores.Repositories,
		invitations:   stores.Invitations,
		applications:  stores.Applications,
		notify:        notify,
		invitationTTL: invitationTTL,
		log:           log,
		now:           time.Now,
	}
}

const (
	msgInvalidRepo           = "Repositorio no válido"
	msgInvalidRepoForAction  = "Repositorio no válido para esta acción"
	msgInvalidInvitation     = "Invitación inválida o ya respondida."
	msgApplicationNotFound   = "Aplicación no encontrada"
	msgApplicationDecided    = "La aplicación ya fue decidida."
	msgUnknownMemberEmails   = "Uno o más correos no están registrados"
	msgOnlyOwnerInvites      = "Solo el propietario puede invitar."
	msgInviteeMissing        = "El usuario no existe en la plataforma."
	msgInvitationPending     = "Ya existe una invitación pendiente para este usuario."
	msgAlreadyParticipant    = "Ya participas en este repositorio."
	msgOnlyOwnerDecides      = "Solo el propietario puede decidir aplicaciones."
	msgApplicationsForbidden = "Solo el propietario o un administrador pueden ver las aplicaciones."
)

type CreateRepositoryInput struct {
	Name          string
	Description   string
	Type          string
	Mode          string
	Privacy       string
	Tags          []string
	InterestAreas []string
	GeoAreas      []string
	Sectors       []string
	MemberEmails  []string
	IsRxUno       bool
}

func (in CreateRepositoryInput) attrs(t models.RepoType) models.RepositoryAttrs {
	if t == models.RepoTypeCreator {
		return models.CreatorSettings{InterestAreas: in.InterestAreas, GeoAreas: in.GeoAreas, Sectors: in.Sectors}
	}
	return models.SimpleSettings{Mode: models.RepoMode(in.Mode), Privacy: models.Privacy(in.Privacy)}
}

// CreateRepository creates a repository owned by owner. Member emails must
// all belong to registered users.
func (s *MembershipService) CreateRepository(ctx context.Context, owner primitive.ObjectID, in CreateRepositoryInput) (*models.Repository, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.Type == "" {
		return nil, &utils.ValidationError{Message: "Nombre y tipo son obligatorios."}
	}
	repoType, ok := models.ParseRepoType(in.Type)
	if !ok {
		return nil, &utils.ValidationError{Field: "type", Message: "Tipo de repositorio inválido."}
	}

	repo, err := models.NewRepository(owner, models.RepositoryBase{
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Tags:        in.Tags,
		IsRxUno:     in.IsRxUno,
	}, in.attrs(repoType), s.now().UTC())
	if err != nil {
		return nil, &utils.ValidationError{Message: "Modo o privacidad inválidos."}
	}

	members, err := s.resolveMembers(ctx, owner, in.MemberEmails)
	if err != nil {
		return nil, err
	}
	role := models.RoleViewer
	if repoType == models.RepoTypeCreator {
		role = models.RoleMember
	}
	for _, m := range members {
		repo.AddParticipant(models.Participant{User: m.ID, Role: role, Status: models.ParticipantActive})
	}

	if err := s.repos.Create(ctx, repo); err != nil {
		return nil, utils.Internal("create repository", err)
	}
	if err := s.users.AddRepository(ctx, owner, repo.ID); err != nil {
		return nil, utils.Internal("link repository", err)
	}
	s.log.Info(ctx, "repository created", "repo_id", repo.ID.Hex(), "type", repo.Type, "members", len(members))
	return repo, nil
}

func (s *MembershipService) resolveMembers(ctx context.Context, owner primitive.ObjectID, emails []string) ([]models.User, error) {
	seen := make(map[string]struct{}, len(emails))
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		e = utils.NormalizeEmail(e)
		if e == "" {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		normalized = append(normalized, e)
	}
	if len(normalized) == 0 {
		return nil, nil
	}

	found, err := s.users.FindByEmails(ctx, normalized)
	if err != nil {
		return nil, utils.Internal("resolve member emails", err)
	}
	if len(found) != len(normalized) {
		return nil, &utils.ValidationError{Field: "member_emails", Message: msgUnknownMemberEmails}
	}
	members := found[:0]
	for _, u := range found {
		if u.ID != owner {
			members = append(members, u)
		}
	}
	return members, nil
}

// GetRepository hides private simple repositories from non-participants.
func (s *MembershipService) GetRepository(ctx context.Context, id, viewer primitive.ObjectID) (*models.Repository, error) {
	repo, err := loadRepository(ctx, s.repos, id)
	if err != nil {
		return nil, err
	}
	if !CanView(repo, viewer) {
		return nil, utils.Forbidden(msgNotAuthorized)
	}
	return repo, nil
}

type RepoTotals struct {
	Total  int `json:"total"`
	Owner  int `json:"owner"`
	Member int `json:"member"`
	Files  int `json:"files"`
}

type MyRepositories struct {
	OwnerRepos  []models.Repository `json:"owner_repos"`
	MemberRepos []models.Repository `json:"member_repos"`
	Totals      RepoTotals          `json:"totals"`
}

func (s *MembershipService) ListMine(ctx context.Context, user primitive.ObjectID) (*MyRepositories, error) {
	owned, err := s.repos.ListOwnedBy(ctx, user)
	if err != nil {
		return nil, utils.Internal("list owned repositories", err)
	}
	member, err := s.repos.ListParticipating(ctx, user)
	if err != nil {
		return nil, utils.Internal("list member repositories", err)
	}
	out := &MyRepositories{OwnerRepos: nonNilRepos(owned), MemberRepos: nonNilRepos(member)}
	out.Totals.Owner = len(owned)
	out.Totals.Member = len(member)
	out.Totals.Total = len(owned) + len(member)
	for _, r := range owned {
		out.Totals.Files += len(r.Files)
	}
	for _, r := range member {
		out.Totals.Files += len(r.Files)
	}
	return out, nil
}

func (s *MembershipService) ListPublic(ctx context.Context, search string) ([]models.Repository, error) {
	list, err := s.repos.ListPublic(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, utils.Internal("list public repositories", err)
	}
	return nonNilRepos(list), nil
}

// DeleteRepository removes the repository; its files stay in place.
func (s *MembershipService) DeleteRepository(ctx context.Context, id, user primitive.ObjectID) error {
	repo, err := loadRepository(ctx, s.repos, id)
	if err != nil {
		return err
	}
	if _, err := RequireOwner(repo, user); err != nil {
		return err
	}
	if err := s.repos.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errRepoNotFound
		}
		return utils.Internal("delete repository", err)
	}
	if err := s.users.RemoveRepository(ctx, repo.Owner, id); err != nil {
		return utils.Internal("unlink repository", err)
	}
	s.log.Info(ctx, "repository deleted", "repo_id", id.Hex())
	return nil
}

// Invite sends a pending invitation for a simple repository to a registered user.
func (s *MembershipService) Invite(ctx context.Context, repoID, inviter primitive.ObjectID, email string, role models.Role) (*models.Invitation, error) {
	repo, err := loadRepository(ctx, s.repos, repoID)
	if err != nil {
		return nil, err
	}
	if repo.Type != models.RepoTypeSimple {
		return nil, &utils.AuthError{Message: msgInvalidRepo}
	}
	if !repo.IsOwner(inviter) {
		return nil, utils.Forbidden(msgOnlyOwnerInvites)
	}
	if role == "" {
		role = models.RoleViewer
	}
	if !models.InvitableRole(role) {
		return nil, &utils.ValidationError{Field: "role", Message: "Rol inválido."}
	}
	email = utils.NormalizeEmail(email)
	if email == "" {
		return nil, &utils.ValidationError{Field: "email", Message: "El email es obligatorio."}
	}

	invitee, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &utils.NotFoundError{Resource: "user", Message: msgInviteeMissing}
	}
	if err != nil {
		return nil, utils.Internal("lookup invitee", err)
	}
	if p, ok := repo.Participant(invitee.ID); ok && p.Status == models.ParticipantActive {
		return nil, &utils.ConflictError{Message: "El usuario ya participa en este repositorio."}
	}

	_, err = s.invitations.FindPending(ctx, repo.ID, invitee.ID)
	if err == nil {
		return nil, &utils.ConflictError{Message: msgInvitationPending}
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, utils.Internal("lookup pending invitation", err)
	}

	token, err := utils.RandomHex(24)
	if err != nil {
		return nil, utils.Internal("generate invitation token", err)
	}
	now := s.now().UTC()
	inv := &models.Invitation{
		Repo:        repo.ID,
		InvitedUser: invitee.ID,
		InvitedBy:   inviter,
		Role:        role,
		Token:       token,
		Status:      models.InvitationPending,
		ExpiresAt:   now.Add(s.invitationTTL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, &utils.ConflictError{Message: msgInvitationPending}
		}
		return nil, utils.Internal("create invitation", err)
	}

	s.emit(ctx, &models.Notification{
		User:    invitee.ID,
		Type:    models.NotifySimpleInvite,
		Title:   "Invitación a repositorio",
		Message: "Has sido invitado a " + repo.Name,
		Actor:   &inviter,
		Repo:    &repo.ID,
		Payload: map[string]string{"invitation_token": token, "role": string(role)},
	})
	return inv, nil
}

// AcceptInvitation joins user to the invited repository. The token must be
// pending, unexpired and addressed to user.
func (s *MembershipService) AcceptInvitation(ctx context.Context, token string, user primitive.ObjectID) (*models.Repository, error) {
	inv, err := s.pendingInvitation(ctx, token, user)
	if err != nil {
		return nil, err
	}
	repo, err := loadRepository(ctx, s.repos, inv.Repo)
	if err != nil {
		return nil, err
	}

	if err := s.invitations.Transition(ctx, inv.ID, models.InvitationPending, models.InvitationAccepted); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &utils.ValidationError{Message: msgInvalidInvitation}
		}
		return nil, utils.Internal("accept invitation", err)
	}
	p := models.Participant{User: user, Role: inv.Role, Status: models.ParticipantActive}
	if _, err := s.repos.AddParticipant(ctx, repo.ID, p); err != nil {
		return nil, utils.Internal("add participant", err)
	}
	repo.AddParticipant(p)

	s.emit(ctx, &models.Notification{
		User:    repo.Owner,
		Type:    models.NotifySimpleJoinAccepted,
		Title:   "Invitación aceptada",
		Message: "Un usuario se unió a " + repo.Name,
		Actor:   &user,
		Repo:    &repo.ID,
	})
	return repo, nil
}

func (s *MembershipService) RejectInvitation(ctx context.Context, token string, user primitive.ObjectID) error {
	inv, err := s.pendingInvitation(ctx, token, user)
	if err != nil {
		return err
	}
	if err := s.invitations.Transition(ctx, inv.ID, models.InvitationPending, models.InvitationRejected); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &utils.ValidationError{Message: msgInvalidInvitation}
		}
		return utils.Internal("reject invitation", err)
	}
	return nil
}

func (s *MembershipService) pendingInvitation(ctx context.Context, token string, user primitive.ObjectID) (*models.Invitation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &utils.ValidationError{Field: "token", Message: "El token es obligatorio."}
	}
	inv, err := s.invitations.FindPendingByToken(ctx, token, user)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &utils.ValidationError{Message: msgInvalidInvitation}
	}
	if err != nil {
		return nil, utils.Internal("lookup invitation", err)
	}
	if inv.Expired(s.now()) {
		if err := s.invitations.Transition(ctx, inv.ID, models.InvitationPending, models.InvitationExpired); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.log.Warn(ctx, "expire invitation failed", "invitation_id", inv.ID.Hex(), "err", err)
		}
		return nil, &utils.ValidationError{Message: msgInvalidInvitation}
	}
	return inv, nil
}

func (s *MembershipService) ListPendingInvitations(ctx context.Context, user primitive.ObjectID) ([]models.Invitation, error) {
	list, err := s.invitations.ListPendingForUser(ctx, user)
	if err != nil {
		return nil, utils.Internal("list invitations", err)
	}
	now := s.now()
	out := make([]models.Invitation, 0, len(list))
	for _, inv := range list {
		if !inv.Expired(now) {
			out = append(out, inv)
		}
	}
	return out, nil
}

// Apply records a pending application to a creator repository.
func (s *MembershipService) Apply(ctx context.Context, repoID, applicant primitive.ObjectID, attrs models.ApplicationAttrs) (*models.Application, error) {
	repo, err := loadRepository(ctx, s.repos, repoID)
	if err != nil {
		return nil, err
	}
	if repo.Type != models.RepoTypeCreator {
		return nil, &utils.ValidationError{Message: msgInvalidRepoForAction}
	}
	if err := validateApplication(attrs); err != nil {
		return nil, err
	}
	if _, ok := repo.Participant(applicant); ok {
		return nil, &utils.ConflictError{Message: msgAlreadyParticipant}
	}

	app, err := models.NewApplication(repo.ID, applicant, attrs, s.now().UTC())
	if err != nil {
		return nil, &utils.ValidationError{Message: "Tipo de aplicación inválido."}
	}
	if err := s.applications.Create(ctx, app); err != nil {
		return nil, utils.Internal("create application", err)
	}

	s.emit(ctx, &models.Notification{
		User:        repo.Owner,
		Type:        models.NotifyCreatorNewApplication,
		Title:       "Nueva aplicación",
		Message:     "Nueva aplicación en " + repo.Name,
		Actor:       &applicant,
		Repo:        &repo.ID,
		Application: &app.ID,
		Payload:     map[string]string{"kind": string(app.Kind)},
	})
	return app, nil
}

func validateApplication(attrs models.ApplicationAttrs) error {
	var err error
	switch a := attrs.(type) {
	case models.CreatorApplication:
		err = validation.ValidateStruct(&a,
			validation.Field(&a.CreatorType, validation.Required,
				validation.In(models.CreatorTecnico, models.CreatorVisual, models.CreatorAdministrador, models.CreatorExperto)),
			validation.Field(&a.DisponibilidadHoras, validation.Min(0.0)),
			validation.Field(&a.URLPortafolio, is.URL),
		)
	case models.MemberApplication:
		err = validation.ValidateStruct(&a,
			validation.Field(&a.Plan, validation.Required,
				validation.In(models.PlanCobre, models.PlanPlata, models.PlanOro, models.PlanDiamante)),
			validation.Field(&a.Amount, validation.Min(0.0)),
		)
	default:
		return &utils.ValidationError{Field: "kind", Message: "Tipo de aplicación inválido."}
	}
	return utils.FromValidation(err, 400)
}

// ListApplications is visible to the owner and admin participants.
func (s *MembershipService) ListApplications(ctx context.Context, repoID, user primitive.ObjectID) ([]models.Application, error) {
	repo, err := loadRepository(ctx, s.repos, repoID)
	if err != nil {
		return nil, err
	}
	if _, err := RequireRole(repo, user, models.RoleAdmin); err != nil {
		return nil, utils.Forbidden(msgApplicationsForbidden)
	}
	list, err := s.applications.ListByRepo(ctx, repo.ID)
	if err != nil {
		return nil, utils.Internal("list applications", err)
	}
	if list == nil {
		list = []models.Application{}
	}
	return list, nil
}

// Decide accepts or rejects a pending application. Repeating the outcome an
// application already has succeeds without side effects.
func (s *MembershipService) Decide(ctx context.Context, appID, approver primitive.ObjectID, accept bool) (*models.Application, error) {
	app, err := s.getApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	repo, err := loadRepository(ctx, s.repos, app.Repo)
	if err != nil {
		return nil, err
	}
	if _, err := RequireOwner(repo, approver); err != nil {
		return nil, utils.Forbidden(msgOnlyOwnerDecides)
	}

	want := models.ApplicationRejected
	if accept {
		want = models.ApplicationAccepted
	}

	if app.Status == models.ApplicationPending {
		now := s.now().UTC()
		err = s.applications.Decide(ctx, app.ID, want, approver, now)
		switch {
		case err == nil:
			app.Status, app.DecidedBy, app.DecidedAt, app.UpdatedAt = want, &approver, &now, now
			if accept {
				if err := s.admit(ctx, repo, app); err != nil {
					return nil, err
				}
				s.emit(ctx, acceptedNotification(repo, app, approver))
			}
			return app, nil
		case errors.Is(err, store.ErrNotFound):
			// Lost a race with another decision; judge against what won.
			if app, err = s.getApplication(ctx, appID); err != nil {
				return nil, err
			}
		default:
			return nil, utils.Internal("decide application", err)
		}
	}

	if app.Status != want {
		return nil, &utils.ConflictError{Message: msgApplicationDecided}
	}
	if accept {
		if err := s.admit(ctx, repo, app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

func (s *MembershipService) admit(ctx context.Context, repo *models.Repository, app *models.Application) error {
	p := models.Participant{User: app.Applicant, Role: app.GrantedRole(), Status: models.ParticipantActive}
	if _, err := s.repos.AddParticipant(ctx, repo.ID, p); err != nil {
		return utils.Internal("add participant", err)
	}
	return nil
}

func acceptedNotification(repo *models.Repository, app *models.Application, approver primitive.ObjectID) *models.Notification {
	n := &models.Notification{
		User:        app.Applicant,
		Type:        models.NotifyCreatorMemberJoined,
		Title:       "Bienvenido como miembro",
		Message:     "Tu aplicación a " + repo.Name + " fue aceptada",
		Actor:       &approver,
		Repo:        &repo.ID,
		Application: &app.ID,
	}
	if app.Kind == models.ApplicationCreator {
		n.Type = models.NotifyCreatorCreatorAccepted
		n.Title = "Aceptado como creador"
	}
	return n
}

func (s *MembershipService) getApplication(ctx context.Context, id primitive.ObjectID) (*models.Application, error) {
	app, err := s.applications.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &utils.NotFoundError{Resource: "application", Message: msgApplicationNotFound}
	}
	if err != nil {
		return nil, utils.Internal("load application", err)
	}
	return app, nil
}

// emit never fails the caller; the state change is already committed.
func (s *MembershipService) emit(ctx context.Context, n *models.Notification) {
	if s.notify == nil {
		return
	}
	if err := s.notify.Emit(ctx, n); err != nil {
		s.log.Error(ctx, "notification emit failed", "type", n.Type, "user_id", n.User.Hex(), "err", err)
	}
}

func nonNilRepos(list []models.Repository) []models.Repository {
	if list == nil {
		return []models.Repository{}
	}
	return list
}
