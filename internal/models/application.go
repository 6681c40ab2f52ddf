package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ApplicationKind string

const (
	ApplicationCreator ApplicationKind = "creator"
	ApplicationMember  ApplicationKind = "member"
)

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Creator profile types accepted on creator applications.
const (
	CreatorTecnico       = "técnico"
	CreatorVisual        = "visual"
	CreatorAdministrador = "administrador"
	CreatorExperto       = "experto"
)

// Membership plans accepted on member applications.
const (
	PlanCobre    = "cobre"
	PlanPlata    = "plata"
	PlanOro      = "oro"
	PlanDiamante = "diamante"
)

type CreatorApplication struct {
	CreatorType         string  `bson:"creator_type,omitempty" json:"creator_type,omitempty"`
	Aporte              string  `bson:"aporte,omitempty" json:"aporte,omitempty"`
	Motivacion          string  `bson:"motivacion,omitempty" json:"motivacion,omitempty"`
	TipoAporte          string  `bson:"tipo_aporte,omitempty" json:"tipo_aporte,omitempty"`
	DisponibilidadHoras float64 `bson:"disponibilidad_horas,omitempty" json:"disponibilidad_horas,omitempty"`
	URLPortafolio       string  `bson:"url_portafolio,omitempty" json:"url_portafolio,omitempty"`
}

type MemberApplication struct {
	Plan           string   `bson:"plan,omitempty" json:"plan,omitempty"`
	AportePersonal []string `bson:"aporte_personal,omitempty" json:"aporte_personal,omitempty"`
	Amount         float64  `bson:"amount,omitempty" json:"amount,omitempty"`
}

// ApplicationAttrs is implemented by CreatorApplication and MemberApplication.
type ApplicationAttrs interface {
	applicationKind() ApplicationKind
}

func (CreatorApplication) applicationKind() ApplicationKind { return ApplicationCreator }
func (MemberApplication) applicationKind() ApplicationKind  { return ApplicationMember }

type Application struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Kind      ApplicationKind     `bson:"kind" json:"kind"`
	Repo      primitive.ObjectID  `bson:"repo" json:"repo"`
	Applicant primitive.ObjectID  `bson:"applicant" json:"applicant"`
	Status    ApplicationStatus   `bson:"status" json:"status"`
	DecidedBy *primitive.ObjectID `bson:"decided_by,omitempty" json:"decided_by,omitempty"`
	DecidedAt *time.Time          `bson:"decided_at,omitempty" json:"decided_at,omitempty"`

	Creator *CreatorApplication `bson:"creator,omitempty" json:"creator,omitempty"`
	Member  *MemberApplication  `bson:"member,omitempty" json:"member,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

var ErrInvalidApplicationAttrs = errors.New("invalid application attributes")

// NewApplication builds a pending application whose kind matches attrs.
func NewApplication(repo, applicant primitive.ObjectID, attrs ApplicationAttrs, now time.Time) (*Application, error) {
	app := &Application{
		Repo:      repo,
		Applicant: applicant,
		Status:    ApplicationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch a := attrs.(type) {
	case CreatorApplication:
		app.Kind = ApplicationCreator
		app.Creator = &a
	case MemberApplication:
		app.Kind = ApplicationMember
		app.Member = &a
	default:
		return nil, ErrInvalidApplicationAttrs
	}
	return app, nil
}

// GrantedRole is the participant role an accepted application confers.
func (a *Application) GrantedRole() Role {
	if a.Kind == ApplicationCreator {
		return RoleCreator
	}
	return RoleMember
}
