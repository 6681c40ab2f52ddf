package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RepoType distinguishes personal/group collections from public showcases.
type RepoType string

const (
	RepoTypeSimple  RepoType = "simple"
	RepoTypeCreator RepoType = "creator"
)

type RepoMode string

const (
	RepoModePersonal RepoMode = "personal"
	RepoModeGrupal   RepoMode = "grupal"
)

type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
)

// Role of a participant. Simple repositories use owner/admin/writer/viewer,
// creator repositories use owner/creator/member.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleWriter  Role = "writer"
	RoleViewer  Role = "viewer"
	RoleCreator Role = "creator"
	RoleMember  Role = "member"
)

type ParticipantStatus string

const (
	ParticipantActive  ParticipantStatus = "active"
	ParticipantInvited ParticipantStatus = "invited"
	ParticipantPending ParticipantStatus = "pending"
)

type Participant struct {
	User   primitive.ObjectID `bson:"user" json:"user"`
	Role   Role               `bson:"role" json:"role"`
	Status ParticipantStatus  `bson:"status" json:"status"`
}

// SimpleSettings is only present on simple repositories.
type SimpleSettings struct {
	Mode    RepoMode `bson:"mode" json:"mode"`
	Privacy Privacy  `bson:"privacy" json:"privacy"`
}

// CreatorSettings is only present on creator repositories.
type CreatorSettings struct {
	InterestAreas []string `bson:"interest_areas" json:"interest_areas"`
	GeoAreas      []string `bson:"geo_areas" json:"geo_areas"`
	Sectors       []string `bson:"sectors" json:"sectors"`
}

type Repository struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Type        RepoType           `bson:"type" json:"type"`

	Simple  *SimpleSettings  `bson:"simple,omitempty" json:"simple,omitempty"`
	Creator *CreatorSettings `bson:"creator,omitempty" json:"creator,omitempty"`

	Tags           []string             `bson:"tags" json:"tags"`
	Owner          primitive.ObjectID   `bson:"owner" json:"owner"`
	Participants   []Participant        `bson:"participants" json:"participants"`
	Files          []primitive.ObjectID `bson:"files" json:"files"`
	Featured       bool                 `bson:"featured" json:"featured"`
	FeaturedWeight int                  `bson:"featured_weight" json:"featured_weight"`
	IsRxUno        bool                 `bson:"is_rx_uno" json:"is_rx_uno"`
}

// RepositoryAttrs is the type-specific half of a repository. Only
// SimpleSettings and CreatorSettings implement it.
type RepositoryAttrs interface {
	repoType() RepoType
}

func (SimpleSettings) repoType() RepoType  { return RepoTypeSimple }
func (CreatorSettings) repoType() RepoType { return RepoTypeCreator }

// RepositoryBase holds the attributes shared by both repository types.
type RepositoryBase struct {
	Name        string
	Description string
	Tags        []string
	IsRxUno     bool
}

// FeaturedWeightRxUno is the ranking weight forced on RxUno repositories.
const FeaturedWeightRxUno = 100

var ErrInvalidRepoAttrs = errors.New("invalid repository attributes")

// NewRepository builds a repository whose type always matches its attrs.
// The owner becomes the sole active participant.
func NewRepository(owner primitive.ObjectID, base RepositoryBase, attrs RepositoryAttrs, now time.Time) (*Repository, error) {
	repo := &Repository{
		CreatedAt:    now,
		UpdatedAt:    now,
		Name:         base.Name,
		Description:  base.Description,
		Tags:         nonNil(base.Tags),
		Owner:        owner,
		Participants: []Participant{{User: owner, Role: RoleOwner, Status: ParticipantActive}},
		Files:        []primitive.ObjectID{},
		IsRxUno:      base.IsRxUno,
	}
	if base.IsRxUno {
		repo.Featured = true
		repo.FeaturedWeight = FeaturedWeightRxUno
	}

	switch a := attrs.(type) {
	case SimpleSettings:
		if a.Mode == "" {
			a.Mode = RepoModeGrupal
		}
		if a.Privacy == "" {
			a.Privacy = PrivacyPublic
		}
		if !a.Mode.valid() || !a.Privacy.valid() {
			return nil, ErrInvalidRepoAttrs
		}
		repo.Type = RepoTypeSimple
		repo.Simple = &a
	case CreatorSettings:
		a.InterestAreas = nonNil(a.InterestAreas)
		a.GeoAreas = nonNil(a.GeoAreas)
		a.Sectors = nonNil(a.Sectors)
		repo.Type = RepoTypeCreator
		repo.Creator = &a
	default:
		return nil, ErrInvalidRepoAttrs
	}
	return repo, nil
}

// Privacy of the repository. Creator repositories are always public.
func (r *Repository) Privacy() Privacy {
	if r.Type == RepoTypeSimple && r.Simple != nil {
		return r.Simple.Privacy
	}
	return PrivacyPublic
}

func (r *Repository) IsOwner(user primitive.ObjectID) bool {
	return r.Owner == user
}

// Participant returns the membership entry for user, if any.
func (r *Repository) Participant(user primitive.ObjectID) (Participant, bool) {
	for _, p := range r.Participants {
		if p.User == user {
			return p, true
		}
	}
	return Participant{}, false
}

// AddParticipant appends p unless the user is already present.
func (r *Repository) AddParticipant(p Participant) bool {
	if _, ok := r.Participant(p.User); ok {
		return false
	}
	r.Participants = append(r.Participants, p)
	return true
}

func (m RepoMode) valid() bool {
	return m == RepoModePersonal || m == RepoModeGrupal
}

func (p Privacy) valid() bool {
	return p == PrivacyPublic || p == PrivacyPrivate
}

// ParseRepoType accepts the two known repository types.
func ParseRepoType(s string) (RepoType, bool) {
	switch RepoType(s) {
	case RepoTypeSimple, RepoTypeCreator:
		return RepoType(s), true
	}
	return "", false
}

// RepositorySummary is embedded in registration responses.
type RepositorySummary struct {
	ID   primitive.ObjectID `json:"id"`
	Name string             `json:"name"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
