package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	Username     string `bson:"username" json:"username"`
	Email        string `bson:"email" json:"email"`
	PasswordHash string `bson:"password_hash" json:"-"`

	// Pending two-factor code, cleared once consumed
	VerificationCode        string     `bson:"verification_code,omitempty" json:"-"`
	VerificationCodeExpires *time.Time `bson:"verification_code_expires,omitempty" json:"-"`

	Repositories []primitive.ObjectID `bson:"repositories" json:"repositories"`
	RepoCount    int                  `bson:"repo_count" json:"repo_count"`

	Profile `bson:",inline"`
}

// Profile holds the self-editable public part of a user.
type Profile struct {
	Nombre       string   `bson:"nombre,omitempty" json:"nombre,omitempty"`
	Apellido     string   `bson:"apellido,omitempty" json:"apellido,omitempty"`
	Bio          string   `bson:"bio,omitempty" json:"bio,omitempty"`
	ProfileImage string   `bson:"profile_image,omitempty" json:"profile_image,omitempty"`
	Hobbies      []string `bson:"hobbies,omitempty" json:"hobbies,omitempty"`
	Institucion  string   `bson:"institucion,omitempty" json:"institucion,omitempty"`
	Ciudad       string   `bson:"ciudad,omitempty" json:"ciudad,omitempty"`
	Contacto     string   `bson:"contacto,omitempty" json:"contacto,omitempty"`
	IsPublic     bool     `bson:"is_public" json:"is_public"`
}

// ProfileUpdate carries the optional fields of a profile edit; nil means unchanged.
type ProfileUpdate struct {
	Nombre       *string   `json:"nombre"`
	Apellido     *string   `json:"apellido"`
	Bio          *string   `json:"bio"`
	ProfileImage *string   `json:"profile_image"`
	Hobbies      *[]string `json:"hobbies"`
	Institucion  *string   `json:"institucion"`
	Ciudad       *string   `json:"ciudad"`
	Contacto     *string   `json:"contacto"`
	IsPublic     *bool     `json:"is_public"`
}

// Apply copies the set fields onto p.
func (u ProfileUpdate) Apply(p *Profile) {
	if u.Nombre != nil {
		p.Nombre = *u.Nombre
	}
	if u.Apellido != nil {
		p.Apellido = *u.Apellido
	}
	if u.Bio != nil {
		p.Bio = *u.Bio
	}
	if u.ProfileImage != nil {
		p.ProfileImage = *u.ProfileImage
	}
	if u.Hobbies != nil {
		p.Hobbies = *u.Hobbies
	}
	if u.Institucion != nil {
		p.Institucion = *u.Institucion
	}
	if u.Ciudad != nil {
		p.Ciudad = *u.Ciudad
	}
	if u.Contacto != nil {
		p.Contacto = *u.Contacto
	}
	if u.IsPublic != nil {
		p.IsPublic = *u.IsPublic
	}
}

// UserSummary is the minimal identity returned by login.
type UserSummary struct {
	ID       primitive.ObjectID `json:"id"`
	Username string             `json:"username"`
	Email    string             `json:"email"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Email: u.Email}
}

// UserSort selects the ordering of public user listings.
type UserSort string

const (
	UserSortRepos      UserSort = "repos"
	UserSortAntiguedad UserSort = "antiguedad"
	UserSortReciente   UserSort = "reciente"
)

// UserQuery filters the public user directory.
type UserQuery struct {
	Search string
	Sort   UserSort
	Limit  int
}
