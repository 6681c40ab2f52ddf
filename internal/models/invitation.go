package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InvitationStatus values: "pending", "accepted", "rejected", "expired".
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation lets the owner of a simple repository add a registered user.
type Invitation struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Repo        primitive.ObjectID `bson:"repo" json:"repo"`
	InvitedUser primitive.ObjectID `bson:"invited_user" json:"invited_user"`
	InvitedBy   primitive.ObjectID `bson:"invited_by" json:"invited_by"`
	Role        Role               `bson:"role" json:"role"`
	Token       string             `bson:"token" json:"token"`
	Status      InvitationStatus   `bson:"status" json:"status"`
	ExpiresAt   time.Time          `bson:"expires_at" json:"expires_at"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// InvitableRole reports whether r may be granted through an invitation.
func InvitableRole(r Role) bool {
	return r == RoleAdmin || r == RoleWriter || r == RoleViewer
}

// Expired is a passive check; nothing sweeps stale invitations.
func (i *Invitation) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}
