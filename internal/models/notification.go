package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotifySimpleInvite           NotificationType = "simple_invite"
	NotifySimpleJoinAccepted     NotificationType = "simple_join_accepted"
	NotifyCreatorNewApplication  NotificationType = "creator_new_application"
	NotifyCreatorCreatorAccepted NotificationType = "creator_creator_accepted"
	NotifyCreatorMemberJoined    NotificationType = "creator_member_joined"
)

type Notification struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	User        primitive.ObjectID  `bson:"user" json:"user"`
	Type        NotificationType    `bson:"type" json:"type"`
	Title       string              `bson:"title" json:"title"`
	Message     string              `bson:"message,omitempty" json:"message,omitempty"`
	Seen        bool                `bson:"seen" json:"seen"`
	Actor       *primitive.ObjectID `bson:"actor,omitempty" json:"actor,omitempty"`
	Repo        *primitive.ObjectID `bson:"repo,omitempty" json:"repo,omitempty"`
	Application *primitive.ObjectID `bson:"application,omitempty" json:"application,omitempty"`
	Payload     map[string]string   `bson:"payload,omitempty" json:"payload,omitempty"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
}
