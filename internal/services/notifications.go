package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/repohub/repohub-backend/internal/logging"
	"github.com/repohub/repohub-backend/internal/models"
	"github.com/repohub/repohub-backend/internal/store"
	"github.com/repohub/repohub-backend/pkg/utils"
)

// Publisher pushes stored notifications to live connections.
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// NotificationEmitter is what the membership flows depend on.
type NotificationEmitter interface {
	Emit(ctx context.Context, n *models.Notification) error
}

type NotificationService struct {
	store     store.NotificationStore
	publisher Publisher
	log       logging.Logger
	now       func() time.Time
}

func NewNotificationService(s store.NotificationStore, publisher Publisher, log logging.Logger) *NotificationService {
	return &NotificationService{store: s, publisher: publisher, log: log, now: time.Now}
}

// Emit persists n and then publishes it. Publication failures are logged only.
func (s *NotificationService) Emit(ctx context.Context, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	n.Seen = false
	if err := s.store.Create(ctx, n); err != nil {
		return utils.Internal("create notification", err)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, *n); err != nil {
			s.log.Warn(ctx, "notification publish failed", "notification_id", n.ID.Hex(), "err", err)
		}
	}
	return nil
}

func (s *NotificationService) List(ctx context.Context, user primitive.ObjectID) ([]models.Notification, error) {
	list, err := s.store.ListForUser(ctx, user)
	if err != nil {
		return nil, utils.Internal("list notifications", err)
	}
	return list, nil
}

// Get returns a notification only to its recipient.
func (s *NotificationService) Get(ctx context.Context, id, user primitive.ObjectID) (*models.Notification, error) {
	n, err := s.store.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && n.User != user) {
		return nil, errNotificationNotFound
	}
	if err != nil {
		return nil, utils.Internal("get notification", err)
	}
	return n, nil
}

func (s *NotificationService) MarkSeen(ctx context.Context, id, user primitive.ObjectID) (*models.Notification, error) {
	n, err := s.store.MarkSeen(ctx, id, user)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errNotificationNotFound
	}
	if err != nil {
		return nil, utils.Internal("mark notification seen", err)
	}
	return n, nil
}

var errNotificationNotFound = &utils.NotFoundError{Resource: "notification", Message: "Notificación no encontrada"}
