package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/repohub/repohub-backend/internal/logging"
	"github.com/repohub/repohub-backend/internal/models"
	"github.com/repohub/repohub-backend/internal/store/memstore"
)

type fakeConn struct {
	mu        sync.Mutex
	events    []NotificationEvent
	deadlines []time.Time
	err       error
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadlines = append(c.deadlines, t)
	return nil
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, v.(NotificationEvent))
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) received() []NotificationEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]NotificationEvent(nil), c.events...)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, models.Notification) error {
	return errors.New("redis down")
}

func TestNotificationService_EmitDeliversToLiveConnections(t *testing.T) {
	ctx := context.Background()
	hub := NewNotificationHub(nil, logging.Discard())
	svc := NewNotificationService(memstore.New().Notifications, hub, logging.Discard())

	user := primitive.NewObjectID()
	other := primitive.NewObjectID()
	conn := &fakeConn{}
	otherConn := &fakeConn{}
	unregister := hub.Register(user, conn)
	hub.Register(other, otherConn)
	assert.Equal(t, 1, hub.Connections(user))

	n := &models.Notification{User: user, Type: models.NotifySimpleInvite, Title: "hola"}
	require.NoError(t, svc.Emit(ctx, n))
	assert.False(t, n.ID.IsZero())

	assert.Eventually(t, func() bool { return len(conn.received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, n.ID, conn.received()[0].Notification.ID)
	assert.Empty(t, otherConn.received())

	unregister()
	assert.Equal(t, 0, hub.Connections(user))
}

func TestNotificationService_PublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	notifications := memstore.New().Notifications
	svc := NewNotificationService(notifications, failingPublisher{}, logging.Discard())

	user := primitive.NewObjectID()
	require.NoError(t, svc.Emit(ctx, &models.Notification{User: user, Type: models.NotifySimpleInvite}))

	list, err := svc.List(ctx, user)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNotificationService_RecipientOnly(t *testing.T) {
	ctx := context.Background()
	svc := NewNotificationService(memstore.New().Notifications, nil, logging.Discard())
	user := primitive.NewObjectID()
	stranger := primitive.NewObjectID()

	n := &models.Notification{User: user, Type: models.NotifyCreatorNewApplication}
	require.NoError(t, svc.Emit(ctx, n))

	_, err := svc.Get(ctx, n.ID, stranger)
	requireStatus(t, err, 404)
	_, err = svc.MarkSeen(ctx, n.ID, stranger)
	requireStatus(t, err, 404)
	_, err = svc.Get(ctx, primitive.NewObjectID(), user)
	requireStatus(t, err, 404)

	seen, err := svc.MarkSeen(ctx, n.ID, user)
	require.NoError(t, err)
	assert.True(t, seen.Seen)

	got, err := svc.Get(ctx, n.ID, user)
	require.NoError(t, err)
	assert.True(t, got.Seen)
}

func TestNotificationService_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := NewNotificationService(memstore.New().Notifications, nil, logging.Discard())
	user := primitive.NewObjectID()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Emit(ctx, &models.Notification{User: user, Title: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}
	list, err := svc.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].Title)
	assert.Equal(t, "a", list[2].Title)
}

func TestSubscriberWriteSetsDeadline(t *testing.T) {
	conn := &fakeConn{}
	sub := &subscriber{conn: conn}
	before := time.Now()

	require.NoError(t, sub.write(NotificationEvent{Type: "notification"}))

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.deadlines, 1)
	assert.False(t, conn.deadlines[0].Before(before.Add(wsWriteWait)))
	assert.Len(t, conn.events, 1)
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.False(t, sleepCtx(ctx, 30*time.Second))
	assert.Less(t, time.Since(start), time.Second)

	assert.True(t, sleepCtx(context.Background(), time.Millisecond))
}
