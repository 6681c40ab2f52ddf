package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/repohub/repohub-backend/internal/logging"
	"github.com/repohub/repohub-backend/internal/models"
)

const (
	notificationChannelPrefix = "notifications:user:"
	// wsWriteWait bounds a single write to a websocket peer.
	wsWriteWait = 10 * time.Second
)

// NotificationEvent is the payload pushed over Redis and websocket.
type NotificationEvent struct {
	Type         string              `json:"type"`
	Notification models.Notification `json:"notification"`
}

// Conn is the minimal interface our websocket implementation must satisfy.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type subscriber struct {
	mu   sync.Mutex
	conn Conn
}

func (s *subscriber) write(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

// NotificationHub delivers new notifications to connected users. With Redis
// events travel through pub/sub so every instance can reach its own sockets;
// without it delivery stays in-process.
type NotificationHub struct {
	mu    sync.RWMutex
	conns map[primitive.ObjectID]map[*subscriber]struct{}

	redis   *redis.Client
	log     logging.Logger
	started sync.Once
}

func NewNotificationHub(client *redis.Client, log logging.Logger) *NotificationHub {
	return &NotificationHub{
		conns: make(map[primitive.ObjectID]map[*subscriber]struct{}),
		redis: client,
		log:   log,
	}
}

// Register attaches conn to user and returns the function that detaches it.
func (h *NotificationHub) Register(user primitive.ObjectID, conn Conn) func() {
	sub := &subscriber{conn: conn}
	h.mu.Lock()
	if h.conns[user] == nil {
		h.conns[user] = make(map[*subscriber]struct{})
	}
	h.conns[user][sub] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.conns[user], sub)
		if len(h.conns[user]) == 0 {
			delete(h.conns, user)
		}
		h.mu.Unlock()
	}
}

// Connections reports how many sockets user has open on this instance.
func (h *NotificationHub) Connections(user primitive.ObjectID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[user])
}

// Publish announces a stored notification.
func (h *NotificationHub) Publish(ctx context.Context, n models.Notification) error {
	event := NotificationEvent{Type: "notification", Notification: n}
	if h.redis == nil {
		h.fanOut(ctx, event)
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return h.redis.Publish(ctx, notificationChannelPrefix+n.User.Hex(), data).Err()
}

func (h *NotificationHub) fanOut(ctx context.Context, event NotificationEvent) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.conns[event.Notification.User]))
	for sub := range h.conns[event.Notification.User] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		// Non-blocking best-effort send.
		go func(s *subscriber) {
			if err := s.write(event); err != nil {
				h.log.Warn(ctx, "error writing notification to websocket", "err", err)
			}
		}(sub)
	}
}

// Start runs the shared Redis listener of this instance until ctx is done.
// It is a no-op without Redis.
func (h *NotificationHub) Start(ctx context.Context) {
	if h.redis == nil {
		return
	}
	h.started.Do(func() {
		go h.runSubscriber(ctx)
	})
}

func (h *NotificationHub) runSubscriber(ctx context.Context) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := h.redis.PSubscribe(ctx, notificationChannelPrefix+"*")
			defer pubsub.Close()

			h.log.Info(ctx, "✅ Notification Redis subscriber started", "pattern", notificationChannelPrefix+"*")

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					h.log.Warn(ctx, "redis subscriber error", "err", err, "retry_in", backoff.String())
					if !sleepCtx(ctx, backoff) {
						return
					}
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var event NotificationEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					h.log.Warn(ctx, "failed to unmarshal notification event", "err", err)
					continue
				}
				if !strings.HasSuffix(msg.Channel, event.Notification.User.Hex()) {
					continue
				}
				h.fanOut(ctx, event)
			}
		}()
	}
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
