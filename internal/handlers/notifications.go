package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/repohub/repohub-backend/internal/middleware"
	"github.com/repohub/repohub-backend/internal/services"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var notificationUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS for WebSocket is handled at the HTTP layer already.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type NotificationHandler struct {
	svc   *services.NotificationService
	hub   *services.NotificationHub
	authn *middleware.Authenticator
	res   *Responder
}

func NewNotificationHandler(svc *services.NotificationService, hub *services.NotificationHub, authn *middleware.Authenticator, res *Responder) *NotificationHandler {
	return &NotificationHandler{svc: svc, hub: hub, authn: authn, res: res}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	list, err := h.svc.List(r.Context(), user.ID)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	unseen := 0
	for _, n := range list {
		if !n.Seen {
			unseen++
		}
	}
	h.res.JSON(w, http.StatusOK, "", map[string]interface{}{"notifications": list, "unseen": unseen})
}

func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	n, err := h.svc.Get(r.Context(), id, user.ID)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "", map[string]interface{}{"notification": n})
}

func (h *NotificationHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	n, err := h.svc.MarkSeen(r.Context(), id, user.ID)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "Notificación marcada como vista.", map[string]interface{}{"notification": n})
}

// WebSocket streams new notifications. Browsers cannot set headers on the
// handshake, so the token may come as ?token=.
func (h *NotificationHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if scheme, bearer, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
			token = strings.TrimSpace(bearer)
		}
	}
	if token == "" {
		http.Error(w, "missing session token", http.StatusUnauthorized)
		return
	}
	user, status, msg := h.authn.Authenticate(token)
	if status != 0 {
		http.Error(w, msg, status)
		return
	}

	conn, err := notificationUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	unregister := h.hub.Register(user.ID, conn)
	defer unregister()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	// Clients never send anything meaningful; reading only detects closure.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
