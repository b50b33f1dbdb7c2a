package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/lcm-policing/api"
	"github.com/linesmerrill/lcm-policing/api/scheduler"
	"github.com/linesmerrill/lcm-policing/config"
)

const writeWait = 10 * time.Second

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// BellPoller refreshes one subscriber's bell in the background
type BellPoller interface {
	Go(sub scheduler.Subscriber)
}

type client struct {
	userID string
	token  string
}

// NotificationHub tracks the connected sockets of every signed-in user. A user may
// have several tabs open; each gets every push.
type NotificationHub struct {
	clients map[*websocket.Conn]client
	mutex   sync.Mutex
}

// NewNotificationHub returns an empty hub
func NewNotificationHub() *NotificationHub {
	return &NotificationHub{clients: make(map[*websocket.Conn]client)}
}

func (h *NotificationHub) add(conn *websocket.Conn, c client) {
	h.mutex.Lock()
	h.clients[conn] = c
	h.mutex.Unlock()
}

func (h *NotificationHub) remove(conn *websocket.Conn) {
	h.mutex.Lock()
	delete(h.clients, conn)
	h.mutex.Unlock()
}

// Subscribers lists each connected user once.
func (h *NotificationHub) Subscribers() []scheduler.Subscriber {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	seen := make(map[string]int, len(h.clients))
	var subs []scheduler.Subscriber
	for _, c := range h.clients {
		if i, ok := seen[c.userID]; ok {
			subs[i].Token = c.token
			continue
		}
		seen[c.userID] = len(subs)
		subs = append(subs, scheduler.Subscriber{UserID: c.userID, Token: c.token})
	}
	return subs
}

// PushBell sends the unread count to every socket of the user.
func (h *NotificationHub) PushBell(userID string, count int) {
	h.send(userID, "bell", map[string]int{"count": count})
}

// send writes the event to the user's sockets. Writes happen under the hub lock, which
// keeps a single writer per connection.
func (h *NotificationHub) send(userID, event string, data interface{}) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn, c := range h.clients {
		if c.userID != userID {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteJSON(map[string]interface{}{
			"event": event,
			"data":  data,
		})
		if err != nil {
			zap.S().Warnw("failed to push notification", "user", userID, "event", event, "error", err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// Notifications serves the notification websocket
type Notifications struct {
	Hub  *NotificationHub
	Bell BellPoller
}

// HandleNotificationsWebSocket WebSocket handler for notifications. The caller must be
// signed in; the bell is refreshed once on connect and then by the scheduler.
func (n Notifications) HandleNotificationsWebSocket(w http.ResponseWriter, r *http.Request) {
	id := api.IdentityFrom(r.Context())
	if !id.SignedIn() {
		config.ErrorStatus("sign in to receive notifications", http.StatusUnauthorized, w, nil)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("websocket upgrade error", "error", err)
		return
	}

	n.Hub.add(conn, client{userID: id.UserID, token: id.Token})
	zap.S().Infow("user connected to /ws/notifications", "user", id.UserID)
	if n.Bell != nil {
		n.Bell.Go(scheduler.Subscriber{UserID: id.UserID, Token: id.Token})
	}

	// Keep connection alive until the client goes away
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	n.Hub.remove(conn)
	conn.Close()
	zap.S().Infow("user disconnected from /ws/notifications", "user", id.UserID)
}
