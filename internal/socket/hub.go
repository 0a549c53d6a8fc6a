package socket

import (
	"sync"

	"pharmacy-pos-api-server/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub quản lý tất cả các client WebSocket.
// Sessions are keyed by (userID, role) so a phone and a desktop belonging
// to the same logged-in user can find each other.
type Hub struct {
	// mu là một Mutex để đảm bảo an toàn khi truy cập map clients từ nhiều goroutine.
	mu      sync.RWMutex
	clients map[string]map[string]*websocket.Conn
	// status keeps the last reported readiness per user. Last-write-wins,
	// dropped when the desktop session unregisters.
	status map[string]models.SessionStatus
	log    *zap.Logger
}

// NewHub tạo một Hub mới.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]map[string]*websocket.Conn),
		status:  make(map[string]models.SessionStatus),
		log:     log,
	}
}

// Register thêm một client mới vào Hub. If the same (user, role) pair is
// already connected, the previous connection is closed first: only one
// live channel per session is allowed.
func (h *Hub) Register(userID, role string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[string]*websocket.Conn)
	}
	if prev, ok := h.clients[userID][role]; ok && prev != conn {
		prev.Close()
		h.log.Info("replacing existing socket session",
			zap.String("user", userID), zap.String("role", role))
	}
	h.clients[userID][role] = conn
	h.log.Info("websocket client registered",
		zap.String("user", userID), zap.String("role", role))
}

// Unregister xóa một client khỏi Hub. The conn argument guards against a
// stale goroutine unregistering the connection that replaced it.
func (h *Hub) Unregister(userID, role string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[userID][role]; ok && cur == conn {
		delete(h.clients[userID], role)
		if len(h.clients[userID]) == 0 {
			delete(h.clients, userID)
		}
		if role == RoleDesktop {
			delete(h.status, userID)
		}
		h.log.Info("websocket client unregistered",
			zap.String("user", userID), zap.String("role", role))
	}
}

// Send gửi một envelope đến một client cụ thể. A missing peer is not an
// error: scan data is at-most-once, there is no acknowledgement layer.
func (h *Hub) Send(userID, role string, env Envelope) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, ok := h.clients[userID][role]
	if !ok {
		h.log.Debug("websocket peer not connected, dropping message",
			zap.String("user", userID), zap.String("role", role),
			zap.String("event", env.Event))
		return nil
	}
	return conn.WriteJSON(env)
}

// SetStatus records the desktop's last readiness report for a user.
func (h *Hub) SetStatus(userID string, st models.SessionStatus) {
	h.mu.Lock()
	h.status[userID] = st
	h.mu.Unlock()
}

// Status returns the last readiness report for a user, if any.
func (h *Hub) Status(userID string) (models.SessionStatus, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	st, ok := h.status[userID]
	return st, ok
}
