package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"pharmacy-pos-api-server/internal/auth"
	"pharmacy-pos-api-server/internal/models"
	"pharmacy-pos-api-server/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Thời gian chờ tối đa cho một tin nhắn từ client.
const pongWait = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	Hub *socket.Hub
	Log *zap.Logger
}

// ServeWs xử lý các yêu cầu kết nối WebSocket. The connection must carry a
// bearer credential as the "token" query param; "role" picks the relay side
// (desktop by default, phone for the companion scanner).
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
		return
	}

	claims, err := auth.ParseToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}
	userID := claims.UserID

	role := c.Query("role")
	if role == "" {
		role = socket.RoleDesktop
	}
	if role != socket.RoleDesktop && role != socket.RolePhone {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown socket role"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	h.Hub.Register(userID, role, conn)

	defer func() {
		h.Hub.Unregister(userID, role, conn)
		conn.Close()
	}()

	// Heartbeat: reset deadline mỗi khi nhận được PING từ client.
	// gorilla/websocket tự động gửi lại PONG.
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Vòng lặp đọc: mỗi envelope được chuyển tiếp theo luật relay.
	for {
		var env socket.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Log.Warn("unexpected close error", zap.Error(err))
			}
			break
		}
		h.relay(userID, role, env)
	}
}

// relay áp dụng luật chuyển tiếp giữa desktop và phone của cùng một user:
//
//	phone  scanData     -> desktop scanDataReceived
//	phone  checkStatus  -> desktop requestStatus
//	desktop statusUpdate -> phone statusUpdated (and store last status)
func (h *WebSocketHandler) relay(userID, role string, env socket.Envelope) {
	switch env.Event {
	case socket.EventJoin:
		h.Log.Info("session joined relay",
			zap.String("user", userID), zap.String("role", role))

	case socket.EventScanData:
		if role != socket.RolePhone {
			return
		}
		out := socket.Envelope{Event: socket.EventScanDataReceived, Payload: env.Payload}
		if err := h.Hub.Send(userID, socket.RoleDesktop, out); err != nil {
			h.Log.Warn("failed to forward scan data", zap.Error(err))
		}

	case socket.EventCheckStatus:
		if role != socket.RolePhone {
			return
		}
		// Answer from the stored status if the desktop reported one; ask
		// the desktop either way so the phone gets a fresh report.
		if st, ok := h.Hub.Status(userID); ok {
			if out, err := socket.NewEnvelope(socket.EventStatusUpdated, st); err == nil {
				h.Hub.Send(userID, socket.RolePhone, out)
			}
		}
		out := socket.Envelope{Event: socket.EventRequestStatus}
		if err := h.Hub.Send(userID, socket.RoleDesktop, out); err != nil {
			h.Log.Warn("failed to forward status request", zap.Error(err))
		}

	case socket.EventStatusUpdate:
		if role != socket.RoleDesktop {
			return
		}
		var st models.SessionStatus
		if err := json.Unmarshal(env.Payload, &st); err != nil {
			h.Log.Warn("malformed status update", zap.Error(err))
			return
		}
		h.Hub.SetStatus(userID, st)
		out := socket.Envelope{Event: socket.EventStatusUpdated, Payload: env.Payload}
		if err := h.Hub.Send(userID, socket.RolePhone, out); err != nil {
			h.Log.Warn("failed to forward status update", zap.Error(err))
		}

	default:
		h.Log.Debug("ignoring envelope",
			zap.String("event", env.Event), zap.String("role", role))
	}
}
