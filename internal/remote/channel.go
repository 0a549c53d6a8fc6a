package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"pharmacy-pos-api-server/internal/models"
	"pharmacy-pos-api-server/internal/socket"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// ErrNoCredential is returned when Connect is called without a bearer
	// token. The channel must not attempt to connect unauthenticated.
	ErrNoCredential = errors.New("no credential available for remote scan channel")

	// ErrNotConnected is returned by outbound calls while the socket is down.
	ErrNotConnected = errors.New("remote scan channel is not connected")
)

const (
	defaultPingInterval = 10 * time.Second
	defaultPongWait     = 30 * time.Second
	defaultMinBackoff   = time.Second
	defaultMaxBackoff   = 30 * time.Second
)

// Config configures one channel endpoint.
type Config struct {
	URL   string // ws(s) endpoint, e.g. "wss://host/api/v1/ws"
	Token string // bearer credential, passed as the "token" query param
	Role  string // socket.RoleDesktop or socket.RolePhone

	PingInterval time.Duration
	PongWait     time.Duration
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
}

func (c Config) withDefaults() Config {
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.PongWait <= 0 {
		c.PongWait = defaultPongWait
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = defaultMinBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.Role == "" {
		c.Role = socket.RoleDesktop
	}
	return c
}

// Channel is one long-lived, authenticated, bidirectional connection to the
// relay hub. The same type serves both the desktop and the phone role.
// Reconnection with capped exponential backoff is automatic; there is no
// silent permanent disconnect while the channel is open.
type Channel struct {
	cfg Config
	log *zap.Logger

	// Inbound handlers. Set before Connect; not guarded afterwards.
	OnScanData         func(models.ScanPayload)    // scanDataReceived
	OnRequestStatus    func() models.SessionStatus // requestStatus -> immediate statusUpdate
	OnStatusUpdated    func(models.SessionStatus)  // statusUpdated (phone role)
	OnConnectionChange func(connected bool)        // connected-indicator updates

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewChannel creates a channel. Connect must be called to go live.
func NewChannel(cfg Config, log *zap.Logger) *Channel {
	if log == nil {
		log = zap.NewNop()
	}
	return &Channel{cfg: cfg.withDefaults(), log: log}
}

// Connect starts the connection loop. Idempotent: a second call while the
// loop is running is a no-op, so callers cannot leak a second socket.
func (c *Channel) Connect(ctx context.Context) error {
	if c.cfg.Token == "" {
		return ErrNoCredential
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.run(runCtx)
	return nil
}

// Close severs the connection and stops the reconnect loop.
func (c *Channel) Close() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	conn := c.conn
	done := c.done
	c.mu.Unlock()

	cancel()
	if conn != nil {
		conn.Close()
	}
	<-done
}

// IsConnected reports whether a live socket currently exists.
func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// StatusUpdate reports the desktop's readiness and current location to the
// phone side. Invoked whenever the workflow enters or leaves scanning mode.
func (c *Channel) StatusUpdate(status, location string) error {
	return c.sendEvent(socket.EventStatusUpdate, models.SessionStatus{
		Status:   status,
		Location: location,
	})
}

// ScanData forwards a captured code; used by the phone side of the channel.
func (c *Channel) ScanData(payload models.ScanPayload) error {
	return c.sendEvent(socket.EventScanData, payload)
}

// CheckStatus asks the hub to have the desktop report its readiness.
func (c *Channel) CheckStatus() error {
	return c.sendEvent(socket.EventCheckStatus, nil)
}

func (c *Channel) sendEvent(event string, payload interface{}) error {
	env, err := socket.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(env)
}

func (c *Channel) dialURL() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", c.cfg.Token)
	q.Set("role", c.cfg.Role)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)

	target, err := c.dialURL()
	if err != nil {
		c.log.Error("invalid remote channel URL", zap.Error(err))
		return
	}

	backoff := c.cfg.MinBackoff
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("remote channel dial failed, retrying",
				zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.cfg.MaxBackoff {
				backoff = c.cfg.MaxBackoff
			}
			continue
		}
		backoff = c.cfg.MinBackoff

		c.setConn(conn)
		c.announce()
		c.readLoop(ctx, conn)
		c.clearConn(conn)

		if ctx.Err() != nil {
			return
		}
		c.log.Info("remote channel severed, reconnecting")
	}
}

func (c *Channel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	if c.OnConnectionChange != nil {
		c.OnConnectionChange(true)
	}
	c.log.Info("remote channel connected", zap.String("role", c.cfg.Role))
}

// clearConn drops the connection state; any "connected" indicator must go
// off as soon as the socket dies.
func (c *Channel) clearConn(conn *websocket.Conn) {
	conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
	}
	c.mu.Unlock()
	if c.OnConnectionChange != nil {
		c.OnConnectionChange(false)
	}
}

// announce presence under the session identity so the hub can route scans
// to this session.
func (c *Channel) announce() {
	if err := c.sendEvent(socket.EventJoin, nil); err != nil {
		c.log.Warn("failed to announce presence", zap.Error(err))
	}
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	stopPing := make(chan struct{})
	defer close(stopPing)
	go c.pingLoop(conn, stopPing)

	conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		var env socket.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("remote channel read error", zap.Error(err))
			}
			return
		}
		c.dispatch(env)
	}
}

// pingLoop keeps the server-side read deadline alive. WriteControl is safe
// to call concurrently with WriteJSON.
func (c *Channel) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.PingInterval)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (c *Channel) dispatch(env socket.Envelope) {
	switch env.Event {
	case socket.EventScanDataReceived:
		var payload models.ScanPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			c.log.Warn("malformed scan payload", zap.Error(err))
			return
		}
		if c.OnScanData != nil {
			c.OnScanData(payload)
		}
	case socket.EventRequestStatus:
		// The phone asked for readiness: answer immediately, without
		// user interaction.
		if c.OnRequestStatus == nil {
			return
		}
		st := c.OnRequestStatus()
		if err := c.StatusUpdate(st.Status, st.Location); err != nil {
			c.log.Warn("failed to answer status request", zap.Error(err))
		}
	case socket.EventStatusUpdated:
		var st models.SessionStatus
		if err := json.Unmarshal(env.Payload, &st); err != nil {
			c.log.Warn("malformed status payload", zap.Error(err))
			return
		}
		if c.OnStatusUpdated != nil {
			c.OnStatusUpdated(st)
		}
	default:
		c.log.Debug("ignoring envelope", zap.String("event", env.Event))
	}
}
