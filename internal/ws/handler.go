package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"keeper/internal/middleware"
	"keeper/internal/models"
	"keeper/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4096
	requestTimeout = 5 * time.Second
)

type ActorResolver interface {
	Resolve(ctx context.Context, token string) (models.User, error)
}

// inbound is a client frame: {"action":"subscribe","room_id":5}.
type inbound struct {
	Action string `json:"action"`
	RoomID int64  `json:"room_id"`
}

type reply struct {
	Type   string `json:"type"`
	RoomID int64  `json:"room_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated requests and runs the connection pumps.
type Handler struct {
	hub    *Hub
	actors ActorResolver
	log    *zap.Logger
}

func NewHandler(hub *Hub, actors ActorResolver, log *zap.Logger) *Handler {
	return &Handler{hub: hub, actors: actors, log: log}
}

// Handle authenticates the token from the Authorization header or ?token= and upgrades the connection.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("keeper/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
	}
	user, err := h.actors.Resolve(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	meta := observability.RequestMetaFrom(c.Request)
	if id := middleware.RequestIDFromContext(c); id != "" {
		meta.RequestID = id
	}
	info := ConnInfo{
		ConnID:      uuid.NewString(),
		Username:    user.Username,
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   meta.RequestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	cl := newClient(user, info)
	h.hub.register(ctx, cl)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.log.Info("websocket connected", info.fields()...)

	go h.writePump(conn, cl)
	go h.readPump(conn, cl)
}

func (h *Handler) readPump(conn *websocket.Conn, cl *client) {
	var reason string
	defer func() {
		h.hub.unregister(cl)
		_ = conn.Close()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.log.Info("websocket disconnected", append(cl.info.fields(),
			zap.Int64("duration_ms", time.Since(cl.info.ConnectedAt).Milliseconds()),
			zap.String("reason", reason))...)
	}()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			reason = err.Error()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}
		h.handleFrame(cl, data)
	}
}

// handleFrame applies a subscribe or unsubscribe request and queues the reply.
func (h *Handler) handleFrame(cl *client, data []byte) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		h.respond(cl, reply{Type: "error", Error: "malformed frame"})
		return
	}

	switch in.Action {
	case "subscribe":
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		ok, err := h.hub.subscribeRoom(ctx, cl, in.RoomID)
		cancel()
		if err != nil {
			h.log.Error("room authorization failed", zap.Int64("room_id", in.RoomID), zap.Error(err))
			h.respond(cl, reply{Type: "error", RoomID: in.RoomID, Error: "authorization failed"})
			return
		}
		if !ok {
			h.respond(cl, reply{Type: "error", RoomID: in.RoomID, Error: "forbidden"})
			return
		}
		h.respond(cl, reply{Type: "subscribed", RoomID: in.RoomID})
	case "unsubscribe":
		h.hub.unsubscribeRoom(cl, in.RoomID)
		h.respond(cl, reply{Type: "unsubscribed", RoomID: in.RoomID})
	default:
		h.respond(cl, reply{Type: "error", Error: "unknown action"})
	}
}

func (h *Handler) respond(cl *client, r reply) {
	frame, _ := json.Marshal(r)
	h.hub.mu.RLock()
	defer h.hub.mu.RUnlock()
	if cl.closed {
		return
	}
	select {
	case cl.send <- frame:
	default:
	}
}

func (h *Handler) writePump(conn *websocket.Conn, cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-cl.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.log.Warn("websocket write failed", zap.String("conn_id", cl.info.ConnID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
