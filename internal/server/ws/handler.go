package ws

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/gymdesk/internal/model"
	"github.com/and161185/gymdesk/internal/service"
)

// OperatorAuthenticator verifies staff credentials presented on a gym socket.
type OperatorAuthenticator interface {
	AuthenticateOperator(ctx context.Context, email, password, ip string) (*model.User, error)
}

// Options tunes socket behavior.
type Options struct {
	WriteTimeout     time.Duration
	TemplatePageSize int
}

// Handler serves the gym and user sockets plus /ws/health.
type Handler struct {
	reg      *Registry
	auth     OperatorAuthenticator
	enroll   service.EnrollmentService
	log      *zap.Logger
	opts     Options
	upgrader websocket.Upgrader
}

// NewHandler wires the socket endpoints.
func NewHandler(reg *Registry, auth OperatorAuthenticator, enroll service.EnrollmentService, log *zap.Logger, opts Options) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.TemplatePageSize <= 0 {
		opts.TemplatePageSize = 20
	}
	return &Handler{
		reg:    reg,
		auth:   auth,
		enroll: enroll,
		log:    log,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Register mounts the socket routes.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/gym/:gym_id", h.GymSocket)
	r.GET("/user/:user_id/:gym_id", h.UserSocket)
	r.GET("/ws/health", h.Health)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid " + name})
		return 0, false
	}
	return id, true
}

func (h *Handler) upgrade(c *gin.Context) (*Conn, bool) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Info("ws upgrade failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		return nil, false
	}
	return newConn(ws, h.opts.WriteTimeout), true
}

// GymSocket accepts a kiosk connection for /gym/:gym_id.
func (h *Handler) GymSocket(c *gin.Context) {
	gymID, ok := pathID(c, "gym_id")
	if !ok {
		return
	}
	conn, ok := h.upgrade(c)
	if !ok {
		return
	}
	h.reg.Connect(conn, Binding{GymID: gymID})
	s := &gymSession{h: h, conn: conn, gymID: gymID, remote: c.ClientIP()}
	h.serve(c.Request.Context(), conn, s.handle)
}

// UserSocket accepts an operator connection for /user/:user_id/:gym_id.
// Only user_id is registered; gym_id selects the relay target.
func (h *Handler) UserSocket(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	gymID, ok := pathID(c, "gym_id")
	if !ok {
		return
	}
	conn, ok := h.upgrade(c)
	if !ok {
		return
	}
	h.reg.Connect(conn, Binding{UserID: userID})
	s := &userSession{h: h, conn: conn, gymID: gymID}
	h.serve(c.Request.Context(), conn, s.handle)
}

// Health reports registry state.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.reg.Health(c.Request.Context()))
}

// serve runs the read loop until the peer goes away or handle asks to stop.
// Parse failures are answered with an error frame and never end the loop.
func (h *Handler) serve(ctx context.Context, conn *Conn, handle func(context.Context, Inbound) bool) {
	defer h.reg.Disconnect(conn)
	for {
		mt, data, err := conn.ws.ReadMessage()
		if err != nil {
			h.logReadErr(conn, err)
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		msg, err := ParseInbound(data)
		if err != nil {
			_ = h.reg.Send(conn, parseErrorFrame(err))
			continue
		}
		if stop := handle(ctx, msg); stop {
			return
		}
	}
}

func (h *Handler) logReadErr(conn *Conn, err error) {
	fields := []zap.Field{zap.String("conn", conn.ID().String()), zap.Error(err)}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		h.log.Debug("ws peer closed", fields...)
		return
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		h.log.Info("ws read timeout", fields...)
		return
	}
	h.log.Debug("ws read ended", fields...)
}

// sendError writes {"type": typ, "error": text} to c.
func (h *Handler) sendError(c *Conn, typ, text string) {
	if c == nil {
		return
	}
	_ = h.reg.Send(c, errorFrame{Type: typ, Error: text})
}
