// Package ws implements the kiosk fingerprint pairing protocol over WebSockets.
package ws

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/gymdesk/internal/presence"
)

// Peer kinds as reported to presence.
const (
	KindUser = "user"
	KindGym  = "gym"
)

// ErrClosed is returned when writing to a handle that was already torn down.
var ErrClosed = errors.New("connection closed")

// socket is the part of *websocket.Conn the registry and sessions use.
type socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn is a registered socket handle. Writes are serialized.
type Conn struct {
	id           uuid.UUID
	ws           socket
	writeTimeout time.Duration

	wmu    sync.Mutex
	closed bool
}

func newConn(ws socket, writeTimeout time.Duration) *Conn {
	return &Conn{id: uuid.Must(uuid.NewV4()), ws: ws, writeTimeout: writeTimeout}
}

// ID returns the handle identity used by the reverse index.
func (c *Conn) ID() uuid.UUID { return c.id }

func (c *Conn) write(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) close() {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.ws.Close()
}

// Binding names the ids a handle is registered under. Zero means absent.
type Binding struct {
	UserID int64
	GymID  int64
}

// Presence mirrors registry membership outside the process.
type Presence interface {
	Join(ctx context.Context, kind string, id int64) error
	Leave(ctx context.Context, kind string, id int64) error
	Snapshot(ctx context.Context) (presence.Snapshot, error)
}

// Health is the registry state served by /ws/health.
type Health struct {
	ActiveConnections int                `json:"active_connections"`
	ConnectedUsers    []int64            `json:"connected_users"`
	GymSubscriptions  map[int64]int      `json:"gym_subscriptions"`
	Status            string             `json:"status"`
	Presence          *presence.Snapshot `json:"presence,omitempty"`
}

type entry struct {
	conn *Conn
	b    Binding
}

// Registry maps user and gym ids to live handles, last connect wins.
type Registry struct {
	mu     sync.Mutex
	users  map[int64]*Conn
	gyms   map[int64]*Conn
	byConn map[uuid.UUID]entry

	log      *zap.Logger
	presence Presence
}

// NewRegistry constructs an empty registry. p may be nil.
func NewRegistry(log *zap.Logger, p Presence) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		users:    map[int64]*Conn{},
		gyms:     map[int64]*Conn{},
		byConn:   map[uuid.UUID]entry{},
		log:      log,
		presence: p,
	}
}

// Connect registers c under every id set in b.
func (r *Registry) Connect(c *Conn, b Binding) {
	r.mu.Lock()
	if b.UserID != 0 {
		r.users[b.UserID] = c
	}
	if b.GymID != 0 {
		r.gyms[b.GymID] = c
	}
	r.byConn[c.id] = entry{conn: c, b: b}
	active := len(r.byConn)
	r.mu.Unlock()

	r.log.Info("ws connected",
		zap.String("conn", c.id.String()),
		zap.Int64("user_id", b.UserID),
		zap.Int64("gym_id", b.GymID),
		zap.Int("active", active))

	if b.UserID != 0 {
		r.mirror(true, KindUser, b.UserID)
	}
	if b.GymID != 0 {
		r.mirror(true, KindGym, b.GymID)
	}
}

// Disconnect removes c from the registry and closes it. Repeated calls are no-ops.
// An id that was taken over by a newer handle stays with the newer handle.
func (r *Registry) Disconnect(c *Conn) {
	r.mu.Lock()
	e, ok := r.byConn[c.id]
	if !ok {
		r.mu.Unlock()
		c.close()
		return
	}
	delete(r.byConn, c.id)
	b := e.b
	var leftUser, leftGym bool
	if b.UserID != 0 && r.users[b.UserID] == c {
		delete(r.users, b.UserID)
		leftUser = true
	}
	if b.GymID != 0 && r.gyms[b.GymID] == c {
		delete(r.gyms, b.GymID)
		leftGym = true
	}
	active := len(r.byConn)
	r.mu.Unlock()

	c.close()
	r.log.Info("ws disconnected",
		zap.String("conn", c.id.String()),
		zap.Int64("user_id", b.UserID),
		zap.Int64("gym_id", b.GymID),
		zap.Int("active", active))

	if leftUser {
		r.mirror(false, KindUser, b.UserID)
	}
	if leftGym {
		r.mirror(false, KindGym, b.GymID)
	}
}

func (r *Registry) mirror(join bool, kind string, id int64) {
	if r.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var err error
	if join {
		err = r.presence.Join(ctx, kind, id)
	} else {
		err = r.presence.Leave(ctx, kind, id)
	}
	if err != nil {
		r.log.Warn("presence update failed", zap.String("kind", kind), zap.Int64("id", id), zap.Error(err))
	}
}

// User returns the handle registered for a user id, or nil.
func (r *Registry) User(id int64) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

// Gym returns the handle registered for a gym id, or nil.
func (r *Registry) Gym(id int64) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gyms[id]
}

// Send encodes msg as JSON and writes it to c. A failed write disconnects c.
func (r *Registry) Send(c *Conn, msg any) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	return r.SendRaw(c, data)
}

// SendRaw writes an already encoded frame to c. A failed write disconnects c.
func (r *Registry) SendRaw(c *Conn, data []byte) error {
	if c == nil {
		return ErrClosed
	}
	if err := c.write(data); err != nil {
		r.log.Debug("ws send failed", zap.String("conn", c.id.String()), zap.Error(err))
		r.Disconnect(c)
		return err
	}
	return nil
}

// Health reports local registry counts and, when configured, the presence mirror.
func (r *Registry) Health(ctx context.Context) Health {
	r.mu.Lock()
	h := Health{
		ActiveConnections: len(r.byConn),
		ConnectedUsers:    make([]int64, 0, len(r.users)),
		GymSubscriptions:  make(map[int64]int, len(r.gyms)),
		Status:            "healthy",
	}
	for id := range r.users {
		h.ConnectedUsers = append(h.ConnectedUsers, id)
	}
	for id := range r.gyms {
		h.GymSubscriptions[id] = 1
	}
	r.mu.Unlock()
	sort.Slice(h.ConnectedUsers, func(i, j int) bool { return h.ConnectedUsers[i] < h.ConnectedUsers[j] })

	if r.presence != nil {
		snap, err := r.presence.Snapshot(ctx)
		if err != nil {
			r.log.Warn("presence snapshot failed", zap.Error(err))
		} else {
			h.Presence = &snap
		}
	}
	return h
}

// CloseAll disconnects every handle, including ones superseded by a newer connect.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.byConn))
	for _, e := range r.byConn {
		conns = append(conns, e.conn)
	}
	r.mu.Unlock()
	for _, c := range conns {
		r.Disconnect(c)
	}
}
