package ws

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/gymdesk/internal/presence"
)

type fakeSocket struct {
	mu       sync.Mutex
	written  [][]byte
	writeErr error
	closed   bool
}

func (f *fakeSocket) ReadMessage() (int, []byte, error) { return 0, nil, io.EOF }

func (f *fakeSocket) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSocket) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakePresence struct {
	mu     sync.Mutex
	joined map[string]int
	left   map[string]int
	err    error
}

func newFakePresence() *fakePresence {
	return &fakePresence{joined: map[string]int{}, left: map[string]int{}}
}

func (p *fakePresence) Join(_ context.Context, kind string, _ int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joined[kind]++
	return p.err
}

func (p *fakePresence) Leave(_ context.Context, kind string, _ int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.left[kind]++
	return p.err
}

func (p *fakePresence) Snapshot(context.Context) (presence.Snapshot, error) {
	return presence.Snapshot{Users: []int64{1}, Gyms: []int64{2, 3}}, p.err
}

func newTestConn() (*Conn, *fakeSocket) {
	fs := &fakeSocket{}
	return newConn(fs, time.Second), fs
}

func TestRegistry_LastConnectWins(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t), nil)

	a, _ := newTestConn()
	b, _ := newTestConn()
	r.Connect(a, Binding{UserID: 1})
	r.Connect(b, Binding{UserID: 1})
	require.Same(t, b, r.User(1))

	r.Disconnect(a)
	require.Same(t, b, r.User(1), "superseded handle must not evict the newer one")

	r.Disconnect(b)
	require.Nil(t, r.User(1))
	require.Equal(t, 0, r.Health(context.Background()).ActiveConnections)
}

func TestRegistry_DisconnectIdempotent(t *testing.T) {
	r := NewRegistry(nil, nil)
	g, fs := newTestConn()
	r.Connect(g, Binding{GymID: 7})

	r.Disconnect(g)
	r.Disconnect(g)
	require.Nil(t, r.Gym(7))
	require.True(t, fs.isClosed())
}

func TestRegistry_BothIDs(t *testing.T) {
	r := NewRegistry(nil, nil)
	c, _ := newTestConn()
	r.Connect(c, Binding{UserID: 4, GymID: 9})
	require.Same(t, c, r.User(4))
	require.Same(t, c, r.Gym(9))

	r.Disconnect(c)
	require.Nil(t, r.User(4))
	require.Nil(t, r.Gym(9))
}

func TestRegistry_SendFailureDisconnects(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t), nil)
	c, fs := newTestConn()
	r.Connect(c, Binding{UserID: 2})

	require.NoError(t, r.Send(c, typedFrame{Type: typeConnected}))
	require.Len(t, fs.written, 1)
	require.JSONEq(t, `{"type":"connected"}`, string(fs.written[0]))

	fs.writeErr = errors.New("broken pipe")
	require.Error(t, r.Send(c, typedFrame{Type: typeConnected}))
	require.Nil(t, r.User(2))

	require.ErrorIs(t, r.SendRaw(c, []byte(`{}`)), ErrClosed)
	require.ErrorIs(t, r.SendRaw(nil, []byte(`{}`)), ErrClosed)
}

func TestRegistry_HealthAndPresence(t *testing.T) {
	p := newFakePresence()
	r := NewRegistry(zaptest.NewLogger(t), p)

	u1, _ := newTestConn()
	u2, _ := newTestConn()
	g, _ := newTestConn()
	r.Connect(u2, Binding{UserID: 20})
	r.Connect(u1, Binding{UserID: 10})
	r.Connect(g, Binding{GymID: 3})

	h := r.Health(context.Background())
	require.Equal(t, 3, h.ActiveConnections)
	require.Equal(t, []int64{10, 20}, h.ConnectedUsers)
	require.Equal(t, map[int64]int{3: 1}, h.GymSubscriptions)
	require.Equal(t, "healthy", h.Status)
	require.NotNil(t, h.Presence)
	require.Equal(t, []int64{2, 3}, h.Presence.Gyms)

	body, err := sonic.Marshal(h)
	require.NoError(t, err)
	require.Contains(t, string(body), `"gym_subscriptions":{"3":1}`)

	r.Disconnect(u1)
	require.Equal(t, 2, p.joined[KindUser])
	require.Equal(t, 1, p.joined[KindGym])
	require.Equal(t, 1, p.left[KindUser])

	p.err = errors.New("redis down")
	h = r.Health(context.Background())
	require.Nil(t, h.Presence)
	r.Disconnect(g)
	require.Nil(t, r.Gym(3))
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry(nil, nil)
	old, oldFS := newTestConn()
	cur, curFS := newTestConn()
	r.Connect(old, Binding{GymID: 1})
	r.Connect(cur, Binding{GymID: 1})

	r.CloseAll()
	require.True(t, oldFS.isClosed())
	require.True(t, curFS.isClosed())
	require.Nil(t, r.Gym(1))
	require.Equal(t, 0, r.Health(context.Background()).ActiveConnections)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			c, _ := newTestConn()
			r.Connect(c, Binding{UserID: id%5 + 1})
			_ = r.Send(c, typedFrame{Type: typeConnected})
			_ = r.User(id%5 + 1)
			r.Disconnect(c)
		}(int64(i))
	}
	wg.Wait()
	require.Empty(t, r.Health(context.Background()).ConnectedUsers)
}
