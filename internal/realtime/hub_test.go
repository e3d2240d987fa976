package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"devicesync/internal/domain/apperr"
	"devicesync/internal/domain/device"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

// fakeConn соединение в памяти вместо сокета
type fakeConn struct {
	mu       sync.Mutex
	inbox    chan []byte
	written  [][]byte
	writeErr error
	block    chan struct{}
	closed   bool
	code     websocket.StatusCode
	done     chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan []byte, 8), done: make(chan struct{})}
}

func (f *fakeConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case data := <-f.inbox:
		return websocket.MessageText, data, nil
	case <-f.done:
		return 0, nil, errors.New("connection closed")
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (f *fakeConn) Write(ctx context.Context, _ websocket.MessageType, p []byte) error {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-f.done:
			return errors.New("connection closed")
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, append([]byte(nil), p...))
	return nil
}

func (f *fakeConn) Close(code websocket.StatusCode, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.code = code
		close(f.done)
	}
	return nil
}

func (f *fakeConn) closedWith() (websocket.StatusCode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code, f.closed
}

func (f *fakeConn) messages(t *testing.T) []Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Message, 0, len(f.written))
	for _, raw := range f.written {
		var m Message
		require.NoError(t, json.Unmarshal(raw, &m))
		out = append(out, m)
	}
	return out
}

func (f *fakeConn) waitMessages(t *testing.T, typ MessageType, n int) []Message {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.messagesOfType(t, typ)) == n }, time.Second, 5*time.Millisecond)
	return f.messagesOfType(t, typ)
}

func (f *fakeConn) messagesOfType(t *testing.T, typ MessageType) []Message {
	var out []Message
	for _, m := range f.messages(t) {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func newTestHub(auth Authenticator) *Hub {
	return NewHub(auth, slog.Default(), Config{HeartbeatInterval: time.Hour, WriteTimeout: time.Second})
}

func testDevice(id, userID string, typ device.Type) *device.Device {
	return &device.Device{ID: id, UserID: userID, Type: typ, Platform: device.PlatformAndroid, IsActive: true}
}

func openConn(t *testing.T, h *Hub, d *device.Device) (*Connection, *fakeConn) {
	t.Helper()
	fc := newFakeConn()
	c, err := h.open(fc, d, nil)
	require.NoError(t, err)
	return c, fc
}

func waitClosed(t *testing.T, fc *fakeConn, want websocket.StatusCode) {
	t.Helper()
	require.Eventually(t, func() bool {
		code, closed := fc.closedWith()
		return closed && code == want
	}, time.Second, 5*time.Millisecond)
}

func TestHub_DuplicateConnectionEvictsPrevious(t *testing.T) {
	h := newTestHub(nil)

	first, firstConn := openConn(t, h, testDevice("d1", "u1", device.TypeMobile))
	_, secondConn := openConn(t, h, testDevice("d1", "u1", device.TypeMobile))

	assert.True(t, h.IsDeviceConnected("d1"))
	assert.Equal(t, 1, h.Stats().TotalConnections)

	waitClosed(t, firstConn, CloseReplaced)
	require.Eventually(t, func() bool { return first.State() == StateClosed }, time.Second, 5*time.Millisecond)

	_, closed := secondConn.closedWith()
	assert.False(t, closed)
}

func TestHub_HeartbeatEvictsSilentConnection(t *testing.T) {
	h := newTestHub(nil)
	ctx := context.Background()
	_, fc := openConn(t, h, testDevice("d1", "u1", device.TypeWeb))

	h.checkHeartbeats(ctx)
	fc.waitMessages(t, TypePing, 1)
	assert.True(t, h.IsDeviceConnected("d1"))

	h.checkHeartbeats(ctx)
	assert.False(t, h.IsDeviceConnected("d1"))
	assert.Empty(t, h.UserConnectedDevices("u1"))
	waitClosed(t, fc, CloseHeartbeatTimeout)
}

func TestHub_HeartbeatKeepsRespondingConnection(t *testing.T) {
	h := newTestHub(nil)
	ctx := context.Background()
	c, fc := openConn(t, h, testDevice("d1", "u1", device.TypeWeb))

	for i := 0; i < 3; i++ {
		h.checkHeartbeats(ctx)
		h.handleFrame(ctx, c, []byte(`{"type":"pong"}`))
	}

	assert.True(t, h.IsDeviceConnected("d1"))
	fc.waitMessages(t, TypePing, 3)
}

func TestHub_BroadcastExcludesOrigin(t *testing.T) {
	h := newTestHub(nil)
	ctx := context.Background()

	_, a := openConn(t, h, testDevice("a", "u1", device.TypeMobile))
	_, b := openConn(t, h, testDevice("b", "u1", device.TypeWeb))
	_, x := openConn(t, h, testDevice("x", "u2", device.TypeWeb))

	h.BroadcastSyncUpdate(ctx, "u1", map[string]int{"version": 2}, "a")

	updates := b.waitMessages(t, TypeSyncUpdate, 1)
	assert.Empty(t, a.messages(t))
	assert.Empty(t, x.messages(t))
	assert.JSONEq(t, `{"version":2}`, string(updates[0].Data))
	assert.False(t, updates[0].Timestamp.IsZero())

	h.NotifyConflict(ctx, "u1", map[string]string{"conflict_id": "r1"})
	a.waitMessages(t, TypeConflictNotification, 1)
	b.waitMessages(t, TypeConflictNotification, 1)
	assert.Empty(t, x.messages(t))

	assert.Equal(t, []string{"a", "b"}, h.UserConnectedDevices("u1"))
	st := h.Stats()
	assert.Equal(t, 3, st.TotalConnections)
	assert.Equal(t, 2, st.ActiveUsers)
	assert.Equal(t, 3, st.ConnectedDevices)
	assert.Equal(t, map[string]int{"mobile": 1, "web": 2}, st.ByDeviceType)
}

func TestHub_DeviceStatusAndDisconnect(t *testing.T) {
	h := newTestHub(nil)
	ctx := context.Background()
	_, a := openConn(t, h, testDevice("a", "u1", device.TypeMobile))
	_, b := openConn(t, h, testDevice("b", "u1", device.TypeMobile))

	h.NotifyDeviceStatus(ctx, "a", device.StatusEvent{DeviceID: "a", Status: device.StatusDeactivated})
	statuses := a.waitMessages(t, TypeDeviceStatus, 1)
	assert.JSONEq(t, `{"device_id":"a","status":"deactivated"}`, string(statuses[0].Data))
	assert.Empty(t, b.messages(t))

	h.DisconnectDevice("a", device.StatusDeactivated)
	assert.False(t, h.IsDeviceConnected("a"))
	waitClosed(t, a, CloseDeviceDisabled)

	h.NotifyDeviceStatus(ctx, "missing", nil)
	h.DisconnectDevice("missing", "none")
}

func TestHub_FailedSendTearsConnectionDown(t *testing.T) {
	h := newTestHub(nil)
	_, fc := openConn(t, h, testDevice("d1", "u1", device.TypeWeb))
	fc.mu.Lock()
	fc.writeErr = errors.New("broken pipe")
	fc.mu.Unlock()

	h.BroadcastSyncUpdate(context.Background(), "u1", map[string]int{}, "")

	waitClosed(t, fc, websocket.StatusInternalError)
	assert.False(t, h.IsDeviceConnected("d1"))
}

func TestHub_StalledSocketDoesNotBlockBroadcast(t *testing.T) {
	h := NewHub(nil, slog.Default(), Config{HeartbeatInterval: time.Hour, WriteTimeout: time.Minute, SendBuffer: 2})
	_, stalled := openConn(t, h, testDevice("slow", "u1", device.TypeWeb))
	_, healthy := openConn(t, h, testDevice("fast", "u2", device.TypeMobile))
	stalled.mu.Lock()
	stalled.block = make(chan struct{})
	stalled.mu.Unlock()

	start := time.Now()
	for i := 0; i < 5; i++ {
		h.BroadcastSyncUpdate(context.Background(), "u1", map[string]int{"version": i}, "")
	}
	assert.Less(t, time.Since(start), time.Second)

	h.BroadcastSyncUpdate(context.Background(), "u2", map[string]int{"version": 1}, "")
	healthy.waitMessages(t, TypeSyncUpdate, 1)
	assert.False(t, h.IsDeviceConnected("slow"))
	assert.True(t, h.IsDeviceConnected("fast"))
	require.Eventually(t, func() bool {
		code, closed := stalled.closedWith()
		return closed && code == CloseSendOverflow
	}, 3*time.Second, 10*time.Millisecond)
}

func TestHub_StatusFrameFlushedBeforeDisconnect(t *testing.T) {
	h := newTestHub(nil)
	_, fc := openConn(t, h, testDevice("a", "u1", device.TypeMobile))

	h.NotifyDeviceStatus(context.Background(), "a", device.StatusEvent{DeviceID: "a", Status: device.StatusDeactivated})
	h.DisconnectDevice("a", device.StatusDeactivated)

	waitClosed(t, fc, CloseDeviceDisabled)
	assert.Len(t, fc.messagesOfType(t, TypeDeviceStatus), 1)
}

func TestHub_ServeFrames(t *testing.T) {
	h := newTestHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, fc := openConn(t, h, testDevice("d1", "u1", device.TypeWeb))
	done := make(chan struct{})
	go func() {
		h.serve(ctx, c)
		close(done)
	}()

	fc.inbox <- []byte(`{not json`)
	require.Eventually(t, func() bool { return len(fc.messagesOfType(t, TypeError)) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, h.IsDeviceConnected("d1"))

	fc.inbox <- []byte(`{"type":"sync_update","id":"x1"}`)
	require.Eventually(t, func() bool { return len(fc.messagesOfType(t, TypeError)) == 2 }, time.Second, 5*time.Millisecond)

	fc.inbox <- []byte(`{"type":"ping","id":"p1"}`)
	require.Eventually(t, func() bool { return len(fc.messagesOfType(t, TypePong)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "p1", fc.messagesOfType(t, TypePong)[0].ID)

	_ = fc.Close(websocket.StatusNormalClosure, "")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("serve did not return after close")
	}
	assert.False(t, h.IsDeviceConnected("d1"))
}

func TestHub_Shutdown(t *testing.T) {
	h := newTestHub(nil)
	_, a := openConn(t, h, testDevice("a", "u1", device.TypeWeb))
	_, b := openConn(t, h, testDevice("b", "u2", device.TypeVR))

	require.NoError(t, h.Shutdown(context.Background()))

	code, closed := a.closedWith()
	assert.True(t, closed)
	assert.Equal(t, websocket.StatusGoingAway, code)
	_, closed = b.closedWith()
	assert.True(t, closed)
	assert.Zero(t, h.Stats().TotalConnections)

	_, err := h.open(newFakeConn(), testDevice("c", "u1", device.TypeWeb), nil)
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	h := NewHub(nil, slog.Default(), Config{HeartbeatInterval: 5 * time.Millisecond})
	_, fc := openConn(t, h, testDevice("d1", "u1", device.TypeWeb))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.Run(ctx) }()

	// без pong соединение вытесняется не позже чем через два интервала
	waitClosed(t, fc, CloseHeartbeatTimeout)
	cancel()
	assert.NoError(t, <-errCh)
}

type fakeAuth struct{}

func (fakeAuth) AuthenticateDevice(_ context.Context, token string) (*device.Device, error) {
	switch token {
	case "good":
		return testDevice("d1", "u1", device.TypeMobile), nil
	case "inactive":
		return nil, apperr.E(apperr.Unauthorized, "device is not active")
	default:
		return nil, apperr.E(apperr.InvalidToken, "invalid token")
	}
}

func TestHub_ServeHTTP(t *testing.T) {
	h := newTestHub(fakeAuth{})
	srv := httptest.NewServer(h)
	defer srv.Close()

	t.Run("missing token", func(t *testing.T) {
		resp, err := http.Get(srv.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), `"success":false`)
	})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	for _, token := range []string{"bad", "inactive"} {
		t.Run("rejected "+token, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, resp, err := websocket.Dial(ctx, wsURL+"?token="+token, nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.False(t, h.IsDeviceConnected("d1"))
		})
	}

	t.Run("ping pong", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		conn, _, err := websocket.Dial(ctx, wsURL+"?token=good", nil)
		require.NoError(t, err)
		require.Eventually(t, func() bool { return h.IsDeviceConnected("d1") }, time.Second, 5*time.Millisecond)

		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping","id":"42"}`)))
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)

		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, TypePong, msg.Type)
		assert.Equal(t, "42", msg.ID)

		require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
		require.Eventually(t, func() bool { return !h.IsDeviceConnected("d1") }, 2*time.Second, 10*time.Millisecond)
	})
}
