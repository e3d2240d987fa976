// Package realtime реестр соединений устройств и доставка событий по WebSocket.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"devicesync/internal/domain/apperr"
	"devicesync/internal/domain/device"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

var ErrHubClosed = errors.New("realtime hub is shut down")

// Authenticator проверяет токен устройства до установки соединения
type Authenticator interface {
	AuthenticateDevice(ctx context.Context, token string) (*device.Device, error)
}

// Config параметры реестра
type Config struct {
	HeartbeatInterval time.Duration
	// WriteTimeout ограничивает отправку одного кадра
	WriteTimeout time.Duration
	// SendBuffer емкость очереди исходящих кадров соединения
	SendBuffer     int
	OriginPatterns []string
}

// Stats снимок состояния реестра
type Stats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveUsers      int            `json:"active_users"`
	ConnectedDevices int            `json:"connected_devices"`
	ByDeviceType     map[string]int `json:"by_device_type"`
}

// Hub реестр соединений: не больше одного живого соединения на устройство
type Hub struct {
	auth Authenticator
	log  *slog.Logger
	cfg  Config
	now  func() time.Time

	mu       sync.RWMutex
	conns    map[string]*Connection
	byDevice map[string]*Connection
	byUser   map[string]map[string]*Connection
	closed   bool

	closers sync.WaitGroup
}

func NewHub(auth Authenticator, log *slog.Logger, cfg Config) *Hub {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}

	return &Hub{
		auth:     auth,
		log:      log.With(slog.String("component", "realtime_hub")),
		cfg:      cfg,
		now:      time.Now,
		conns:    make(map[string]*Connection),
		byDevice: make(map[string]*Connection),
		byUser:   make(map[string]map[string]*Connection),
	}
}

// ServeHTTP принимает соединение устройства: токен из query-параметра token
// проверяется до апгрейда, при ошибке отвечаем 401 без открытия сокета
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, apperr.Unauthorized.Code(), "token query parameter is required")
		return
	}

	d, err := h.auth.AuthenticateDevice(r.Context(), token)
	if err != nil {
		kind := apperr.KindOf(err)
		status := http.StatusUnauthorized
		msg := err.Error()
		if kind == apperr.Internal {
			h.log.Error("device authentication failed", "error", err)
			status = http.StatusInternalServerError
			msg = "internal server error"
		}
		writeError(w, status, kind.Code(), msg)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.cfg.OriginPatterns})
	if err != nil {
		h.log.Warn("websocket upgrade failed", "device_id", d.ID, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c, err := h.open(ws, d, cancel)
	if err != nil {
		_ = ws.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	h.serve(ctx, c)
}

// open регистрирует соединение; прежнее соединение устройства вытесняется
func (h *Hub) open(conn wsConn, d *device.Device, cancel context.CancelFunc) (*Connection, error) {
	now := h.now()
	c := &Connection{
		ID:            uuid.NewString(),
		UserID:        d.UserID,
		DeviceID:      d.ID,
		DeviceType:    d.Type,
		Platform:      d.Platform,
		ConnectedAt:   now,
		conn:          conn,
		queue:         make(chan []byte, h.cfg.SendBuffer),
		closing:       make(chan struct{}),
		flushed:       make(chan struct{}),
		state:         StateConnecting,
		alive:         true,
		lastHeartbeat: now,
		cancel:        cancel,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	prev := h.byDevice[c.DeviceID]
	if prev != nil {
		h.removeLocked(prev)
	}
	h.conns[c.ID] = c
	h.byDevice[c.DeviceID] = c
	if h.byUser[c.UserID] == nil {
		h.byUser[c.UserID] = make(map[string]*Connection)
	}
	h.byUser[c.UserID][c.ID] = c
	h.mu.Unlock()

	c.mu.Lock()
	c.state = StateOpen
	c.mu.Unlock()

	go h.writeLoop(c)

	if prev != nil {
		h.log.Info("device connection replaced", "device_id", c.DeviceID, "old_connection", prev.ID)
		h.closeAsync(prev, CloseReplaced, "replaced by a new connection")
	}

	h.log.Info("device connected",
		"connection_id", c.ID,
		"user_id", c.UserID,
		"device_id", c.DeviceID,
		"device_type", c.DeviceType,
	)
	return c, nil
}

// serve читает кадры до закрытия соединения
func (h *Hub) serve(ctx context.Context, c *Connection) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			if h.unregister(c) {
				h.log.Info("device disconnected",
					"connection_id", c.ID,
					"device_id", c.DeviceID,
					"status", websocket.CloseStatus(err),
				)
			}
			c.close(websocket.StatusNormalClosure, "")
			return
		}
		if typ != websocket.MessageText {
			h.sendError(c, "", "unsupported_frame", "only text frames are supported")
			continue
		}
		h.handleFrame(ctx, c, data)
	}
}

func (h *Hub) handleFrame(_ context.Context, c *Connection, data []byte) {
	msg, err := decode(data)
	if err != nil {
		h.sendError(c, "", "malformed_message", "message must be a JSON object with a type")
		return
	}

	switch msg.Type {
	case TypePing:
		c.markAlive(h.now())
		h.send(c, TypePong, msg.ID, nil)
	case TypePong:
		c.markAlive(h.now())
	default:
		h.sendError(c, msg.ID, "unsupported_message", "unsupported message type "+string(msg.Type))
	}
}

// Run запускает heartbeat и блокируется до отмены ctx
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.checkHeartbeats(ctx)
		}
	}
}

// checkHeartbeats вытесняет соединения без ответа с прошлой проверки,
// остальным снимает отметку живости и отправляет ping
func (h *Hub) checkHeartbeats(_ context.Context) {
	for _, c := range h.snapshot(nil) {
		if !c.probe() {
			h.log.Info("heartbeat timeout", "connection_id", c.ID, "device_id", c.DeviceID)
			h.evict(c, CloseHeartbeatTimeout, "heartbeat timeout")
			continue
		}
		h.send(c, TypePing, uuid.NewString(), nil)
	}
}

// BroadcastSyncUpdate ставит обновление в очереди всех устройств пользователя, кроме excludeDeviceID.
// Доставки не ждет
func (h *Hub) BroadcastSyncUpdate(_ context.Context, userID string, payload any, excludeDeviceID string) {
	h.broadcast(userID, excludeDeviceID, TypeSyncUpdate, payload)
}

// NotifyConflict уведомление о конфликте всем устройствам пользователя
func (h *Hub) NotifyConflict(_ context.Context, userID string, payload any) {
	h.broadcast(userID, "", TypeConflictNotification, payload)
}

// NotifyDeviceStatus отправляет статус одному устройству
func (h *Hub) NotifyDeviceStatus(_ context.Context, deviceID string, payload any) {
	h.mu.RLock()
	c := h.byDevice[deviceID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	h.send(c, TypeDeviceStatus, "", payload)
}

// DisconnectDevice закрывает соединение устройства, если оно есть
func (h *Hub) DisconnectDevice(deviceID, reason string) {
	h.mu.RLock()
	c := h.byDevice[deviceID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	h.log.Info("device connection closed by server", "device_id", deviceID, "reason", reason)
	h.evict(c, CloseDeviceDisabled, reason)
}

func (h *Hub) IsDeviceConnected(deviceID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.byDevice[deviceID]
	return ok
}

// UserConnectedDevices идентификаторы подключенных устройств пользователя
func (h *Hub) UserConnectedDevices(userID string) []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.byUser[userID]))
	for _, c := range h.byUser[userID] {
		ids = append(ids, c.DeviceID)
	}
	h.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st := Stats{
		TotalConnections: len(h.conns),
		ActiveUsers:      len(h.byUser),
		ConnectedDevices: len(h.byDevice),
		ByDeviceType:     make(map[string]int),
	}
	for _, c := range h.conns {
		st.ByDeviceType[string(c.DeviceType)]++
	}
	return st
}

// Shutdown закрывает все соединения и ждет завершения закрытия либо отмены ctx
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	all := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		all = append(all, c)
	}
	h.conns = make(map[string]*Connection)
	h.byDevice = make(map[string]*Connection)
	h.byUser = make(map[string]map[string]*Connection)
	h.mu.Unlock()

	for _, c := range all {
		h.closeAsync(c, websocket.StatusGoingAway, "server shutdown")
	}

	done := make(chan struct{})
	go func() {
		h.closers.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("realtime hub stopped", "closed_connections", len(all))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) broadcast(userID, excludeDeviceID string, typ MessageType, payload any) {
	targets := h.snapshot(func(c *Connection) bool {
		return c.UserID == userID && c.DeviceID != excludeDeviceID
	})
	if len(targets) == 0 {
		return
	}

	data, err := encode(typ, "", payload, h.now())
	if err != nil {
		h.log.Error("failed to encode broadcast", "type", typ, "error", err)
		return
	}
	for _, c := range targets {
		h.enqueue(c, data)
	}
}

func (h *Hub) send(c *Connection, typ MessageType, id string, payload any) {
	data, err := encode(typ, id, payload, h.now())
	if err != nil {
		h.log.Error("failed to encode message", "type", typ, "error", err)
		return
	}
	h.enqueue(c, data)
}

func (h *Hub) sendError(c *Connection, id, code, msg string) {
	h.send(c, TypeError, id, ErrorData{Code: code, Message: msg})
}

// enqueue не блокирует; при переполненной очереди соединение закрывается
func (h *Hub) enqueue(c *Connection, data []byte) {
	if c.enqueue(data) {
		return
	}
	h.log.Warn("send queue overflow, closing connection", "connection_id", c.ID, "device_id", c.DeviceID)
	h.evict(c, CloseSendOverflow, "send queue overflow")
}

// writeLoop единственный писатель сокета. После начала закрытия дописывает
// оставшиеся кадры; при ошибке записи соединение закрывается без повторов
func (h *Hub) writeLoop(c *Connection) {
	defer close(c.flushed)

	for {
		select {
		case data := <-c.queue:
			if err := h.write(c, data); err != nil {
				h.log.Warn("send failed, closing connection", "connection_id", c.ID, "device_id", c.DeviceID, "error", err)
				h.evict(c, websocket.StatusInternalError, "send failed")
				return
			}
		case <-c.closing:
			for {
				select {
				case data := <-c.queue:
					if h.write(c, data) != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) write(c *Connection, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.WriteTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (h *Hub) snapshot(keep func(*Connection) bool) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		if keep == nil || keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) evict(c *Connection, code websocket.StatusCode, reason string) {
	h.unregister(c)
	h.closeAsync(c, code, reason)
}

// closeAsync закрывает сокет в фоне: закрывающее рукопожатие может ждать ответа клиента
func (h *Hub) closeAsync(c *Connection, code websocket.StatusCode, reason string) {
	h.closers.Add(1)
	go func() {
		defer h.closers.Done()
		c.close(code, reason)
	}()
}

func (h *Hub) unregister(c *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[c.ID] != c {
		return false
	}
	h.removeLocked(c)
	return true
}

func (h *Hub) removeLocked(c *Connection) {
	delete(h.conns, c.ID)
	if h.byDevice[c.DeviceID] == c {
		delete(h.byDevice, c.DeviceID)
	}
	if userConns := h.byUser[c.UserID]; userConns != nil {
		delete(userConns, c.ID)
		if len(userConns) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error": map[string]string{
			"code":    code,
			"message": msg,
		},
	})
}
