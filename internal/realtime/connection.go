package realtime

import (
	"context"
	"sync"
	"time"

	"devicesync/internal/domain/device"

	"github.com/coder/websocket"
)

// Коды закрытия соединения
const (
	CloseReplaced         websocket.StatusCode = 4000
	CloseHeartbeatTimeout websocket.StatusCode = 4001
	CloseDeviceDisabled   websocket.StatusCode = 4003
	CloseSendOverflow     websocket.StatusCode = 4008
)

// flushTimeout сколько закрытие ждет дописывания очереди
const flushTimeout = time.Second

// State состояние соединения
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// wsConn сокет соединения; *websocket.Conn ему удовлетворяет, в тестах подменяется
type wsConn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Connection живое соединение устройства
type Connection struct {
	ID          string
	UserID      string
	DeviceID    string
	DeviceType  device.Type
	Platform    device.Platform
	ConnectedAt time.Time

	conn wsConn
	// queue исходящие кадры; пишет в сокет только writeLoop
	queue   chan []byte
	closing chan struct{}
	flushed chan struct{}

	mu            sync.Mutex
	state         State
	alive         bool
	lastHeartbeat time.Time
	closeCode     websocket.StatusCode
	cancel        context.CancelFunc
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// enqueue ставит кадр в очередь без ожидания; false, если очередь переполнена.
// Кадры для закрывающегося соединения отбрасываются
func (c *Connection) enqueue(data []byte) bool {
	select {
	case <-c.closing:
		return true
	default:
	}
	select {
	case c.queue <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) markAlive(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = true
	c.lastHeartbeat = at
}

// probe снимает отметку живости; false, если с прошлой проверки ответа не было
func (c *Connection) probe() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive {
		return false
	}
	c.alive = false
	return true
}

// close переводит соединение в Closing и закрывает сокет; повторные вызовы ничего не делают
func (c *Connection) close(code websocket.StatusCode, reason string) bool {
	c.mu.Lock()
	if c.state == StateClosing || c.state == StateClosed {
		c.mu.Unlock()
		return false
	}
	c.state = StateClosing
	c.closeCode = code
	cancel := c.cancel
	c.mu.Unlock()

	close(c.closing)
	select {
	case <-c.flushed:
	case <-time.After(flushTimeout):
	}

	_ = c.conn.Close(code, reason)
	if cancel != nil {
		cancel()
	}

	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
	return true
}
