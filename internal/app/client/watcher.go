package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"devicesync/internal/realtime"

	"github.com/coder/websocket"
	"golang.org/x/exp/slog"
)

// Watcher держит постоянное соединение устройства и отдает кадры обработчику.
// На ping сервера отвечает pong, иначе сервер вытеснит соединение.
type Watcher struct {
	url string
	log *slog.Logger
	now func() time.Time
}

func NewWatcher(wsURL string, log *slog.Logger) *Watcher {
	return &Watcher{
		url: wsURL,
		log: log,
		now: time.Now,
	}
}

// CloseError сервер закрыл соединение: 4000 вытеснено новым, 4001 нет heartbeat, 4003 устройство отключено
type CloseError struct {
	Code   websocket.StatusCode
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("connection closed by server: %d %s", int(e.Code), e.Reason)
}

// Watch подключается с токеном устройства и блокируется до отмены ctx
// либо закрытия соединения сервером
func (w *Watcher) Watch(ctx context.Context, deviceToken string, handle func(realtime.Message)) error {
	conn, _, err := websocket.Dial(ctx, w.url+"?token="+url.QueryEscape(deviceToken), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", w.url, err)
	}
	defer conn.CloseNow()

	w.log.Info("watching realtime events", "url", w.url)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			var ce websocket.CloseError
			if errors.As(err, &ce) {
				return &CloseError{Code: ce.Code, Reason: ce.Reason}
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg realtime.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			w.log.Warn("malformed frame", "error", err)
			continue
		}

		if msg.Type == realtime.TypePing {
			if err := w.reply(ctx, conn, msg.ID); err != nil {
				return err
			}
		}
		handle(msg)
	}
}

func (w *Watcher) reply(ctx context.Context, conn *websocket.Conn, id string) error {
	pong, err := json.Marshal(realtime.Message{
		Type:      realtime.TypePong,
		ID:        id,
		Timestamp: w.now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, pong); err != nil {
		return fmt.Errorf("send pong: %w", err)
	}
	return nil
}
