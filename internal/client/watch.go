package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mtlprog/taskboard/internal/domain"
)

const (
	watchMinBackoff = time.Second
	watchMaxBackoff = 30 * time.Second
	watchReadLimit  = 64 * 1024
	watchPongWait   = 60 * time.Second
)

// Watch subscribes to the change feed at wsURL and calls onChange for every event. It
// reconnects with backoff until ctx is done and then returns ctx.Err().
func Watch(ctx context.Context, wsURL string, onChange func(domain.ChangeEvent)) error {
	backoff := watchMinBackoff
	for {
		connected, err := watchOnce(ctx, wsURL, onChange)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = watchMinBackoff
		}
		slog.Warn("change feed disconnected", "url", wsURL, "retry_in", backoff, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, watchMaxBackoff)
	}
}

// WatchAndRefresh keeps c's cache fresh by refreshing on every change event.
func WatchAndRefresh(ctx context.Context, c *Client, wsURL string, onRefresh func(Snapshot)) error {
	return Watch(ctx, wsURL, func(ev domain.ChangeEvent) {
		slog.Debug("task change received", "type", ev.Type, "task_id", ev.TaskID)
		snap := c.Refresh(ctx)
		if onRefresh != nil {
			onRefresh(snap)
		}
	})
}

func watchOnce(ctx context.Context, wsURL string, onChange func(domain.ChangeEvent)) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial change feed: %w", err)
	}
	defer conn.Close()

	conn.SetReadLimit(watchReadLimit)
	conn.SetReadDeadline(time.Now().Add(watchPongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(watchPongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	slog.Info("change feed connected", "url", wsURL)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				return true, nil
			}
			return true, fmt.Errorf("read change feed: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(watchPongWait))

		var ev domain.ChangeEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			slog.Warn("bad change event", "error", err)
			continue
		}
		onChange(ev)
	}
}
