package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/taskboard/internal/client"
	"github.com/mtlprog/taskboard/internal/domain"
)

func TestWatch_DeliversEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(domain.ChangeEvent{Type: domain.ChangeTaskUpdated, TaskID: "t1", At: base})
		// Hold the connection until the client goes away.
		conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan domain.ChangeEvent, 1)
	done := make(chan error, 1)
	go func() {
		done <- client.Watch(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), func(ev domain.ChangeEvent) {
			events <- ev
		})
	}()

	select {
	case ev := <-events:
		assert.Equal(t, domain.ChangeTaskUpdated, ev.Type)
		assert.Equal(t, "t1", ev.TaskID)
	case <-ctx.Done():
		t.Fatal("no event received")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
