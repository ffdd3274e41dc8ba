package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leadboard/internal/events"
	"leadboard/pkg/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Hub, *events.Bus, string) {
	t.Helper()
	bus := events.NewBus(zap.NewNop())
	hub := NewHub(bus, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
		bus.Close()
	})
	return hub, bus, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) WSEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var e WSEvent
	require.NoError(t, json.Unmarshal(raw, &e))
	return e
}

func TestHub_RelaysBusEvents(t *testing.T) {
	hub, bus, url := startHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	bus.Emit(events.KindReady, events.StatusData{State: models.StateConnected})
	e := readEvent(t, conn)
	assert.Equal(t, EventWhatsAppStatus, e.Type)
	assert.Equal(t, "connected", e.Data.(map[string]interface{})["status"])

	bus.Emit(events.KindSyncSuccess, events.SyncData{Written: 2, Created: 1})
	assert.Equal(t, EventAutoSyncSuccess, readEvent(t, conn).Type)
}

func TestHub_ReplaysLastQR(t *testing.T) {
	hub, bus, url := startHub(t)

	bus.Emit(events.KindQR, events.QRData{Code: "2@pending"})
	require.Eventually(t, func() bool { return hub.LastQR() == "2@pending" }, time.Second, 10*time.Millisecond)

	conn := dial(t, url)
	e := readEvent(t, conn)
	assert.Equal(t, EventQR, e.Type)
	assert.Equal(t, "2@pending", e.Data.(map[string]interface{})["qr"])

	bus.Emit(events.KindReady, events.StatusData{State: models.StateConnected})
	require.Eventually(t, func() bool { return hub.LastQR() == "" }, time.Second, 10*time.Millisecond)
}

func TestHub_KeepsEventsEmittedBeforeRun(t *testing.T) {
	bus := events.NewBus(zap.NewNop())
	defer bus.Close()
	hub := NewHub(bus, zap.NewNop())

	bus.Emit(events.KindQR, events.QRData{Code: "2@early"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool { return hub.LastQR() == "2@early" }, time.Second, 10*time.Millisecond)
}

func TestEventName(t *testing.T) {
	assert.Equal(t, EventQR, EventName(events.KindQR))
	assert.Equal(t, EventWhatsAppStatus, EventName(events.KindDisconnected))
	assert.Equal(t, EventMessageUpdate, EventName(events.KindMessageSent))
	assert.Equal(t, EventAutoSyncError, EventName(events.KindSyncError))
	assert.Equal(t, "", EventName("unknown"))
}
