package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wave-arena/internal/game"
)

type snapshotSource struct{ snap *game.Snapshot }

func (s snapshotSource) Snapshot() *game.Snapshot               { return s.snap }
func (s snapshotSource) Do(context.Context, game.Command) error { return nil }
func (s snapshotSource) QueueStats() game.QueueStats            { return game.QueueStats{} }
func (s snapshotSource) Seed() uint64                           { return 1 }

func startHub(t *testing.T, origins []string) (*WebSocketHub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	hub := NewWebSocketHub(NewOriginPolicy(origins))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return hub, ts, cancel
}

func dial(t *testing.T, ts *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	return websocket.DefaultDialer.Dial(url, header)
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebSocketHubForwardsBusEvents(t *testing.T) {
	hub, ts, _ := startHub(t, nil)
	bus := game.NewEventBus()
	hub.Attach(bus)
	defer hub.Detach()

	conn, _, err := dial(t, ts, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	bus.Publish(game.EventTypeWaveStarted, "wave", game.WaveStartedPayload{Wave: 1, KillTarget: 30, Duration: 30})

	msg := readMessage(t, conn)
	assert.Equal(t, game.EventTypeWaveStarted.String(), msg["event"])
	data := msg["data"].(map[string]any)
	payload := data["payload"].(map[string]any)
	assert.Equal(t, float64(30), payload["killTarget"])
}

func TestWebSocketHubStateLoop(t *testing.T) {
	hub, ts, _ := startHub(t, nil)

	conn, _, err := dial(t, ts, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := snapshotSource{snap: &game.Snapshot{Sequence: 9, Wave: game.WaveState{Index: 4}}}
	go hub.RunStateLoop(ctx, src, 10*time.Millisecond)

	msg := readMessage(t, conn)
	assert.Equal(t, "state", msg["event"])
	data := msg["data"].(map[string]any)
	assert.Equal(t, float64(9), data["sequence"])
}

func TestWebSocketHubRejectsForeignOrigin(t *testing.T) {
	hub, ts, _ := startHub(t, []string{"https://arena.test"})

	_, resp, err := dial(t, ts, http.Header{"Origin": []string{"https://evil.test"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, hub.ClientCount())
	assert.Zero(t, hub.wsLimiter.ConnectionCount("127.0.0.1"), "slot released after failed upgrade")

	conn, _, err := dial(t, ts, http.Header{"Origin": []string{"https://arena.test"}})
	require.NoError(t, err)
	conn.Close()
}

func TestWebSocketHubReleasesOnDisconnect(t *testing.T) {
	hub, ts, _ := startHub(t, nil)

	conn, _, err := dial(t, ts, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, hub.wsLimiter.ConnectionCount("127.0.0.1"))
}

func TestWebSocketHubRefusesAfterShutdown(t *testing.T) {
	hub, ts, cancel := startHub(t, nil)
	cancel()
	require.Eventually(t, func() bool {
		select {
		case <-hub.done:
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	_, resp, err := dial(t, ts, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
