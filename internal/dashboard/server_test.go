package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/containercopier/container-copier/internal/daemon"
	"github.com/containercopier/container-copier/internal/metrics"
	"github.com/containercopier/container-copier/internal/notify"
)

func startServer(t *testing.T, collector *metrics.Collector) *Server {
	t.Helper()
	server := NewServer(Config{Addr: "127.0.0.1:0", Logger: zap.NewNop(), Metrics: collector})
	require.NoError(t, server.Start())
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

// dial connects a feed client and consumes the hello message.
func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	msg := readMessage(t, ctx, conn)
	require.Equal(t, MessageTypeHello, msg.Type)
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(Config{Addr: "127.0.0.1:0"})
	require.NoError(t, server.Start())
	assert.NotEqual(t, "127.0.0.1:0", server.Addr())
	assert.NoError(t, server.Stop())
}

func TestServerStartBadAddr(t *testing.T) {
	server := NewServer(Config{Addr: "not-an-address"})
	assert.Error(t, server.Start())
}

func TestHealth(t *testing.T) {
	server := startServer(t, nil)
	url := "http://" + server.Addr() + "/health"

	resp, err := http.Get(url)
	require.NoError(t, err)
	var body HealthData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "starting", body.Status)

	server.SetupComplete(3, 2, time.Millisecond)
	server.Copied(&daemon.ResolvedWatch{Copyset: "cfg", Source: "/src/a", Target: "/dst/a"}, metrics.PhaseEvent)

	resp, err = http.Get(url)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, HealthData{Status: "ok", Targets: 3, Copies: 1}, body)
}

func TestMetricsEndpoint(t *testing.T) {
	collector := metrics.New()
	collector.Copied("cfg", metrics.PhaseInitial)
	server := startServer(t, collector)

	resp, err := http.Get("http://" + server.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `container_copier_copies_total{copyset="cfg",phase="initial"} 1`)
}

func TestMetricsEndpointWithoutCollector(t *testing.T) {
	server := startServer(t, nil)

	resp, err := http.Get("http://" + server.Addr() + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFeed(t *testing.T) {
	server := startServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	assert.Equal(t, 1, server.ClientCount())

	w := &daemon.ResolvedWatch{Copyset: "cfg", Source: "/src/a.txt", Target: "/dst/a.txt"}
	server.SetupComplete(1, 1, 5*time.Millisecond)
	server.Copied(w, metrics.PhaseEvent)
	server.UnknownWatch(notify.WatchID(9))
	server.CopyFailed(w, errors.New("disk full"))

	msg := readMessage(t, ctx, conn)
	require.Equal(t, MessageTypeSetupComplete, msg.Type)
	var setup SetupData
	require.NoError(t, json.Unmarshal(msg.Data, &setup))
	assert.Equal(t, SetupData{Targets: 1, Watches: 1, Duration: 5 * time.Millisecond}, setup)

	msg = readMessage(t, ctx, conn)
	require.Equal(t, MessageTypeCopy, msg.Type)
	var copied CopyData
	require.NoError(t, json.Unmarshal(msg.Data, &copied))
	assert.Equal(t, CopyData{Copyset: "cfg", Source: "/src/a.txt", Target: "/dst/a.txt", Phase: "event"}, copied)

	msg = readMessage(t, ctx, conn)
	require.Equal(t, MessageTypeUnknownWatch, msg.Type)
	var unknown UnknownWatchData
	require.NoError(t, json.Unmarshal(msg.Data, &unknown))
	assert.Equal(t, 9, unknown.WatchID)

	msg = readMessage(t, ctx, conn)
	require.Equal(t, MessageTypeCopyFailed, msg.Type)
	var failed CopyData
	require.NoError(t, json.Unmarshal(msg.Data, &failed))
	assert.Equal(t, "disk full", failed.Error)
}

func TestMultipleClients(t *testing.T) {
	server := startServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, ctx, server)
	}
	assert.Equal(t, 3, server.ClientCount())

	server.UnknownWatch(notify.WatchID(1))
	for _, conn := range conns {
		assert.Equal(t, MessageTypeUnknownWatch, readMessage(t, ctx, conn).Type)
	}
}

func TestClientDisconnect(t *testing.T) {
	server := startServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

	assert.Eventually(t, func() bool { return server.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}
