package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/brawl-relay/internal/hub"
	"github.com/DoyleJ11/brawl-relay/internal/metrics"
	"github.com/DoyleJ11/brawl-relay/internal/room"
	"github.com/DoyleJ11/brawl-relay/internal/supervisor"
	"github.com/DoyleJ11/brawl-relay/internal/types"
	"github.com/DoyleJ11/brawl-relay/internal/ws"
)

func newServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>brawl</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "game.js"), []byte("start()"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sprite.png"), []byte{0x89, 'P', 'N', 'G'}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "assets"), 0o755))

	reg := prometheus.NewRegistry()
	h := hub.NewHub(context.Background(), zap.NewNop(), metrics.New(reg), hub.WithSweepInterval(0))

	srv := httptest.NewServer(SetupRoutes(Deps{
		Hub:       h,
		Log:       zap.NewNop(),
		Gatherer:  reg,
		StaticDir: dir,
		WS:        ws.Options{OutboxSize: 16, WriteTimeout: time.Second},
	}))
	t.Cleanup(func() {
		srv.Close()
		h.Close()
	})
	return srv, dir
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func write(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, b))
}

func read(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, b, err := c.Read(ctx)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func stats(t *testing.T, srv *httptest.Server) supervisor.Counts {
	t.Helper()
	resp, body := get(t, srv.URL+"/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var c supervisor.Counts
	require.NoError(t, json.Unmarshal([]byte(body), &c))
	return c
}

func TestHealthz(t *testing.T) {
	srv, _ := newServer(t)
	resp, _ := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatic(t *testing.T) {
	srv, _ := newServer(t)

	tests := []struct {
		path   string
		status int
		ctype  string
		body   string
	}{
		{"/", http.StatusOK, "text/html", "<h1>brawl</h1>"},
		{"/index.html", http.StatusOK, "text/html", "<h1>brawl</h1>"},
		{"/game.js", http.StatusOK, "text/javascript", "start()"},
		{"/sprite.png", http.StatusOK, "image/png", ""},
		{"/notes.txt", http.StatusOK, "text/html", "hi"},
		{"/missing.css", http.StatusNotFound, "", "File not found"},
		{"/assets", http.StatusNotFound, "", "File not found"},
		{"/../../etc/passwd", http.StatusNotFound, "", "File not found"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, srv.URL+tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.ctype != "" {
				assert.Equal(t, tt.ctype, resp.Header.Get("Content-Type"))
			}
			if tt.body != "" {
				assert.Contains(t, body, tt.body)
			}
		})
	}
}

func TestStatic_SymlinkOutsideRootIsHidden(t *testing.T) {
	srv, dir := newServer(t)
	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))
	if err := os.Symlink(outside, filepath.Join(dir, "leak.txt")); err != nil {
		t.Skip("symlinks unsupported:", err)
	}

	resp, body := get(t, srv.URL+"/leak.txt")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotContains(t, body, "secret")
}

func TestStatic_UnreadableRootIs500(t *testing.T) {
	rec := httptest.NewRecorder()
	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	Static(file, zap.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Server error: ")
	assert.NotContains(t, rec.Body.String(), file)
}

func TestRoom_NotFound(t *testing.T) {
	srv, _ := newServer(t)
	resp, body := get(t, srv.URL+"/rooms/NOPE12")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Room not found"}`, body)
}

func TestEndToEnd_CodeRoom(t *testing.T) {
	srv, _ := newServer(t)
	host := dial(t, srv)
	guest := dial(t, srv)

	write(t, host, map[string]any{"type": types.TypeCreateRoom})
	created := read(t, host)
	require.Equal(t, types.TypeRoomCreated, created["type"])
	roomID := created["roomId"].(string)
	assert.Len(t, roomID, 6)

	write(t, guest, map[string]any{"type": types.TypeJoinRoom, "roomId": roomID, "character": map[string]any{"name": "knight"}})
	for _, c := range []*websocket.Conn{host, guest} {
		assert.Equal(t, types.TypePlayerJoined, read(t, c)["type"])
		assert.Equal(t, types.TypeGameStart, read(t, c)["type"])
	}

	resp, body := get(t, srv.URL+"/rooms/"+roomID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap room.Snapshot
	require.NoError(t, json.Unmarshal([]byte(body), &snap))
	assert.Equal(t, room.StatusFull, snap.Status)
	assert.Len(t, snap.Players, 2)

	write(t, host, map[string]any{"type": types.TypeGameState, "state": map[string]any{"x": 10}})
	got := read(t, guest)
	assert.Equal(t, types.TypeGameState, got["type"])
	assert.Equal(t, created["playerId"], got["playerId"])

	assert.Equal(t, supervisor.Counts{Connections: 2, Rooms: 1, Participants: 2}, stats(t, srv))

	require.NoError(t, guest.Close(websocket.StatusNormalClosure, "bye"))
	left := read(t, host)
	assert.Equal(t, types.TypePlayerLeft, left["type"])

	assert.Eventually(t, func() bool {
		return stats(t, srv) == supervisor.Counts{Connections: 1, Rooms: 1, Participants: 1}
	}, time.Second, 10*time.Millisecond)
}

func TestEndToEnd_FindMatch(t *testing.T) {
	srv, _ := newServer(t)
	a := dial(t, srv)
	b := dial(t, srv)

	write(t, a, map[string]any{"type": types.TypeFindMatch})
	assert.Equal(t, types.TypeWaitingForMatch, read(t, a)["type"])

	write(t, b, map[string]any{"type": types.TypeFindMatch})
	fa, fb := read(t, a), read(t, b)
	assert.Equal(t, types.TypeMatchFound, fa["type"])
	assert.Equal(t, true, fa["isPlayer1"])
	assert.Equal(t, false, fb["isPlayer1"])
	assert.Equal(t, fa["roomId"], fb["roomId"])

	write(t, a, "not an envelope")
	assert.Equal(t, types.MsgInvalidFormat, read(t, a)["message"])
}

func TestMetrics(t *testing.T) {
	srv, _ := newServer(t)
	dial(t, srv)
	assert.Eventually(t, func() bool { return stats(t, srv).Connections == 1 }, time.Second, 10*time.Millisecond)

	resp, body := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "relay_connections 1")
}

func TestStats_HubClosed(t *testing.T) {
	h := hub.NewHub(context.Background(), zap.NewNop(), metrics.New(prometheus.NewRegistry()), hub.WithSweepInterval(0))
	h.Close()

	rec := httptest.NewRecorder()
	Stats(h)(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
