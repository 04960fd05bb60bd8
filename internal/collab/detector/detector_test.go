package detector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// engine answers every binary frame with one detection labelled by the
// frame contents.
func engine(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			resp, _ := json.Marshal([]Detection{{Label: string(msg), Score: 0.9}})
			if err := conn.WriteMessage(websocket.TextMessage, resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient_DetectRoundTrip(t *testing.T) {
	srv := engine(t)
	c := New(Config{URL: wsURL(srv)}, nil)

	info, err := c.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wsURL(srv), info["url"])

	got, err := c.Detect(context.Background(), []byte("thumbs_up"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "thumbs_up", got[0].Label)
	assert.InDelta(t, 0.9, got[0].Score, 1e-9)

	require.NoError(t, c.Release(context.Background()))
	_, err = c.Detect(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_AcquireFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := New(Config{URL: wsURL(srv), DialAttempts: 2}, nil)
	_, err := c.Acquire(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect detector")
}

func TestClient_AcquireCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(Config{URL: "ws://127.0.0.1:1/ws", DialAttempts: 5}, nil)
	_, err := c.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_ReleaseWithoutAcquire(t *testing.T) {
	c := New(Config{URL: "ws://unused"}, nil)
	assert.NoError(t, c.Release(context.Background()))
	assert.Equal(t, "detector", c.Name())
}
