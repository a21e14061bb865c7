package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kast-lang/playground/internal/common/logger"
	ws "github.com/kast-lang/playground/pkg/websocket"
)

// idleClient returns a server-side Client whose write pump is not running,
// and the editor end of its connection.
func idleClient(t *testing.T) (*Client, *gorillaws.Conn) {
	t.Helper()
	conns := make(chan *gorillaws.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)

	editor, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = editor.Close() })

	c := NewClient("c-1", <-conns, logger.NewNop())
	t.Cleanup(func() { _ = c.conn.Close() })
	return c, editor
}

func fill(c *Client) {
	for range sendBufferSize {
		c.Notify(ws.ActionRunOutput, OutputNotification{Chunk: "x"})
	}
}

func TestClient_FullBufferBlocksInsteadOfDropping(t *testing.T) {
	c, _ := idleClient(t)
	fill(c)

	sent := make(chan struct{})
	go func() {
		c.Notify(ws.ActionRunOutput, OutputNotification{Chunk: "last"})
		close(sent)
	}()

	select {
	case <-sent:
		t.Fatal("notification returned while the buffer was full")
	case <-time.After(50 * time.Millisecond):
	}

	<-c.send
	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("notification never queued after space freed up")
	}
	assert.Len(t, c.send, sendBufferSize)
}

func TestClient_StalledEditorIsDisconnected(t *testing.T) {
	c, editor := idleClient(t)
	c.sendTimeout = 20 * time.Millisecond
	fill(c)

	c.Notify(ws.ActionRunOutput, OutputNotification{Chunk: "last"})

	select {
	case <-c.done:
	default:
		t.Fatal("client still open after the send timeout")
	}
	require.NoError(t, editor.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := editor.ReadMessage()
	assert.Error(t, err)
}
