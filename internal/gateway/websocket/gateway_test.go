package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kast-lang/playground/internal/common/logger"
	"github.com/kast-lang/playground/internal/engine/kast"
	"github.com/kast-lang/playground/internal/lsp"
	"github.com/kast-lang/playground/internal/worker/spawner"
	ws "github.com/kast-lang/playground/pkg/websocket"
)

type testClient struct {
	t      *testing.T
	conn   *gorillaws.Conn
	nextID atomic.Int64
	// notifications seen while waiting for responses
	notes []*ws.Message
}

func setupGateway(t *testing.T) *testClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sp := &spawner.InProcess{NewEngine: kast.New, Logger: logger.NewNop()}
	gw := NewGateway(WorkspaceConfig{Analysis: sp, Runs: sp, HandshakeTimeout: 5 * time.Second}, logger.NewNop())
	router := gin.New()
	gw.SetupRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) read() *ws.Message {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg ws.Message
	require.NoError(c.t, c.conn.ReadJSON(&msg))
	return &msg
}

func (c *testClient) send(action string, payload any) string {
	c.t.Helper()
	id := strconv.FormatInt(c.nextID.Add(1), 10)
	msg, err := ws.NewRequest(id, action, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(msg))
	return id
}

// request sends and reads until the reply with the same id, keeping
// notifications aside.
func (c *testClient) request(action string, payload any) *ws.Message {
	c.t.Helper()
	id := c.send(action, payload)
	for {
		msg := c.read()
		if msg.Type == ws.MessageTypeNotification {
			c.notes = append(c.notes, msg)
			continue
		}
		if msg.ID == id {
			return msg
		}
	}
}

// waitNote returns the first notification with action, looking at the ones
// already seen first.
func (c *testClient) waitNote(action string) *ws.Message {
	c.t.Helper()
	for i, n := range c.notes {
		if n.Action == action {
			c.notes = append(c.notes[:i], c.notes[i+1:]...)
			return n
		}
	}
	for {
		msg := c.read()
		if msg.Type == ws.MessageTypeNotification && msg.Action == action {
			return msg
		}
		c.notes = append(c.notes, msg)
	}
}

func decodeResult[T any](t *testing.T, msg *ws.Message) T {
	t.Helper()
	require.Equal(t, ws.MessageTypeResponse, msg.Type, string(msg.Payload))
	var out struct {
		Result T `json:"result"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &out))
	return out.Result
}

func TestGateway_HealthCheck(t *testing.T) {
	c := setupGateway(t)
	resp := c.request(ws.ActionHealthCheck, nil)
	assert.Equal(t, ws.MessageTypeResponse, resp.Type)
	assert.Contains(t, string(resp.Payload), "kast-playground")

	var health struct {
		Actions []string `json:"actions"`
	}
	require.NoError(t, resp.ParsePayload(&health))
	assert.Contains(t, health.Actions, ws.ActionLSPHover)
	assert.Contains(t, health.Actions, ws.ActionRunStart)
}

func TestGateway_DiagnosticsUseEditorCoordinates(t *testing.T) {
	c := setupGateway(t)

	resp := c.request(ws.ActionFileUpdate, FileUpdateRequest{URI: "file:///main.ks", Contents: "print x;"})
	require.Equal(t, ws.MessageTypeResponse, resp.Type)

	note := c.waitNote(ws.ActionDiagnosticsPublish)
	var diags DiagnosticsNotification
	require.NoError(t, note.ParsePayload(&diags))
	assert.Equal(t, "file:///main.ks", diags.URI)
	require.Len(t, diags.Diagnostics, 1)
	assert.Equal(t, lsp.EditorRange{StartLineNumber: 1, StartColumn: 7, EndLineNumber: 1, EndColumn: 8}, diags.Diagnostics[0].Range)
}

func TestGateway_HoverAfterUpdate(t *testing.T) {
	c := setupGateway(t)

	c.request(ws.ActionFileUpdate, FileUpdateRequest{URI: "u", Contents: "print 1;"})
	resp := c.request(ws.ActionLSPHover, PositionRequest{URI: "u", Position: lsp.EditorPosition{LineNumber: 1, Column: 1}})

	hover := decodeResult[*EditorHover](t, resp)
	require.NotNil(t, hover)
	assert.Contains(t, hover.Contents.Value, "print")
	require.NotNil(t, hover.Range)
	assert.Equal(t, 1, hover.Range.StartColumn)
	assert.Equal(t, 6, hover.Range.EndColumn)
}

func TestGateway_QueriesSeeLatestEdit(t *testing.T) {
	c := setupGateway(t)

	for i := 0; i < 5; i++ {
		c.send(ws.ActionFileUpdate, FileUpdateRequest{URI: "u", Contents: "let v" + strconv.Itoa(i) + " = 1;"})
	}
	resp := c.request(ws.ActionLSPHover, PositionRequest{URI: "u", Position: lsp.EditorPosition{LineNumber: 1, Column: 5}})
	hover := decodeResult[*EditorHover](t, resp)
	require.NotNil(t, hover)
	assert.Contains(t, hover.Contents.Value, "let v4: int")
}

func TestGateway_LegendAndTokens(t *testing.T) {
	c := setupGateway(t)

	legend := decodeResult[lsp.SemanticTokensLegend](t, c.request(ws.ActionLSPSemanticTokensLegend, nil))
	assert.Contains(t, legend.TokenTypes, "keyword")

	c.request(ws.ActionFileUpdate, FileUpdateRequest{URI: "u", Contents: "print 1;"})
	tokens := decodeResult[*lsp.SemanticTokens](t, c.request(ws.ActionLSPSemanticTokens, DocumentRequest{URI: "u"}))
	require.NotNil(t, tokens)
	assert.NotEmpty(t, tokens.Data)
}

func TestGateway_Rename(t *testing.T) {
	c := setupGateway(t)

	c.request(ws.ActionFileUpdate, FileUpdateRequest{URI: "u", Contents: "let a = 1; print a;"})
	resp := c.request(ws.ActionLSPRename, RenameRequest{URI: "u", Position: lsp.EditorPosition{LineNumber: 1, Column: 5}, NewName: "b"})
	edit := decodeResult[*EditorWorkspaceEdit](t, resp)
	require.NotNil(t, edit)
	assert.Len(t, edit.Edits["u"], 2)
}

func TestGateway_Errors(t *testing.T) {
	c := setupGateway(t)

	tests := []struct {
		name    string
		action  string
		payload any
		code    string
	}{
		{"unknown action", "lsp.teleport", nil, ws.ErrorCodeUnknownAction},
		{"bad position", ws.ActionLSPHover, PositionRequest{URI: "u", Position: lsp.EditorPosition{LineNumber: 0, Column: 1}}, ws.ErrorCodeBadRequest},
		{"missing uri", ws.ActionLSPFormat, DocumentRequest{}, ws.ErrorCodeBadRequest},
		{"missing new name", ws.ActionLSPRename, RenameRequest{URI: "u", Position: lsp.EditorPosition{LineNumber: 1, Column: 1}}, ws.ErrorCodeBadRequest},
		{"stale input", ws.ActionRunInput, RunInputRequest{RequestID: "nope", Line: "x"}, ws.ErrorCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := c.request(tt.action, tt.payload)
			require.Equal(t, ws.MessageTypeError, resp.Type)
			var payload ws.ErrorPayload
			require.NoError(t, resp.ParsePayload(&payload))
			assert.Equal(t, tt.code, payload.Code)
		})
	}
}

func TestGateway_MalformedMessage(t *testing.T) {
	c := setupGateway(t)

	require.NoError(t, c.conn.WriteMessage(gorillaws.TextMessage, []byte("{not json")))
	msg := c.read()
	assert.Equal(t, ws.MessageTypeError, msg.Type)
	assert.Contains(t, string(msg.Payload), ws.ErrorCodeBadRequest)
}

func TestGateway_InteractiveRun(t *testing.T) {
	c := setupGateway(t)

	runID := c.send(ws.ActionRunStart, RunStartRequest{URI: "u", Contents: `ask "name? "; print "hi " + it;`})

	prompt := c.waitNote(ws.ActionRunInputRequest)
	var req InputRequestNotification
	require.NoError(t, prompt.ParsePayload(&req))
	assert.Equal(t, "name? ", req.Prompt)
	require.NotEmpty(t, req.RequestID)

	c.send(ws.ActionRunInput, RunInputRequest{RequestID: req.RequestID, Line: "Alice"})

	var (
		output string
		states []string
		result *RunResult
	)
	for result == nil {
		msg := c.read()
		switch {
		case msg.Action == ws.ActionRunOutput:
			var out OutputNotification
			require.NoError(t, msg.ParsePayload(&out))
			output += out.Chunk
		case msg.Action == ws.ActionRunState:
			var st RunStateNotification
			require.NoError(t, msg.ParsePayload(&st))
			states = append(states, st.State)
		case msg.ID == runID:
			require.Equal(t, ws.MessageTypeResponse, msg.Type, string(msg.Payload))
			result = &RunResult{}
			require.NoError(t, msg.ParsePayload(result))
		}
	}
	for _, n := range c.notes {
		if n.Action == ws.ActionRunState {
			var st RunStateNotification
			require.NoError(t, n.ParsePayload(&st))
			states = append([]string{st.State}, states...)
		}
	}

	assert.Equal(t, RunStatusCompleted, result.Status)
	assert.Equal(t, "hi Alice\n", output)
	assert.Contains(t, states, "running")
}
