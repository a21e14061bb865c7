package websocket

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kast-lang/playground/internal/common/logger"
	ws "github.com/kast-lang/playground/pkg/websocket"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The playground is a public page served from any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades editor connections.
type Handler struct {
	cfg    WorkspaceConfig
	logger *logger.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(cfg WorkspaceConfig, log *logger.Logger) *Handler {
	return &Handler{
		cfg:    cfg,
		logger: log.WithComponent("ws_handler"),
	}
}

// HandleConnection upgrades HTTP to WebSocket and serves the connection until
// it closes. The connection's workers die with it.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	clientID := uuid.New().String()
	h.logger.Debug("WebSocket connection established",
		zap.String("client_id", clientID),
		zap.String("remote_addr", c.Request.RemoteAddr))

	// The request context ends when the handler returns; the workspace is
	// scoped to the read loop instead.
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	client := NewClient(clientID, conn, h.logger)
	workspace, err := NewWorkspace(ctx, h.cfg, client.Notify, h.logger.WithFields(zap.String("client_id", clientID)))
	if err != nil {
		h.logger.Error("Failed to create workspace", zap.Error(err))
		client.sendError("", "", ws.ErrorCodeInternalError, "failed to create workspace", nil)
		go client.WritePump()
		client.Close()
		return
	}

	dispatcher := ws.NewDispatcher()
	RegisterHealthHandler(dispatcher)
	workspace.Register(dispatcher)

	go client.WritePump()
	client.ReadPump(ctx, dispatcher)

	cancel()
	workspace.Close()
	client.Wait()
	h.logger.Debug("WebSocket connection closed", zap.String("client_id", clientID))
}

// RegisterHealthHandler answers health.check with the actions d serves.
func RegisterHealthHandler(d *ws.Dispatcher) {
	d.RegisterFunc(ws.ActionHealthCheck, func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		return ws.NewResponse(msg.ID, msg.Action, map[string]any{
			"status":  "ok",
			"service": "kast-playground",
			"actions": d.Actions(),
		})
	})
}
