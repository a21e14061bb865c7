// Package websocket is the editor gateway: one websocket per editor tab,
// each with its own workspace of workers.
package websocket

import (
	"github.com/gin-gonic/gin"

	"github.com/kast-lang/playground/internal/common/logger"
)

// Gateway bundles the connection handler and its routes.
type Gateway struct {
	Handler *Handler
	logger  *logger.Logger
}

// NewGateway creates a gateway whose connections get workspaces built from
// cfg.
func NewGateway(cfg WorkspaceConfig, log *logger.Logger) *Gateway {
	return &Gateway{
		Handler: NewHandler(cfg, log),
		logger:  log,
	}
}

// SetupRoutes adds the WebSocket routes to the Gin engine
func (g *Gateway) SetupRoutes(router *gin.Engine) {
	router.GET("/ws", g.Handler.HandleConnection)
}
