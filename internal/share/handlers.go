package share

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kast-lang/playground/internal/common/errors"
)

const maxRecentLimit = 100

type createShareRequest struct {
	Code     string `json:"code"`
	Filename string `json:"filename"`
}

// Handlers exposes the relay over HTTP.
type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// RegisterRoutes adds the relay routes.
func (h *Handlers) RegisterRoutes(router gin.IRouter) {
	router.POST("/share", h.httpCreate)
	router.GET("/shares", h.httpRecent)
	router.GET("/health", h.httpHealth)
}

func (h *Handlers) httpCreate(c *gin.Context) {
	var req createShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing code"})
		return
	}
	sh, err := h.svc.Create(c.Request.Context(), req.Code, req.Filename)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": sh.URL})
}

func (h *Handlers) httpRecent(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = min(n, maxRecentLimit)
	}
	shares, err := h.svc.Recent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shares": shares})
}

func (h *Handlers) httpHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "kast-playground",
		"share":   h.svc.client != nil,
	})
}

func writeError(c *gin.Context, err error) {
	c.JSON(apperrors.GetHTTPStatus(err), gin.H{"error": apperrors.PublicMessage(err)})
}
