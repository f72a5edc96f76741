package inbound

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/replyflow/core/internal/core/dispatch"
	"github.com/replyflow/core/internal/core/matching"
	pkgredis "github.com/replyflow/core/internal/pkg/redis"
	"github.com/replyflow/core/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts the ingestion endpoints behind the given guards
// (ingest token, rate limit).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, guards ...gin.HandlerFunc) {
	g := rg.Group("", guards...)
	g.POST("/events", h.event)
	g.POST("/postbacks/press", h.press)
}

// POST /events
func (h *Handler) event(c *gin.Context) {
	var ev matching.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	out, err := h.svc.Handle(c.Request.Context(), ev)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, out)
}

// POST /postbacks/press
func (h *Handler) press(c *gin.Context) {
	var p dispatch.Press
	if err := c.ShouldBindJSON(&p); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	out, err := h.svc.Postback(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, out)
}

func writeError(c *gin.Context, err error) {
	var conflict *matching.ConflictError
	var unresolved *dispatch.UnresolvedPostbackError
	switch {
	case errors.Is(err, errInvalidEvent):
		response.BadRequest(c, err.Error())
	case errors.As(err, &conflict):
		response.Conflict(c, err.Error())
	case errors.As(err, &unresolved):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, pkgredis.ErrLockHeld):
		response.TooManyRequests(c)
	default:
		response.InternalError(c, err)
	}
}
