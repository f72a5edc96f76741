package counters

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/replyflow/core/internal/middleware"
	"github.com/replyflow/core/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

type incrementDTO struct {
	Key   string `json:"key"`
	Delta int64  `json:"delta"`
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/counters", authMW)
	g.GET("", h.list)
	g.POST("/:name/increment", h.increment)
}

// GET /counters
func (h *Handler) list(c *gin.Context) {
	out, err := h.svc.All(middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, out)
}

// POST /counters/:name/increment
func (h *Handler) increment(c *gin.Context) {
	var dto incrementDTO
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&dto); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	if dto.Delta == 0 {
		dto.Delta = 1
	}
	name := c.Param("name")
	value, applied, err := h.svc.Increment(c.Request.Context(), middleware.CurrentUserID(c), name, dto.Key, dto.Delta)
	if err != nil {
		if errors.Is(err, errInvalidName) || errors.Is(err, errInvalidDelta) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"name": name, "value": value, "applied": applied})
}
