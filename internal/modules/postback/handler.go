package postback

import (
	"github.com/gin-gonic/gin"
	"github.com/replyflow/core/internal/middleware"
	"github.com/replyflow/core/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/postbacks", authMW, h.list)
}

// GET /postbacks
func (h *Handler) list(c *gin.Context) {
	rows, err := h.svc.List(middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, rows)
}
