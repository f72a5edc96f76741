package automation

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/replyflow/core/internal/core/automation"
	"github.com/replyflow/core/internal/core/flow"
	"github.com/replyflow/core/internal/core/followup"
	"github.com/replyflow/core/internal/middleware"
	"github.com/replyflow/core/internal/pkg/pagination"
	"github.com/replyflow/core/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/automations", authMW)
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.PATCH("/:id/active", h.setActive)
	g.DELETE("/:id", h.delete)
}

// GET /automations?channel=dm|comment
func (h *Handler) list(c *gin.Context) {
	channel := c.Query("channel")
	if channel != "" && channel != string(automation.ChannelDM) && channel != string(automation.ChannelComment) {
		response.BadRequest(c, "channel must be dm or comment")
		return
	}
	items, pag, err := h.svc.List(middleware.CurrentUserID(c), channel, pagination.FromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

// GET /automations/:id
func (h *Handler) get(c *gin.Context) {
	a, err := h.svc.GetByID(middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if a == nil {
		response.NotFoundMsg(c, errAutomationNotFound.Error())
		return
	}
	steps, err := h.svc.FollowUps(a.ID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, automationResponse{Automation: *a, FollowUps: steps})
}

// POST /automations
func (h *Handler) create(c *gin.Context) {
	var dto automationDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	a, err := h.svc.Save(middleware.CurrentUserID(c), dto.input(""))
	if err != nil {
		writeSaveError(c, err)
		return
	}
	response.Created(c, a)
}

// PUT /automations/:id
func (h *Handler) update(c *gin.Context) {
	var dto automationDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	a, err := h.svc.Save(middleware.CurrentUserID(c), dto.input(c.Param("id")))
	if err != nil {
		writeSaveError(c, err)
		return
	}
	response.OK(c, a)
}

// PATCH /automations/:id/active
func (h *Handler) setActive(c *gin.Context) {
	var dto activeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	a, err := h.svc.SetActive(middleware.CurrentUserID(c), c.Param("id"), *dto.Active)
	if err != nil {
		writeSaveError(c, err)
		return
	}
	response.OK(c, a)
}

// DELETE /automations/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(middleware.CurrentUserID(c), c.Param("id")); err != nil {
		writeSaveError(c, err)
		return
	}
	response.NoContent(c)
}

func writeSaveError(c *gin.Context, err error) {
	var vErr *automation.ValidationError
	var seqErr *followup.SequenceError
	var structErr *flow.StructureError
	var cycleErr *flow.CycleError
	switch {
	case errors.As(err, &vErr):
		response.Invalid(c, vErr.Field, vErr.Error())
	case errors.As(err, &seqErr):
		response.Invalid(c, "follow_ups", seqErr.Error())
	case errors.As(err, &structErr), errors.As(err, &cycleErr):
		response.UnprocessableEntity(c, err.Error())
	case errors.Is(err, errAutomationNotFound):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, errPayloadInUse):
		response.Conflict(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
