package followup

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/replyflow/core/internal/core/automation"
	"github.com/replyflow/core/internal/core/followup"
	"github.com/replyflow/core/internal/middleware"
	"github.com/replyflow/core/internal/pkg/response"
)

// AutomationFinder loads an automation scoped to its owner.
type AutomationFinder interface {
	GetByID(ownerID, id string) (*automation.Automation, error)
}

type Handler struct {
	svc         *Service
	automations AutomationFinder
}

func NewHandler(svc *Service, automations AutomationFinder) *Handler {
	return &Handler{svc: svc, automations: automations}
}

type saveDTO struct {
	Steps []followup.Step `json:"steps"`
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/automations/:id/followups", authMW)
	g.GET("", h.list)
	g.PUT("", h.save)
}

// GET /automations/:id/followups
func (h *Handler) list(c *gin.Context) {
	a, ok := h.load(c)
	if !ok {
		return
	}
	steps, err := h.svc.List(a.ID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, steps)
}

// PUT /automations/:id/followups
func (h *Handler) save(c *gin.Context) {
	a, ok := h.load(c)
	if !ok {
		return
	}
	var dto saveDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	steps, err := h.svc.Save(ParentOf(*a), dto.Steps)
	if err != nil {
		var seqErr *followup.SequenceError
		if errors.As(err, &seqErr) {
			response.UnprocessableEntity(c, seqErr.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, steps)
}

func (h *Handler) load(c *gin.Context) (*automation.Automation, bool) {
	a, err := h.automations.GetByID(middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return nil, false
	}
	if a == nil {
		response.NotFoundMsg(c, "automation not found")
		return nil, false
	}
	return a, true
}
