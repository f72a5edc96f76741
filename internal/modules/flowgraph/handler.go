package flowgraph

import (
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/replyflow/core/internal/core/automation"
	"github.com/replyflow/core/internal/core/flow"
	"github.com/replyflow/core/internal/middleware"
	"github.com/replyflow/core/internal/pkg/response"
)

const maxGraphBytes = 1 << 20

type Handler struct {
	svc         *Service
	automations AutomationStore
}

func NewHandler(svc *Service, automations AutomationStore) *Handler {
	return &Handler{svc: svc, automations: automations}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/flows/:source_type/:source_ref", authMW)
	g.GET("", h.get)
	g.PUT("", h.put)
	g.DELETE("", h.delete)
	g.POST("/apply", h.apply)
}

func sourceKey(c *gin.Context) (string, string, bool) {
	sourceType := c.Param("source_type")
	if !ValidSourceType(sourceType) {
		response.BadRequest(c, errInvalidSourceType.Error())
		return "", "", false
	}
	return sourceType, c.Param("source_ref"), true
}

// GET /flows/:source_type/:source_ref
func (h *Handler) get(c *gin.Context) {
	sourceType, ref, ok := sourceKey(c)
	if !ok {
		return
	}
	g, err := h.svc.Get(middleware.CurrentUserID(c), sourceType, ref)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if g == nil {
		response.NotFoundMsg(c, errFlowNotFound.Error())
		return
	}
	response.OK(c, g)
}

// PUT /flows/:source_type/:source_ref
func (h *Handler) put(c *gin.Context) {
	sourceType, ref, ok := sourceKey(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxGraphBytes))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	g, err := flow.Deserialize(body)
	if err != nil {
		var structErr *flow.StructureError
		if errors.As(err, &structErr) {
			response.UnprocessableEntity(c, err.Error())
			return
		}
		response.BadRequest(c, "invalid flow json: "+err.Error())
		return
	}
	if g.Metadata.Origin == "" {
		g.Metadata.Origin = flow.OriginEditor
	}
	g.Metadata.UpdatedAt = time.Now().UTC()

	if err := h.svc.Upsert(middleware.CurrentUserID(c), sourceType, ref, g); err != nil {
		writeGraphError(c, err)
		return
	}
	response.OK(c, g)
}

// DELETE /flows/:source_type/:source_ref
func (h *Handler) delete(c *gin.Context) {
	sourceType, ref, ok := sourceKey(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(h.svc.db, middleware.CurrentUserID(c), sourceType, ref); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

// POST /flows/:source_type/:source_ref/apply
func (h *Handler) apply(c *gin.Context) {
	sourceType, ref, ok := sourceKey(c)
	if !ok {
		return
	}
	result, err := h.svc.ApplyToAutomation(h.automations, middleware.CurrentUserID(c), sourceType, ref)
	if err != nil {
		var vErr *automation.ValidationError
		switch {
		case errors.Is(err, errFlowNotFound), errors.Is(err, errAutomationMissing):
			response.NotFoundMsg(c, err.Error())
		case errors.Is(err, errChannelMismatch):
			response.Conflict(c, err.Error())
		case errors.As(err, &vErr):
			response.Invalid(c, vErr.Field, vErr.Error())
		default:
			writeGraphError(c, err)
		}
		return
	}
	response.OK(c, result)
}

func writeGraphError(c *gin.Context, err error) {
	var structErr *flow.StructureError
	var cycleErr *flow.CycleError
	switch {
	case errors.As(err, &structErr), errors.As(err, &cycleErr):
		response.UnprocessableEntity(c, err.Error())
	case errors.Is(err, errInvalidSourceType):
		response.BadRequest(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
