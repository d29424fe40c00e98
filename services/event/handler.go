package event

import (
	"net/http"

	"studentslife/pkg/errutil"
	"studentslife/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	v1 := r.Group("/v1")
	v1.POST("/partners/:partner_id/events", middleware.RequirePartnerParam("partner_id"), h.CreateEvent)
	v1.GET("/events/:event_id", h.GetEvent)
}

func (h *Handler) CreateEvent(c *gin.Context) {
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}
	req.PartnerID = c.Param("partner_id")

	e, err := h.svc.CreateEvent(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetEvent(c *gin.Context) {
	e, err := h.svc.GetEvent(c.Request.Context(), c.Param("event_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, e)
}
