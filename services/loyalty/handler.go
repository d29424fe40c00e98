package loyalty

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
	partner := v1.Group("/partners/:partner_id", middleware.RequirePartnerParam("partner_id"))
	partner.PUT("/loyalty-card", h.UpsertCard)
	partner.GET("/loyalty-card", h.GetCard)

	v1.GET("/stamps", h.ListStamps)
	v1.POST("/stamps/:stamp_id/claim", middleware.RequireClient(), h.ClaimReward)
}

func (h *Handler) UpsertCard(c *gin.Context) {
	var req UpsertCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}
	req.PartnerID = c.Param("partner_id")

	card, err := h.svc.UpsertCard(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, card)
}

func (h *Handler) GetCard(c *gin.Context) {
	card, err := h.svc.GetCard(c.Request.Context(), c.Param("partner_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, card)
}

func (h *Handler) ListStamps(c *gin.Context) {
	var req ListStampsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}

	// callers only ever list their own records
	switch partnerID, clientID := middleware.PartnerID(c), middleware.ClientID(c); {
	case partnerID != "":
		if req.PartnerID != "" && req.PartnerID != partnerID {
			_ = c.Error(errutil.Forbidden("partner mismatch", nil))
			return
		}
		req.PartnerID = partnerID
	case clientID != "":
		if req.ClientID != "" && req.ClientID != clientID {
			_ = c.Error(errutil.Forbidden("client mismatch", nil))
			return
		}
		req.ClientID = clientID
	default:
		_ = c.Error(errutil.Unauthorized("partner or client identity is required", nil))
		return
	}

	resp, err := h.svc.ListStamps(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ClaimReward lets only the owning client claim.
func (h *Handler) ClaimReward(c *gin.Context) {
	ctx := c.Request.Context()
	stampID := c.Param("stamp_id")

	owned, err := h.svc.GetStamp(ctx, stampID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if owned.ClientID != middleware.ClientID(c) {
		_ = c.Error(errutil.Forbidden("stamp record belongs to another client", nil))
		return
	}

	rec, err := h.svc.ClaimReward(ctx, stampID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, rec)
}
