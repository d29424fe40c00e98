package redemption

import (
	"net/http"
	"time"

	"studentslife/pkg/config"
	"studentslife/pkg/errutil"
	"studentslife/pkg/middleware"
	"studentslife/services/loyalty"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc     *Service
	limiter gin.HandlerFunc
}

func NewHandler(svc *Service, cfg *config.Config) *Handler {
	return &Handler{
		svc:     svc,
		limiter: middleware.RateLimit(cfg.Redemption.RateLimit, cfg.Redemption.RateBurst),
	}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	v1 := r.Group("/v1")
	v1.POST("/partners/:partner_id/redemptions", middleware.RequirePartnerParam("partner_id"), h.limiter, h.RedeemForPartner)
	v1.POST("/redemptions/scan", middleware.RequirePartner(), h.limiter, h.Scan)
	v1.POST("/codes", middleware.RequireClient(), h.IssueCode)
	v1.GET("/codes/:code", middleware.RequireClient(), h.limiter, h.GetCode)
}

type redeemRequest struct {
	Code string `json:"code"`
}

// RedeemResponse is rendered for every outcome so the scanner can show the
// matching toast.
type RedeemResponse struct {
	Kind               Kind                  `json:"kind"`
	Message            string                `json:"message"`
	CodeID             string                `json:"code_id,omitempty"`
	EventID            string                `json:"event_id,omitempty"`
	ClientID           string                `json:"client_id,omitempty"`
	EventTitle         string                `json:"event_title,omitempty"`
	DiscountPercentage *int32                `json:"discount_percentage,omitempty"`
	UsedAt             *time.Time            `json:"used_at,omitempty"`
	EndDate            *time.Time            `json:"end_date,omitempty"`
	Stamp              *loyalty.StampOutcome `json:"stamp,omitempty"`
}

func NewRedeemResponse(res Result) RedeemResponse {
	out := RedeemResponse{Kind: res.Kind, Message: res.Message()}
	switch {
	case res.Success != nil:
		s := res.Success
		out.CodeID = s.CodeID
		out.EventID = s.EventID
		out.ClientID = s.ClientID
		out.EventTitle = s.EventTitle
		out.DiscountPercentage = &s.DiscountPercentage
		out.UsedAt = &s.UsedAt
		out.Stamp = s.Stamp
	case res.AlreadyUsed != nil:
		out.UsedAt = &res.AlreadyUsed.UsedAt
	case res.EventExpired != nil:
		out.EndDate = &res.EventExpired.EndDate
	}
	return out
}

func (h *Handler) RedeemForPartner(c *gin.Context) {
	h.redeem(c, c.Param("partner_id"))
}

func (h *Handler) Scan(c *gin.Context) {
	h.redeem(c, middleware.PartnerID(c))
}

func (h *Handler) redeem(c *gin.Context, partnerID string) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	ctx := WithChannel(c.Request.Context(), middleware.Channel(c))
	res, err := h.svc.Redeem(ctx, req.Code, partnerID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, NewRedeemResponse(res))
}

func (h *Handler) IssueCode(c *gin.Context) {
	var req IssueCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}
	req.ClientID = middleware.ClientID(c)

	rc, err := h.svc.IssueCode(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, rc)
}

func (h *Handler) GetCode(c *gin.Context) {
	rc, err := h.svc.GetCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	// another client's code is reported as missing
	if rc.ClientID != middleware.ClientID(c) {
		_ = c.Error(errutil.NotFound("code not found", nil))
		return
	}

	c.JSON(http.StatusOK, rc)
}
