package event

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"studentslife/pkg/errutil"
	"studentslife/pkg/logger"
	"studentslife/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	node  *snowflake.Node
	event repository.Repository[Event]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		node:  p.Node,
		event: repository.ProvideStore[Event](p.DB),
	}
}

type CreateEventRequest struct {
	PartnerID          string         `json:"-"`
	Title              string         `json:"title"`
	DiscountPercentage int32          `json:"discount_percentage"`
	StartDate          time.Time      `json:"start_date"`
	EndDate            time.Time      `json:"end_date"`
	IsActive           *bool          `json:"is_active"`
	QREnabled          *bool          `json:"qr_enabled"`
	Metadata           map[string]any `json:"metadata"`
}

func (s *Service) CreateEvent(ctx context.Context, req CreateEventRequest) (*Event, error) {
	e := &Event{
		ID:                 s.node.Generate().String(),
		PartnerID:          strings.TrimSpace(req.PartnerID),
		Title:              strings.TrimSpace(req.Title),
		DiscountPercentage: req.DiscountPercentage,
		StartDate:          req.StartDate.UTC(),
		EndDate:            req.EndDate.UTC(),
		IsActive:           boolOr(req.IsActive, true),
		QREnabled:          boolOr(req.QREnabled, true),
	}
	e.Slug = slug.Make(e.Title)

	if len(req.Metadata) > 0 {
		b, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, errutil.BadRequest("invalid metadata", err)
		}
		e.Metadata = datatypes.JSON(b)
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}

	if err := s.event.Create(ctx, e); err != nil {
		logger.FromContext(ctx).Error("failed to create event", zap.String("partner_id", e.PartnerID), zap.Error(err))
		return nil, errutil.Internal("failed to create event", err)
	}

	return e, nil
}

func (s *Service) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	if eventID == "" {
		return nil, errutil.BadRequest("event_id is required", nil)
	}

	e, err := s.event.FindOne(ctx, &Event{ID: eventID})
	if err != nil {
		return nil, errutil.Internal("failed to load event", err)
	}
	if e == nil {
		return nil, errutil.NotFound("event not found", nil)
	}

	return e, nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
