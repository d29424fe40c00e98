package loyalty

import (
	"context"
	"errors"
	"strings"
	"time"

	"studentslife/pkg/celengine"
	"studentslife/pkg/config"
	"studentslife/pkg/db/option"
	"studentslife/pkg/db/pagination"
	"studentslife/pkg/errutil"
	"studentslife/pkg/featureflags"
	"studentslife/pkg/logger"
	"studentslife/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FlagLoyaltyStamps turns stamping off for a partner when disabled.
const FlagLoyaltyStamps = "loyalty_stamps"

var (
	errStampRecordMissing = errors.New("loyalty: stamp record disappeared during increment")
	errAlreadyStamped     = errors.New("loyalty: code already stamped")
)

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	flags  featureflags.FeatureFlag
	cards  *CardCache
	rules  *celengine.Engine
	tracer trace.Tracer
	now    func() time.Time

	defaultStampsRequired int32

	card  repository.Repository[LoyaltyCard]
	stamp repository.Repository[ClientStamp]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config

	Flags  featureflags.FeatureFlag `optional:"true"`
	Tracer trace.TracerProvider     `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	tp := p.Tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	flags := p.Flags
	if flags == nil {
		flags = featureflags.Static{}
	}

	required := p.Config.Loyalty.DefaultStampsRequired
	if required < 1 {
		required = DefaultStampsRequired
	}

	return &Service{
		db:     p.DB,
		node:   p.Node,
		flags:  flags,
		cards:  NewCardCache(p.Config.Loyalty.CardCacheTTL),
		rules:  newRuleEngine(),
		tracer: tp.Tracer("studentslife/loyalty"),
		now:    time.Now,

		defaultStampsRequired: required,

		card:  repository.ProvideStore[LoyaltyCard](p.DB),
		stamp: repository.ProvideStore[ClientStamp](p.DB),
	}
}

// AddStamp advances the client's counter on the partner's active card. A
// partner without an active card yields a skipped outcome and no error.
func (s *Service) AddStamp(ctx context.Context, clientID, partnerID string) (StampOutcome, error) {
	return s.AddStampForCode(ctx, StampRequest{ClientID: clientID, PartnerID: partnerID})
}

// AddStampForCode is AddStamp for a known redemption. A code that already
// earned the latest stamp is reported as a duplicate and not counted again,
// so a redelivered stamp task is harmless.
func (s *Service) AddStampForCode(ctx context.Context, req StampRequest) (StampOutcome, error) {
	clientID, partnerID, codeID := req.ClientID, req.PartnerID, req.CodeID

	ctx, span := s.tracer.Start(ctx, "loyalty.AddStamp", trace.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.String("partner_id", partnerID),
		attribute.String("code_id", codeID),
	))
	defer span.End()

	zapLog := logger.FromContext(ctx).With(
		zap.String("client_id", clientID),
		zap.String("partner_id", partnerID),
		zap.String("code_id", codeID),
	)

	if clientID == "" || partnerID == "" {
		return StampOutcome{}, errutil.BadRequest("client_id and partner_id are required", nil)
	}

	skipped := StampOutcome{ClientID: clientID, PartnerID: partnerID, Skipped: true}
	if !s.flags.IsEnabled(ctx, partnerID, FlagLoyaltyStamps, true) {
		zapLog.Debug("stamping disabled by feature flag")
		return skipped, nil
	}

	card, err := s.cards.Get(ctx, partnerID, s.loadActiveCard)
	if err != nil {
		return StampOutcome{}, errutil.Internal("failed to load loyalty card", err)
	}
	if card == nil {
		return skipped, nil
	}

	now := s.now().UTC()
	existing, err := s.stamp.FindOne(ctx, &ClientStamp{ClientID: clientID, PartnerID: partnerID})
	if err != nil {
		return StampOutcome{}, errutil.Internal("failed to load stamp record", err)
	}

	if existing != nil && codeID != "" && existing.LastCodeID == codeID {
		zapLog.Info("code already stamped", zap.String("stamp_id", existing.ID))
		return duplicateOf(existing, card), nil
	}

	if card.EarnRule != "" {
		var current int32
		if existing != nil {
			current = existing.StampsCount
		}
		earned, err := s.rules.Evaluate(card.EarnRule, stampRuleAttrs(clientID, partnerID, current, now.In(card.Location())))
		if err != nil {
			return StampOutcome{}, errutil.Internal("failed to evaluate earn rule", err)
		}
		if !earned {
			zapLog.Info("stamp not earned under card rule", zap.String("rule", card.EarnRule))
			return skipped, nil
		}
	}

	if existing == nil {
		rec := &ClientStamp{
			ID:            s.node.Generate().String(),
			ClientID:      clientID,
			PartnerID:     partnerID,
			LoyaltyCardID: card.ID,
			StampsCount:   1,
			LastStampAt:   &now,
			LastCodeID:    codeID,
		}

		err := s.stamp.Create(ctx, rec)
		if err == nil {
			zapLog.Info("stamp record created", zap.String("stamp_id", rec.ID))
			return outcomeOf(rec, card), nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return StampOutcome{}, errutil.Internal("failed to create stamp record", err)
		}
		zapLog.Info("stamp record created concurrently, incrementing instead")
	}

	rec, err := s.increment(ctx, req, card, now)
	if errors.Is(err, errAlreadyStamped) {
		zapLog.Info("code already stamped", zap.String("stamp_id", rec.ID))
		return duplicateOf(rec, card), nil
	}
	if err != nil {
		return StampOutcome{}, errutil.Internal("failed to add stamp", err)
	}

	out := outcomeOf(rec, card)
	zapLog.Info("stamp added",
		zap.String("stamp_id", rec.ID),
		zap.Int32("count", out.Count),
		zap.Bool("complete", out.Complete),
	)
	return out, nil
}

func (s *Service) increment(ctx context.Context, req StampRequest, card *LoyaltyCard, now time.Time) (*ClientStamp, error) {
	var rec *ClientStamp
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stampTx := s.stamp.WithTrx(tx)
		filter := map[string]any{"client_id": req.ClientID, "partner_id": req.PartnerID}

		var opts []option.QueryOption
		if req.CodeID != "" {
			opts = append(opts, option.ApplyOperator(option.Condition{
				Field:    "last_code_id",
				Operator: option.NEQ,
				Value:    req.CodeID,
			}))
		}

		n, err := stampTx.UpdateWhere(ctx, filter,
			map[string]any{
				"stamps_count":    gorm.Expr("stamps_count + ?", 1),
				"last_stamp_at":   now,
				"last_code_id":    req.CodeID,
				"loyalty_card_id": card.ID,
			},
			opts...,
		)
		if err != nil {
			return err
		}

		rec, err = stampTx.FindOne(ctx, &ClientStamp{ClientID: req.ClientID, PartnerID: req.PartnerID})
		if err != nil {
			return err
		}
		if rec == nil {
			return errStampRecordMissing
		}
		if n == 0 {
			if req.CodeID != "" && rec.LastCodeID == req.CodeID {
				return errAlreadyStamped
			}
			return errStampRecordMissing
		}

		// a claimed card re-arms once it is complete again
		if rec.RewardClaimed && rec.Complete(card.StampsRequired) {
			if err := stampTx.Update(ctx, rec.ID, map[string]any{"reward_claimed": false}); err != nil {
				return err
			}
			rec.RewardClaimed = false
		}
		return nil
	})
	return rec, err
}

// ClaimReward resets a complete record to zero stamps and marks it claimed in
// one conditional update.
func (s *Service) ClaimReward(ctx context.Context, stampID string) (*ClientStamp, error) {
	ctx, span := s.tracer.Start(ctx, "loyalty.ClaimReward", trace.WithAttributes(attribute.String("stamp_id", stampID)))
	defer span.End()

	rec, err := s.GetStamp(ctx, stampID)
	if err != nil {
		return nil, err
	}

	required, err := s.requiredFor(ctx, rec)
	if err != nil {
		return nil, err
	}

	n, err := s.stamp.UpdateWhere(ctx,
		map[string]any{"id": rec.ID},
		map[string]any{"stamps_count": 0, "reward_claimed": true},
		option.ApplyOperator(option.Condition{
			Field:    "stamps_count",
			Operator: option.GTE,
			Value:    required,
		}),
	)
	if err != nil {
		return nil, errutil.Internal("failed to claim reward", err)
	}
	if n == 0 {
		return nil, errutil.UnprocessableEntity("reward is not complete yet", nil,
			errutil.WithDetails(errutil.Detail{Field: "stamps_count", Message: "must reach stamps_required before claiming"}))
	}

	logger.FromContext(ctx).Info("reward claimed",
		zap.String("stamp_id", rec.ID),
		zap.String("client_id", rec.ClientID),
		zap.String("partner_id", rec.PartnerID),
	)

	return s.GetStamp(ctx, rec.ID)
}

// requiredFor resolves the threshold of the card the record was stamped on,
// falling back to the partner's current card and then the default.
func (s *Service) requiredFor(ctx context.Context, rec *ClientStamp) (int32, error) {
	query := &LoyaltyCard{ID: rec.LoyaltyCardID}
	if rec.LoyaltyCardID == "" {
		query = &LoyaltyCard{PartnerID: rec.PartnerID}
	}

	card, err := s.card.FindOne(ctx, query)
	if err != nil {
		return 0, errutil.Internal("failed to load loyalty card", err)
	}
	if card == nil || card.StampsRequired < 1 {
		return s.defaultStampsRequired, nil
	}
	return card.StampsRequired, nil
}

func (s *Service) GetStamp(ctx context.Context, stampID string) (*ClientStamp, error) {
	if stampID == "" {
		return nil, errutil.BadRequest("stamp_id is required", nil)
	}

	rec, err := s.stamp.FindOne(ctx, &ClientStamp{ID: stampID})
	if err != nil {
		return nil, errutil.Internal("failed to load stamp record", err)
	}
	if rec == nil {
		return nil, errutil.NotFound("stamp record not found", nil)
	}
	return rec, nil
}

type UpsertCardRequest struct {
	PartnerID         string `json:"-"`
	RewardDescription string `json:"reward_description"`
	StampsRequired    int32  `json:"stamps_required"`
	IsActive          *bool  `json:"is_active"`
	EarnRule          string `json:"earn_rule"`
	Timezone          string `json:"timezone"`
}

// UpsertCard creates or replaces the partner's single card.
func (s *Service) UpsertCard(ctx context.Context, req UpsertCardRequest) (*LoyaltyCard, error) {
	partnerID := strings.TrimSpace(req.PartnerID)
	if partnerID == "" {
		return nil, errutil.BadRequest("partner_id is required", nil)
	}

	required := req.StampsRequired
	if required == 0 {
		required = s.defaultStampsRequired
	}
	if required < 1 {
		return nil, errutil.ValidationFailed("invalid loyalty card", nil,
			errutil.WithDetails(errutil.Detail{Field: "stamps_required", Message: "must be at least 1"}))
	}

	rule := strings.TrimSpace(req.EarnRule)
	if rule != "" {
		if err := s.rules.Validate(rule); err != nil {
			return nil, errutil.ValidationFailed("invalid loyalty card", err,
				errutil.WithDetails(errutil.Detail{Field: "earn_rule", Message: err.Error()}))
		}
	}

	timezone := strings.TrimSpace(req.Timezone)
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, errutil.ValidationFailed("invalid loyalty card", err,
			errutil.WithDetails(errutil.Detail{Field: "timezone", Message: "must be an IANA time zone"}))
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	card := &LoyaltyCard{
		ID:                s.node.Generate().String(),
		PartnerID:         partnerID,
		RewardDescription: strings.TrimSpace(req.RewardDescription),
		StampsRequired:    required,
		IsActive:          active,
		EarnRule:          rule,
		Timezone:          timezone,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "partner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reward_description", "stamps_required", "is_active", "earn_rule", "timezone", "updated_at"}),
	}).Create(card).Error
	if err != nil {
		return nil, errutil.Internal("failed to save loyalty card", err)
	}
	s.cards.Invalidate(partnerID)

	return s.GetCard(ctx, partnerID)
}

func (s *Service) GetCard(ctx context.Context, partnerID string) (*LoyaltyCard, error) {
	if partnerID == "" {
		return nil, errutil.BadRequest("partner_id is required", nil)
	}

	card, err := s.card.FindOne(ctx, &LoyaltyCard{PartnerID: partnerID})
	if err != nil {
		return nil, errutil.Internal("failed to load loyalty card", err)
	}
	if card == nil {
		return nil, errutil.NotFound("loyalty card not found", nil)
	}
	return card, nil
}

func (s *Service) loadActiveCard(ctx context.Context, partnerID string) (*LoyaltyCard, error) {
	card, err := s.card.FindOne(ctx, &LoyaltyCard{PartnerID: partnerID, IsActive: true})
	if err != nil || card == nil {
		return nil, err
	}
	if card.StampsRequired < 1 {
		card.StampsRequired = s.defaultStampsRequired
	}
	return card, nil
}

type ListStampsRequest struct {
	ClientID  string `form:"client_id"`
	PartnerID string `form:"partner_id"`
	pagination.Pagination
}

type ListStampsResponse struct {
	Data     []*ClientStamp       `json:"data"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

func (s *Service) ListStamps(ctx context.Context, req ListStampsRequest) (*ListStampsResponse, error) {
	if req.ClientID == "" && req.PartnerID == "" {
		return nil, errutil.BadRequest("client_id or partner_id is required", nil)
	}

	page := req.Pagination.Normalize()
	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "id",
			OrderBy: "asc",
			Allow:   map[string]bool{"id": true},
		}),
		option.ApplyPagination(page),
	}

	if page.Cursor != "" {
		cursor, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, errutil.BadRequest("invalid cursor", err)
		}
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "id",
			Operator: option.GT,
			Value:    cursor.ID,
		}))
	}

	rows, err := s.stamp.Find(ctx, &ClientStamp{ClientID: req.ClientID, PartnerID: req.PartnerID}, opts...)
	if err != nil {
		return nil, errutil.Internal("failed to list stamps", err)
	}

	data, info := pagination.Page(rows, page.Limit, func(rec *ClientStamp) string {
		cursor, _ := pagination.EncodeCursor(pagination.Cursor{ID: rec.ID})
		return cursor
	})

	return &ListStampsResponse{Data: data, PageInfo: info}, nil
}
