package redemption

import (
	"context"
	"errors"
	"time"

	"studentslife/pkg/config"
	"studentslife/pkg/db/option"
	"studentslife/pkg/errutil"
	"studentslife/pkg/logger"
	"studentslife/pkg/repository"
	"studentslife/pkg/sequence"
	"studentslife/services/event"
	"studentslife/services/loyalty"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const issueAttempts = 3

var errCodeVanished = errors.New("redemption: code row missing after conditional update")

type Service struct {
	node     *snowflake.Node
	events   *event.Service
	stamps   StampRecorder
	codegen  sequence.Generator
	tracer   trace.Tracer
	now      func() time.Time
	strict   bool
	codeRepo repository.Repository[RedemptionCode]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
	Events *event.Service

	Stamps    StampRecorder        `optional:"true"`
	Generator sequence.Generator   `optional:"true"`
	Tracer    trace.TracerProvider `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	tp := p.Tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	gen := p.Generator
	if gen == nil {
		gen = sequence.RandomGenerator{}
	}

	return &Service{
		node:     p.Node,
		events:   p.Events,
		stamps:   p.Stamps,
		codegen:  gen,
		tracer:   tp.Tracer("studentslife/redemption"),
		now:      time.Now,
		strict:   p.Config.Redemption.StrictFormat,
		codeRepo: repository.ProvideStore[RedemptionCode](p.DB),
	}
}

// Redeem validates code for partnerID and marks it used. Every business
// outcome is reported through Result; the error is reserved for missing
// identity and requests abandoned before anything was read.
func (s *Service) Redeem(ctx context.Context, code, partnerID string) (res Result, err error) {
	channel := channelFrom(ctx)
	ctx, span := s.tracer.Start(ctx, "redemption.Redeem", trace.WithAttributes(
		attribute.String("partner_id", partnerID),
		attribute.String("channel", channel),
	))
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("kind", string(res.Kind)))
			redeemOutcomes.WithLabelValues(string(res.Kind), channel).Inc()
			redeemDuration.WithLabelValues(string(res.Kind), channel).Observe(time.Since(start).Seconds())
		}
		span.End()
	}()

	if partnerID == "" {
		return Result{}, errutil.BadRequest("partner_id is required", nil)
	}

	normalized := NormalizeCode(code)
	zapLog := logger.FromContext(ctx).With(
		zap.String("code", normalized),
		zap.String("partner_id", partnerID),
		zap.String("channel", channel),
	)

	if normalized == "" || (s.strict && !ValidFormat(normalized)) {
		zapLog.Info("redemption rejected", zap.String("kind", string(KindInvalidFormat)))
		return failed(KindInvalidFormat), nil
	}

	if err := ctx.Err(); err != nil {
		return Result{}, errutil.ClientClosedRequest("redemption cancelled", err)
	}

	rc, err := s.codeRepo.FindOne(ctx, &RedemptionCode{Code: normalized}, option.WithPreload("Event"))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, errutil.ClientClosedRequest("redemption cancelled", ctxErr)
		}
		zapLog.Error("failed to load redemption code", zap.Error(err))
		return validationFailed(err), nil
	}
	if rc == nil {
		zapLog.Info("redemption rejected", zap.String("kind", string(KindCodeNotFound)))
		return failed(KindCodeNotFound), nil
	}
	if rc.Event == nil {
		zapLog.Error("redemption code has no event", zap.String("event_id", rc.EventID))
		return validationFailed(errors.New("redemption: event missing for code")), nil
	}

	if rc.Event.PartnerID != partnerID {
		zapLog.Warn("redemption rejected", zap.String("kind", string(KindCodeNotOwned)), zap.String("event_id", rc.EventID))
		return failed(KindCodeNotOwned), nil
	}

	if rc.IsUsed {
		zapLog.Info("redemption rejected", zap.String("kind", string(KindAlreadyUsed)))
		return alreadyUsed(rc.UsedAt), nil
	}

	now := s.now().UTC()
	if rc.Event.Ended(now) {
		zapLog.Info("redemption rejected", zap.String("kind", string(KindEventExpired)))
		return eventExpired(rc.Event.EndDate), nil
	}

	// the write and everything after it must outlive the caller
	ctx = context.WithoutCancel(ctx)

	n, err := s.codeRepo.UpdateWhere(ctx,
		map[string]any{"id": rc.ID, "is_used": false},
		map[string]any{"is_used": true, "used_at": now},
	)
	if err != nil {
		zapLog.Error("failed to mark code used", zap.Error(err))
		return validationFailed(err), nil
	}
	if n == 0 {
		return s.lostRace(ctx, rc.ID, zapLog), nil
	}

	success := &Success{
		CodeID:             rc.ID,
		EventID:            rc.EventID,
		ClientID:           rc.ClientID,
		EventTitle:         rc.Event.Title,
		DiscountPercentage: rc.Event.DiscountPercentage,
		UsedAt:             now,
	}
	success.Stamp = s.recordStamp(ctx, rc, partnerID, zapLog)

	zapLog.Info("code redeemed",
		zap.String("code_id", rc.ID),
		zap.String("event_id", rc.EventID),
		zap.String("client_id", rc.ClientID),
	)
	return succeeded(success), nil
}

// lostRace resolves a conditional update that changed nothing. Another
// redeemer normally got there first.
func (s *Service) lostRace(ctx context.Context, codeID string, zapLog *zap.Logger) Result {
	current, err := s.codeRepo.FindOne(ctx, &RedemptionCode{ID: codeID})
	if err != nil {
		zapLog.Error("failed to re-read code after lost update", zap.Error(err))
		return validationFailed(err)
	}
	if current == nil {
		return validationFailed(errCodeVanished)
	}
	if current.IsUsed {
		zapLog.Info("redemption rejected", zap.String("kind", string(KindAlreadyUsed)), zap.Bool("concurrent", true))
		return alreadyUsed(current.UsedAt)
	}
	return validationFailed(errors.New("redemption: code was not updated"))
}

func (s *Service) recordStamp(ctx context.Context, rc *RedemptionCode, partnerID string, zapLog *zap.Logger) *loyalty.StampOutcome {
	if s.stamps == nil {
		return nil
	}

	out, err := s.stamps.RecordStamp(ctx, loyalty.StampRequest{
		ClientID:  rc.ClientID,
		PartnerID: partnerID,
		CodeID:    rc.ID,
	})
	if err != nil {
		stampFailures.Inc()
		zapLog.Error("failed to record loyalty stamp",
			zap.String("code_id", rc.ID),
			zap.String("client_id", rc.ClientID),
			zap.Error(err),
		)
		return nil
	}
	return out
}

type IssueCodeRequest struct {
	EventID  string `json:"event_id"`
	ClientID string `json:"-"`
}

// IssueCode hands the client a fresh code for a QR-enabled event whose
// window is open.
func (s *Service) IssueCode(ctx context.Context, req IssueCodeRequest) (*RedemptionCode, error) {
	ctx, span := s.tracer.Start(ctx, "redemption.IssueCode", trace.WithAttributes(
		attribute.String("event_id", req.EventID),
		attribute.String("client_id", req.ClientID),
	))
	defer span.End()

	if req.ClientID == "" {
		return nil, errutil.BadRequest("client_id is required", nil)
	}

	ev, err := s.events.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	if !ev.QREnabled {
		return nil, errutil.UnprocessableEntity("event does not accept QR codes", nil)
	}
	if status := event.CheckWindow(ev, s.now().UTC()); status != event.WindowOpen {
		return nil, errutil.UnprocessableEntity("event is not open for codes", nil,
			errutil.WithDetails(errutil.Detail{Field: "event_id", Message: string(status)}))
	}

	var lastErr error
	for attempt := 0; attempt < issueAttempts; attempt++ {
		code, err := s.codegen.NextRedemptionCode(ctx)
		if err != nil {
			return nil, errutil.Internal("failed to generate code", err)
		}

		rc := &RedemptionCode{
			ID:       s.node.Generate().String(),
			Code:     code,
			EventID:  ev.ID,
			ClientID: req.ClientID,
		}
		err = s.codeRepo.Create(ctx, rc)
		if err == nil {
			codesIssued.Inc()
			logger.FromContext(ctx).Info("code issued",
				zap.String("code_id", rc.ID),
				zap.String("event_id", rc.EventID),
				zap.String("client_id", rc.ClientID),
			)
			rc.Event = ev
			return rc, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errutil.Internal("failed to save code", err)
		}
		lastErr = err
	}

	return nil, errutil.Conflict("could not allocate a unique code", lastErr)
}

// GetCode loads a code together with its event.
func (s *Service) GetCode(ctx context.Context, code string) (*RedemptionCode, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, errutil.BadRequest("code is required", nil)
	}

	rc, err := s.codeRepo.FindOne(ctx, &RedemptionCode{Code: normalized}, option.WithPreload("Event"))
	if err != nil {
		return nil, errutil.Internal("failed to load code", err)
	}
	if rc == nil {
		return nil, errutil.NotFound("code not found", nil)
	}
	return rc, nil
}
