package loyalty

import (
	"context"
	"errors"

	"studentslife/pkg/config"
	"studentslife/pkg/task"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

// StampRequest identifies the redemption a stamp is recorded for.
type StampRequest struct {
	ClientID  string
	PartnerID string
	CodeID    string
}

// Recorder records the stamp that follows a successful redemption.
type Recorder interface {
	RecordStamp(ctx context.Context, req StampRequest) (*StampOutcome, error)
}

// DirectRecorder stamps in the request path.
type DirectRecorder struct {
	svc *Service
}

func NewDirectRecorder(svc *Service) *DirectRecorder {
	return &DirectRecorder{svc: svc}
}

func (r *DirectRecorder) RecordStamp(ctx context.Context, req StampRequest) (*StampOutcome, error) {
	out, err := r.svc.AddStampForCode(ctx, req)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// QueuedRecorder hands the stamp to the worker. The task id is derived from
// the code so one redemption never enqueues two stamps.
type QueuedRecorder struct {
	enqueuer task.Enqueuer
	queue    string
}

func NewQueuedRecorder(enqueuer task.Enqueuer, queue string) *QueuedRecorder {
	if queue == "" {
		queue = "loyalty"
	}
	return &QueuedRecorder{enqueuer: enqueuer, queue: queue}
}

func (r *QueuedRecorder) RecordStamp(ctx context.Context, req StampRequest) (*StampOutcome, error) {
	t, err := NewAddStampTask(AddStampPayload{
		ClientID:  req.ClientID,
		PartnerID: req.PartnerID,
		CodeID:    req.CodeID,
		TraceID:   trace.SpanFromContext(ctx).SpanContext().TraceID().String(),
	})
	if err != nil {
		return nil, err
	}

	_, err = r.enqueuer.Enqueue(ctx, t,
		asynq.Queue(r.queue),
		asynq.TaskID("stamp:"+req.CodeID),
		asynq.MaxRetry(5),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil, err
	}

	return &StampOutcome{ClientID: req.ClientID, PartnerID: req.PartnerID, Queued: true}, nil
}

type RecorderParams struct {
	fx.In
	Config   *config.Config
	Service  *Service
	Enqueuer task.Enqueuer `optional:"true"`
}

// NewRecorder picks queued stamping when LOYALTY.ASYNC is on and a queue
// client is available.
func NewRecorder(p RecorderParams) Recorder {
	if p.Config.Loyalty.Async && p.Enqueuer != nil {
		return NewQueuedRecorder(p.Enqueuer, p.Config.Loyalty.Queue)
	}
	return NewDirectRecorder(p.Service)
}
