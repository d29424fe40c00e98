package loyalty

import (
	"context"
	"encoding/json"
	"fmt"

	"studentslife/pkg/errutil"
	"studentslife/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var TaskModule = fx.Module("task.loyalty",
	fx.Provide(NewTask),
	fx.Invoke(registerTaskHandlers),
)

type Task struct {
	svc *Service
}

type TaskParams struct {
	fx.In
	Service *Service
}

func NewTask(p TaskParams) *Task {
	return &Task{svc: p.Service}
}

func registerTaskHandlers(mux *asynq.ServeMux, t *Task) {
	mux.HandleFunc(taskname.LoyaltyStampAdd, t.HandleAddStampTask)
}

func (t *Task) HandleAddStampTask(ctx context.Context, task *asynq.Task) error {
	var payload AddStampPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	zapLog := zap.L().With(
		zap.String("task_type", task.Type()),
		zap.String("client_id", payload.ClientID),
		zap.String("partner_id", payload.PartnerID),
		zap.String("code_id", payload.CodeID),
		zap.String("trace_id", payload.TraceID),
	)

	out, err := t.svc.AddStampForCode(ctx, StampRequest{
		ClientID:  payload.ClientID,
		PartnerID: payload.PartnerID,
		CodeID:    payload.CodeID,
	})
	if err != nil {
		if errutil.Is(err, errutil.StatusBadRequest) {
			zapLog.Error("dropping stamp task", zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		zapLog.Error("failed to add stamp", zap.Error(err))
		return err
	}

	zapLog.Info("stamp task processed",
		zap.Bool("skipped", out.Skipped),
		zap.Bool("duplicate", out.Duplicate),
		zap.Int32("count", out.Count),
		zap.Bool("complete", out.Complete),
	)
	return nil
}
